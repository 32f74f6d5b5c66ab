package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"

	"futures-connect-go/config"
	"futures-connect-go/gateway"
	"futures-connect-go/internal/container"
	"futures-connect-go/internal/exchange"
)

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	watch := flag.Bool("watch", true, "监听配置文件，热更新日志级别")
	flag.Parse()

	c, err := container.New(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	c.SetListener(exchange.EventListenerFunc(func(ev *gateway.OrderUpdateEvent) {
		o := ev.Order
		c.Logger().LogOrder("order_update", o.ClientOrderID, map[string]interface{}{
			"symbol":      o.Symbol,
			"side":        string(o.Side),
			"execType":    string(o.ExecutionType),
			"status":      string(o.OrderStatus),
			"orderId":     o.OrderID,
			"lastQty":     o.LastFilledQty.String(),
			"lastPrice":   o.LastFilledPrice.String(),
			"executedQty": o.CumFilledQty.String(),
		})
	}))
	if err := c.Build(); err != nil {
		log.Fatalf("构建组件失败: %v", err)
	}
	lg := c.Logger().Logger

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	err = c.Start(startCtx)
	startCancel()
	if err != nil {
		lg.Error("start failed", zap.Error(err))
		_ = c.Stop()
		os.Exit(1)
	}
	c.Logger().LogStream("started", map[string]interface{}{
		"listenKeyGeneration": c.Exchange().State().Generation,
	})
	if _, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warn("sd_notify ready failed", zap.Error(err))
	}

	if *watch {
		w := config.Watcher{Path: *cfgPath, Logger: lg}
		go func() {
			err := w.Start(ctx, func(cfg config.AppConfig) {
				if err := c.Logger().SetLevel(cfg.Log.Level); err != nil {
					lg.Warn("apply log level failed", zap.Error(err))
					return
				}
				lg.Info("log level updated", zap.String("level", c.Logger().Level()))
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				lg.Warn("config watcher exited", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	c.Logger().LogStream("stopping", nil)
	if err := c.Stop(); err != nil {
		os.Exit(1)
	}
}
