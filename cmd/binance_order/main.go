package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"futures-connect-go/errs"
	"futures-connect-go/internal/container"
	"futures-connect-go/order"
)

const usage = `用法: binance_order [flags] <ping|time|place|query|cancel>

  ping     GET /ping
  time     GET /time，并打印本地与交易所的时钟差
  place    下单（-symbol -side -type -qty -price -tif [-cid]）
  query    按 clientOrderId 查询（-symbol -cid）
  cancel   按 clientOrderId 撤单，已终态时返回终态快照（-symbol -cid）
`

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	symbol := flag.String("symbol", "BTCUSDT", "交易对")
	side := flag.String("side", "BUY", "BUY/SELL")
	typ := flag.String("type", "LIMIT", "订单类型")
	qty := flag.String("qty", "", "数量")
	price := flag.String("price", "", "价格（LIMIT 必填）")
	tif := flag.String("tif", "GTC", "GTC/IOC/FOK/GTX")
	cid := flag.String("cid", "", "clientOrderId；下单时为空则自动生成")
	timeout := flag.Duration("timeout", 15*time.Second, "整体超时")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	c, err := container.New(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := c.Build(); err != nil {
		log.Fatalf("构建组件失败: %v", err)
	}
	defer c.Logger().Close()
	ex := c.Exchange()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	sym := strings.ToUpper(strings.TrimSpace(*symbol))

	switch flag.Arg(0) {
	case "ping":
		if err := ex.Ping(ctx); err != nil {
			fail("ping", err)
		}
		fmt.Println("pong")
	case "time":
		before := time.Now()
		serverMs, err := ex.ServerTime(ctx)
		if err != nil {
			fail("time", err)
		}
		local := before.Add(time.Since(before) / 2)
		diff := time.UnixMilli(serverMs).Sub(local)
		fmt.Printf("server=%d local=%d diff=%s\n", serverMs, local.UnixMilli(), diff)
	case "place":
		req := order.PlaceRequest{
			Symbol:        sym,
			ClientOrderID: *cid,
			Side:          order.Side(strings.ToUpper(*side)),
			Type:          order.Type(strings.ToUpper(*typ)),
			TimeInForce:   order.TimeInForce(strings.ToUpper(*tif)),
			Quantity:      mustDecimal("qty", *qty),
		}
		if *price != "" {
			req.Price = mustDecimal("price", *price)
		}
		if req.Type == order.TypeMarket {
			req.TimeInForce = ""
		}
		if req.ClientOrderID == "" {
			req.ClientOrderID = order.NewClientOrderID()
		}
		o, err := ex.PlaceOrder(ctx, req)
		if err != nil {
			fail("place", err)
		}
		printOrder(o)
	case "query":
		o, err := ex.QueryOrder(ctx, sym, requireCID(*cid))
		if err != nil {
			fail("query", err)
		}
		printOrder(o)
	case "cancel":
		res := ex.CancelOrderWithOutcome(ctx, sym, requireCID(*cid))
		if !res.OK() {
			fail("cancel", res.Err)
		}
		fmt.Printf("outcome=%s\n", res.Outcome)
		printOrder(res.Order)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func mustDecimal(name, v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		log.Fatalf("-%s 无效: %q", name, v)
	}
	return d
}

func requireCID(cid string) string {
	if cid == "" {
		log.Fatal("需要 -cid")
	}
	return cid
}

func printOrder(o *order.Order) {
	fmt.Printf("%s %s %s %s status=%s orderId=%d cid=%s price=%s qty=%s executed=%s avg=%s updateTime=%d\n",
		o.Symbol, o.Side, o.Type, o.TimeInForce, o.Status, o.OrderID, o.ClientOrderID,
		o.Price, o.OrigQty, o.ExecutedQty, o.AvgPrice, o.UpdateTime)
}

func fail(op string, err error) {
	log.Fatalf("%s 失败 [%s]: %v", op, errs.Kind(err), err)
}
