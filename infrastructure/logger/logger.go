package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 在 zap.Logger 上加了可热更新的级别和订单/数据流事件的固定格式。
type Logger struct {
	*zap.Logger
	level zap.AtomicLevel
	files []io.Closer
}

// Config 日志配置
type Config struct {
	Level      string   `yaml:"level"`       // debug, info, warn, error
	Outputs    []string `yaml:"outputs"`     // stdout, file
	OutputFile string   `yaml:"output_file"` // outputs 含 file 时必填
	ErrorFile  string   `yaml:"error_file"`  // 只写 error 及以上，不受 SetLevel 影响
	Format     string   `yaml:"format"`      // json 或 console（只作用于 stdout）
}

func DefaultConfig() Config {
	return Config{Level: "info", Outputs: []string{"stdout"}, Format: "json"}
}

func New(cfg Config) (*Logger, error) {
	parsed, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	l := &Logger{level: zap.NewAtomicLevelAt(parsed)}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if slices.Contains(cfg.Outputs, "stdout") {
		enc := zapcore.NewJSONEncoder(encCfg)
		if cfg.Format == "console" {
			consoleCfg := encCfg
			consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
			enc = zapcore.NewConsoleEncoder(consoleCfg)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), l.level))
	}

	// 文件一律 json
	sinks := []struct {
		path  string
		level zapcore.LevelEnabler
	}{
		{path: fileOutput(cfg), level: l.level},
		{path: cfg.ErrorFile, level: zapcore.ErrorLevel},
	}
	for _, s := range sinks {
		if s.path == "" {
			continue
		}
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			_ = l.closeFiles()
			return nil, fmt.Errorf("open log file %s: %w", s.path, err)
		}
		l.files = append(l.files, f)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), s.level))
	}

	if len(cores) == 0 {
		return nil, errors.New("no log outputs configured")
	}
	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return l, nil
}

func fileOutput(cfg Config) string {
	if slices.Contains(cfg.Outputs, "file") {
		return cfg.OutputFile
	}
	return ""
}

// SetLevel 运行时修改日志级别，错误文件的级别不受影响。
func (l *Logger) SetLevel(lvl string) error {
	parsed, err := zapcore.ParseLevel(lvl)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", lvl, err)
	}
	l.level.SetLevel(parsed)
	return nil
}

func (l *Logger) Level() string {
	return l.level.Level().String()
}

// LogOrder 订单事件：下单/撤单/推送更新，统一消息 order_event。
func (l *Logger) LogOrder(event, clientOrderID string, fields map[string]interface{}) {
	l.Info("order_event", append([]zap.Field{
		zap.String("event", event),
		zap.String("client_order_id", clientOrderID),
	}, sortedFields(fields)...)...)
}

// LogStream 用户数据流生命周期事件（连接、续期、重连）。
func (l *Logger) LogStream(event string, fields map[string]interface{}) {
	l.Info("stream_event", append([]zap.Field{zap.String("event", event)}, sortedFields(fields)...)...)
}

func (l *Logger) LogError(err error, fields map[string]interface{}) {
	l.Error("error_event", append([]zap.Field{zap.Error(err)}, sortedFields(fields)...)...)
}

func sortedFields(m map[string]interface{}) []zap.Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	res := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		res = append(res, zap.Any(k, m[k]))
	}
	return res
}

// Close 刷盘并关闭日志文件。stdout 的 Sync 错误（终端上常见 EINVAL）忽略。
func (l *Logger) Close() error {
	_ = l.Sync()
	return l.closeFiles()
}

func (l *Logger) closeFiles() error {
	var errs []error
	for _, f := range l.files {
		errs = append(errs, f.Close())
	}
	l.files = nil
	return errors.Join(errs...)
}
