package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "arbitrager",
	Short: "CEX/DEX price aggregation and arbitrage signals",
	Long: `arbitrager asks centralized exchanges and on-chain venues for the price
of every asset in the universe, compares the best prices and publishes
arbitrage signals to files, logs, Redis and a live dashboard.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./config.yaml", "путь к конфигу")
	rootCmd.AddCommand(scanCmd, resolveCmd)
}

// newLogger: JSON-логгер с русскими ключами.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	ruLevel := func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		switch l {
		case zapcore.DebugLevel:
			enc.AppendString("debug")
		case zapcore.InfoLevel:
			enc.AppendString("info")
		case zapcore.WarnLevel:
			enc.AppendString("warning")
		case zapcore.ErrorLevel:
			enc.AppendString("error")
		case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
			enc.AppendString("fatality")
		default:
			enc.AppendString(l.String())
		}
	}
	ruTime := func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(time.RFC3339))
	}

	cfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(lvl),
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "время",
			LevelKey:       "уровень",
			NameKey:        "лог",
			CallerKey:      "файл",
			MessageKey:     "сообщение",
			StacktraceKey:  "стек",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    ruLevel,
			EncodeTime:     ruTime,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
