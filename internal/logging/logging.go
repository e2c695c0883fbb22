// Package logging provides structured logging functionality.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       true,
		FilePath:   filepath.Join(home, ".config", "pair-trader", "logs", "trader.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			FormatLevel: func(i interface{}) string {
				if ll, ok := i.(string); ok {
					switch ll {
					case "debug":
						return "\033[36mDBG\033[0m"
					case "info":
						return "\033[32mINF\033[0m"
					case "warn":
						return "\033[33mWRN\033[0m"
					case "error":
						return "\033[31mERR\033[0m"
					default:
						return ll
					}
				}
				return "???"
			},
		}
		writers = append(writers, consoleWriter)
	}

	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			fileWriter := &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			}
			writers = append(writers, fileWriter)
		}
	}

	var writer io.Writer
	if len(writers) == 0 {
		writer = os.Stdout
	} else if len(writers) == 1 {
		writer = writers[0]
	} else {
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetDebugLevel sets the global log level to debug.
func SetDebugLevel() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
}

// WithStrategy adds a strategy ID to the logger context.
func WithStrategy(logger zerolog.Logger, strategyID int) zerolog.Logger {
	return logger.With().Int("strategy_id", strategyID).Logger()
}

// WithOrderID adds an order ID to the logger context.
func WithOrderID(logger zerolog.Logger, orderID string) zerolog.Logger {
	return logger.With().Str("order_id", orderID).Logger()
}

// LogTrade logs an applied trade.
func LogTrade(logger zerolog.Logger, instrumentID, side string, qty int, price float64, strategyID int) {
	logger.Info().
		Str("event", "trade").
		Str("instrument", instrumentID).
		Str("side", side).
		Int("quantity", qty).
		Float64("price", price).
		Int("strategy_id", strategyID).
		Msg("Trade executed")
}

// LogOrder logs an order lifecycle event.
func LogOrder(logger zerolog.Logger, orderID, instrumentID, side, status string) {
	logger.Info().
		Str("event", "order").
		Str("order_id", orderID).
		Str("instrument", instrumentID).
		Str("side", side).
		Str("status", status).
		Msg("Order update")
}

// LogCancel logs a cancellation request outcome.
func LogCancel(logger zerolog.Logger, orderID string, err error) {
	if err != nil {
		logger.Warn().Str("event", "cancel").Str("order_id", orderID).Err(err).Msg("Cancel failed")
		return
	}
	logger.Info().Str("event", "cancel").Str("order_id", orderID).Msg("Cancel requested")
}

// LogAdmissionRefused logs a position-limit refusal.
func LogAdmissionRefused(logger zerolog.Logger, strategyID int, exposure, proposed, limit float64) {
	logger.Warn().
		Str("event", "admission_refused").
		Int("strategy_id", strategyID).
		Float64("exposure", exposure).
		Float64("proposed", proposed).
		Float64("limit", limit).
		Msg("Order exceeds strategy budget")
}
