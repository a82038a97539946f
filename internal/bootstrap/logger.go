package bootstrap

import (
	"log/slog"
	"os"
	"time"

	"github.com/GoBucketStore/go-bucket-store/env"
	"github.com/GoBucketStore/go-bucket-store/models"
	"github.com/lmittmann/tint"
)

// LoggerOptions configures logger initialization
type LoggerOptions struct {
	Level string
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger builds the store's logger. Outside production it uses a tinted
// console handler at debug level; in production it emits JSON at the
// configured level.
func InitLogger(opts LoggerOptions) models.Logger {
	environment := os.Getenv(env.EnvGoEnvironment)
	var logger *slog.Logger

	if environment != "production" {
		logger = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
		}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLevel(opts.Level),
		}))
	}

	slog.SetDefault(logger)

	return logger
}
