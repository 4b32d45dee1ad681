package logger

import (
	"log/slog"
	"os"
	"time"
)

var def *slog.Logger

// Init настраивает slog в зависимости от среды и делает его логгером по умолчанию.
func Init(cfg Config) *slog.Logger {
	if cfg.Env == "" {
		cfg.Env = DetectEnv()
	}
	if cfg.Service == "" {
		cfg.Service = "watch-buddy"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	cfg.InstanceID = ensureInstanceID(cfg.InstanceID)

	// Выбор бекенда по умолчанию
	if cfg.Backend == "" {
		if cfg.Env == EnvDev {
			cfg.Backend = BackendStd
		} else {
			cfg.Backend = BackendZap
		}
	}

	var h slog.Handler
	switch cfg.Backend {
	case BackendZap:
		h = newZapHandler(cfg)
	default:
		h = newStdHandler(cfg)
	}

	h = &traceHandler{Handler: h.WithAttrs(commonAttr(cfg, time.Now()))}

	base := slog.New(h)
	slog.SetDefault(base)
	def = base
	return base
}

func L() *slog.Logger {
	if def != nil {
		return def
	}

	return Init(Config{})
}
