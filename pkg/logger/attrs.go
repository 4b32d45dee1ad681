package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// ensureInstanceID tells replicas of watch-buddy apart in aggregated logs:
// host name plus a short random suffix, so restarts on one host differ too.
func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}
	hn, err := os.Hostname()
	if err != nil || hn == "" {
		hn = "watch-buddy"
	}
	return hn + "-" + uuid.NewString()[:8]
}

// commonAttr is attached to every record. Version is omitted when unknown.
func commonAttr(cfg Config, started time.Time) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", started.UTC()),
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return attrs
}
