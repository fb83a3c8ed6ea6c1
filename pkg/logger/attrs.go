package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Attribute keys shared across components.
const (
	KeyComponent = "component"
	KeyRoom      = "room"
	KeyConn      = "conn"
	KeyErr       = "err"
)

func Err(err error) slog.Attr {
	return slog.Any(KeyErr, err)
}

// ensureInstanceID falls back to "<hostname>-<8 hex>" so replicas stay distinguishable.
func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}
	hn, _ := os.Hostname()
	if hn == "" {
		hn = "coordinator"
	}
	return hn + "-" + uuid.NewString()[:8]
}

func commonAttrs(cfg Config) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now().UTC()),
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}
	return attrs
}
