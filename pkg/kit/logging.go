package kit

import (
	"strings"

	"go.uber.org/zap"
)

// NewLogger builds the production JSON logger. An empty or unknown level
// falls back to info.
func NewLogger(service, level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.InitialFields = map[string]any{"service": service}

	if lvl, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level))); err == nil && level != "" {
		cfg.Level = lvl
	}

	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
