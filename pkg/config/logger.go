package config

import (
	"go.uber.org/zap"
)

// NewLogger builds the zap logger for a service. Local environments get the
// human-readable development encoder; everything else gets production JSON.
func NewLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
