package logging

import (
	"strings"

	"go.uber.org/zap"
)

// GooseLogger adapts zap to the goose.Logger interface.
type GooseLogger struct {
	sugar *zap.SugaredLogger
}

// NewGooseLogger routes migration output through the given logger.
func NewGooseLogger(logger *zap.Logger) *GooseLogger {
	return &GooseLogger{sugar: logger.Named("migrations").Sugar()}
}

// Printf logs informational migration output.
func (g *GooseLogger) Printf(format string, v ...interface{}) {
	g.sugar.Infof(strings.TrimSuffix(format, "\n"), v...)
}

// Fatalf logs and exits, matching the goose contract.
func (g *GooseLogger) Fatalf(format string, v ...interface{}) {
	g.sugar.Fatalf(strings.TrimSuffix(format, "\n"), v...)
}
