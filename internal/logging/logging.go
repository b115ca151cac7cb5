package logging

import (
	"go.uber.org/zap"
)

// Logger wraps zap's sugared logger with application-specific construction.
type Logger struct {
	*zap.SugaredLogger
}

// New creates a logger for the given environment. Production gets JSON
// output, everything else the development console encoder.
func New(environment string) *Logger {
	var base *zap.Logger
	var err error
	if environment == "production" {
		base, err = zap.NewProduction()
	} else {
		base, err = zap.NewDevelopment()
	}
	if err != nil {
		base = zap.NewNop()
	}
	return &Logger{SugaredLogger: base.Sugar()}
}

// Default returns a development logger.
func Default() *Logger {
	return New("development")
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}
