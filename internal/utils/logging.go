package utils

import "go.uber.org/zap"

// Logger is the service-wide structured logger: message plus
// alternating key/value pairs, backed by zap.
type Logger struct {
	s *zap.SugaredLogger
}

func NewLogger() *Logger {
	z, err := zap.NewProduction()
	if err != nil {
		z = zap.NewNop()
	}
	return &Logger{s: z.Sugar()}
}

// NewTestLogger discards everything (used in tests).
func NewTestLogger() *Logger { return &Logger{s: zap.NewNop().Sugar()} }

func (lg *Logger) Info(msg string, kv ...any)  { lg.s.Infow(msg, kv...) }
func (lg *Logger) Warn(msg string, kv ...any)  { lg.s.Warnw(msg, kv...) }
func (lg *Logger) Error(msg string, kv ...any) { lg.s.Errorw(msg, kv...) }

func (lg *Logger) Sync() { _ = lg.s.Sync() }
