package membership

import "go.uber.org/zap"

type zapLogger struct {
	l *zap.SugaredLogger
}

// NewZapLogger adapts a zap sugared logger to Logger
func NewZapLogger(l *zap.SugaredLogger) Logger {
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	return zapLogger{l: l}
}

func (z zapLogger) Debug(format string, args ...any) { z.l.Debugf(format, args...) }
func (z zapLogger) Info(format string, args ...any)  { z.l.Infof(format, args...) }
func (z zapLogger) Warn(format string, args ...any)  { z.l.Warnf(format, args...) }
func (z zapLogger) Error(format string, args ...any) { z.l.Errorf(format, args...) }
