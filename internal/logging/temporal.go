package logging

import (
	"github.com/hashicorp/go-retryablehttp"
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"
)

// KeyvalLogger adapts zap to the msg-plus-keyvals logger interfaces used by
// the Temporal SDK and go-retryablehttp.
type KeyvalLogger struct {
	s *zap.SugaredLogger
}

var (
	_ log.Logger                   = (*KeyvalLogger)(nil)
	_ log.WithLogger               = (*KeyvalLogger)(nil)
	_ retryablehttp.LeveledLogger = (*KeyvalLogger)(nil)
)

func NewTemporalLogger(l *zap.Logger) *KeyvalLogger {
	return &KeyvalLogger{s: l.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// NewHTTPLogger is handed to retryablehttp clients. Request traces are
// debug level there, so a production logger only sees retries and give-ups.
func NewHTTPLogger(l *zap.Logger) *KeyvalLogger {
	return NewTemporalLogger(l.Named("http"))
}

func (l *KeyvalLogger) Debug(msg string, keyvals ...interface{}) { l.s.Debugw(msg, keyvals...) }
func (l *KeyvalLogger) Info(msg string, keyvals ...interface{})  { l.s.Infow(msg, keyvals...) }
func (l *KeyvalLogger) Warn(msg string, keyvals ...interface{})  { l.s.Warnw(msg, keyvals...) }
func (l *KeyvalLogger) Error(msg string, keyvals ...interface{}) { l.s.Errorw(msg, keyvals...) }

func (l *KeyvalLogger) With(keyvals ...interface{}) log.Logger {
	return &KeyvalLogger{s: l.s.With(keyvals...)}
}
