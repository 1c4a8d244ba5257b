package main

import (
	"go.temporal.io/sdk/log"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pkgforge/internal/logging"
)

// temporalLogger routes Temporal SDK logs through zap.
type temporalLogger struct {
	s *zap.SugaredLogger
}

var _ log.Logger = (*temporalLogger)(nil)

func newTemporalLogger(l *logging.Logger) *temporalLogger {
	return &temporalLogger{s: l.Underlying().Named("temporal").Sugar()}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) { l.s.Debugw(msg, keyvals...) }
func (l *temporalLogger) Info(msg string, keyvals ...interface{})  { l.s.Infow(msg, keyvals...) }
func (l *temporalLogger) Warn(msg string, keyvals ...interface{})  { l.s.Warnw(msg, keyvals...) }
func (l *temporalLogger) Error(msg string, keyvals ...interface{}) { l.s.Errorw(msg, keyvals...) }
