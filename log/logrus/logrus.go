// Package logrus adapts logrus to querycache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/querycache"
)

var _ querycache.Logger = Logger{}

// Logger writes querycache events through E. An error under "err" is attached
// with WithError.
type Logger struct{ E *logrus.Entry }

// New returns a Logger tagged with component=querycache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "querycache")}
}

func (l Logger) Debug(msg string, f querycache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f querycache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f querycache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f querycache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f querycache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	lf := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			lf[logrus.ErrorKey] = err
			continue
		}
		lf[k] = v
	}
	return l.E.WithFields(lf)
}
