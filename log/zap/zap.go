// Package zap adapts a *zap.Logger to querycache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/querycache"
)

var _ querycache.Logger = Logger{}

// Logger writes querycache events to L. Fields are emitted in key order; an
// error under "err" becomes a zap.Error field.
type Logger struct{ L *zap.Logger }

// New returns a Logger named "querycache" under l.
func New(l *zap.Logger) Logger { return Logger{L: l.Named("querycache")} }

func (z Logger) Debug(msg string, f querycache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f querycache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f querycache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f querycache.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f querycache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok && k == "err" {
			out = append(out, zap.Error(err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
