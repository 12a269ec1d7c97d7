package flowline

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// nopHandler drops every record. It is the handler behind the default
// logger, so a layer rendering every frame pays nothing for logging.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger routes flowline's log output to l. Until it is called the
// package is silent; passing nil silences it again.
//
// Messages by level:
//   - [slog.LevelInfo]: a layer attaching or detaching, and ebitenctx
//     screenshots being written.
//   - [slog.LevelWarn]: a graphic dropped on rebuild because it has fewer
//     than two distinct points (after simplification, when enabled), and
//     colors that fail to resolve and fall back to the layer default.
//   - [slog.LevelDebug]: one "flowline: rebuild" line per rebuild with the
//     vertex and index counts, the frame center and the time taken, only
//     while the layer is in debug mode. GeoJSON features that are not
//     lines are also reported here.
//
// A demo wanting rebuild stats on stderr:
//
//	flowline.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
}

// Logger returns the logger set by SetLogger. It may be called from any
// goroutine.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
