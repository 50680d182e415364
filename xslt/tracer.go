package xslt

import (
	"io"
	"log/slog"
	"os"
)

// Tracer observes a running transformation. It is the ambient logging
// surface of the engine, modeled directly on the xpath package's own
// Tracer: a thin interface over log/slog rather than a bespoke logging
// abstraction.
type Tracer interface {
	Enter(instruction, node string, depth int)
	Leave(instruction, node string, depth int)
	Query(expr string, node string)
	Error(instruction string, err error)
}

type discardTracer struct{}

func (discardTracer) Enter(_, _ string, _ int) {}
func (discardTracer) Leave(_, _ string, _ int) {}
func (discardTracer) Query(_, _ string)        {}
func (discardTracer) Error(_ string, _ error)  {}

// NoopTracer returns a Tracer that discards every event.
func NoopTracer() Tracer {
	return discardTracer{}
}

type slogTracer struct {
	logger *slog.Logger
}

func newSlogTracer(w io.Writer) Tracer {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slogTracer{logger: slog.New(h)}
}

// Stdout returns a Tracer that writes structured trace lines to stdout.
func Stdout() Tracer {
	return newSlogTracer(os.Stdout)
}

// Stderr returns a Tracer that writes structured trace lines to stderr.
func Stderr() Tracer {
	return newSlogTracer(os.Stderr)
}

func (t slogTracer) Enter(instruction, node string, depth int) {
	t.logger.Debug("enter", "instruction", instruction, "node", node, "depth", depth)
}

func (t slogTracer) Leave(instruction, node string, depth int) {
	t.logger.Debug("leave", "instruction", instruction, "node", node, "depth", depth)
}

func (t slogTracer) Query(expr, node string) {
	t.logger.Debug("query", "expr", expr, "node", node)
}

func (t slogTracer) Error(instruction string, err error) {
	t.logger.Warn("error", "instruction", instruction, "error", err)
}
