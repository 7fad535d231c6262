package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/effective-security/reagent/pkg/llms"
	"github.com/effective-security/reagent/router"
	"github.com/effective-security/reagent/tools"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ router.Callback = (*Noop)(nil)
	_ tools.Callback  = (*Noop)(nil)
	_ router.Callback = (*Printer)(nil)
	_ tools.Callback  = (*Printer)(nil)
	_ router.Callback = (*PackageLogger)(nil)
	_ tools.Callback  = (*PackageLogger)(nil)
	_ router.Callback = (*Fanout)(nil)
	_ tools.Callback  = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []router.Callback
}

func NewFanout(callbacks ...router.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback router.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnTurnStart(ctx context.Context, input string) {
	for _, callback := range l.callbacks {
		callback.OnTurnStart(ctx, input)
	}
}

func (l *Fanout) OnTurnEnd(ctx context.Context, state *router.State) {
	for _, callback := range l.callbacks {
		callback.OnTurnEnd(ctx, state)
	}
}

func (l *Fanout) OnTurnError(ctx context.Context, err error) {
	for _, callback := range l.callbacks {
		callback.OnTurnError(ctx, err)
	}
}

func (l *Fanout) OnToolsMatched(ctx context.Context, matched []string, failedOpen bool) {
	for _, callback := range l.callbacks {
		callback.OnToolsMatched(ctx, matched, failedOpen)
	}
}

func (l *Fanout) OnRefusal(ctx context.Context, content string) {
	for _, callback := range l.callbacks {
		callback.OnRefusal(ctx, content)
	}
}

func (l *Fanout) OnModelCallStart(ctx context.Context, llm llms.Model, payload []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnModelCallStart(ctx, llm, payload)
	}
}

func (l *Fanout) OnModelCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	for _, callback := range l.callbacks {
		callback.OnModelCallEnd(ctx, llm, resp)
	}
}

func (l *Fanout) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	for _, callback := range l.callbacks {
		callback.OnToolStart(ctx, tool, input)
	}
}

func (l *Fanout) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	for _, callback := range l.callbacks {
		callback.OnToolEnd(ctx, tool, input, output)
	}
}

func (l *Fanout) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	for _, callback := range l.callbacks {
		callback.OnToolError(ctx, tool, input, err)
	}
}

func (l *Fanout) OnToolNotFound(ctx context.Context, name string) {
	for _, callback := range l.callbacks {
		callback.OnToolNotFound(ctx, name)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnTurnStart(ctx context.Context, input string) {
}
func (l *Noop) OnTurnEnd(ctx context.Context, state *router.State) {
}
func (l *Noop) OnTurnError(ctx context.Context, err error) {
}
func (l *Noop) OnToolsMatched(ctx context.Context, matched []string, failedOpen bool) {
}
func (l *Noop) OnRefusal(ctx context.Context, content string) {
}
func (l *Noop) OnModelCallStart(ctx context.Context, llm llms.Model, payload []llms.Message) {
}
func (l *Noop) OnModelCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
}
func (l *Noop) OnToolStart(ctx context.Context, tool tools.ITool, input string) {}
func (l *Noop) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
}
func (l *Noop) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
}
func (l *Noop) OnToolNotFound(ctx context.Context, name string) {}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnTurnStart(ctx context.Context, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Turn Start\nInput: %s\n", input)
}

func (l *Printer) OnTurnEnd(ctx context.Context, state *router.State) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Turn End: %d steps\n", state.Steps)
	if l.Mode == ModeVerbose {
		fmt.Fprintln(l.Out, state.FinalContent())
	}
}

func (l *Printer) OnTurnError(ctx context.Context, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Turn Error: %s\n", err.Error())
}

func (l *Printer) OnToolsMatched(ctx context.Context, matched []string, failedOpen bool) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tools Matched: %v (failed open: %v)\n", matched, failedOpen)
}

func (l *Printer) OnRefusal(ctx context.Context, content string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintln(l.Out, "Refusal")
	if l.Mode == ModeVerbose {
		fmt.Fprintln(l.Out, content)
	}
}

func (l *Printer) OnModelCallStart(ctx context.Context, llm llms.Model, payload []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Model Call: %s model, %d messages\n", llm.GetName(), len(payload))
}

func (l *Printer) OnModelCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Model Call End: %s model, %d choices\n", llm.GetName(), len(resp.Choices))
}

func (l *Printer) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Start: %s\nInput: %s\n", tool.Name(), input)
}

func (l *Printer) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool End: %s\n", tool.Name())
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Output: %s\n", output)
	}
}

func (l *Printer) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Error: %s: %s\n", tool.Name(), err.Error())
}

func (l *Printer) OnToolNotFound(ctx context.Context, name string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Not Found: %s\n", name)
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnTurnStart(ctx context.Context, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "turn_start",
		"input", input,
	)
}

func (l *PackageLogger) OnTurnEnd(ctx context.Context, state *router.State) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "turn_end",
		"steps", state.Steps,
		"refused", state.Refused,
	)
}

func (l *PackageLogger) OnTurnError(ctx context.Context, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "turn_error",
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolsMatched(ctx context.Context, matched []string, failedOpen bool) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tools_matched",
		"matched", matched,
		"failed_open", failedOpen,
	)
}

func (l *PackageLogger) OnRefusal(ctx context.Context, content string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "refusal",
	)
}

func (l *PackageLogger) OnModelCallStart(ctx context.Context, llm llms.Model, payload []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "model_call_start",
		"model", llm.GetName(),
		"messages", len(payload),
	)
}

func (l *PackageLogger) OnModelCallEnd(ctx context.Context, llm llms.Model, resp *llms.ContentResponse) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "model_call_end",
		"model", llm.GetName(),
		"choices", len(resp.Choices),
	)
}

func (l *PackageLogger) OnToolStart(ctx context.Context, tool tools.ITool, input string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_start",
		"tool", tool.Name(),
		"input", input,
	)
}

func (l *PackageLogger) OnToolEnd(ctx context.Context, tool tools.ITool, input string, output string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_end",
		"tool", tool.Name(),
		"output", output,
	)
}

func (l *PackageLogger) OnToolError(ctx context.Context, tool tools.ITool, input string, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "tool_error",
		"tool", tool.Name(),
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnToolNotFound(ctx context.Context, name string) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "tool_not_found",
		"tool", name,
	)
}
