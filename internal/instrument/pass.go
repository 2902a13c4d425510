// Package instrument rewrites WebAssembly function bodies with tracing
// prologues and epilogues that call a logger exported by the module
// itself.
package instrument

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/sliminality/wasm-trace/internal/tracer"
	"github.com/sliminality/wasm-trace/internal/wasm"
)

// Well-known exports of a traceable module. The logger receives every
// (kind, data) record; the expose pair lets a host read the tracer's
// ring out of linear memory.
const (
	LogCall         = "__log_call"
	ExposeTracer    = "__expose_tracer"
	ExposeTracerLen = "__expose_tracer_len"
)

// Options configures a pass run.
type Options struct {
	// Logger is the export name of the logging function. Defaults to
	// LogCall.
	Logger string
	// Skip lists additional export names to leave uninstrumented.
	Skip []string
}

// Run instruments every exported function of m in place. The tracer's
// own exports and anything in opts.Skip are left alone, as are
// imported functions (they have no bodies to rewrite).
func Run(m *wasm.Module, opts Options) error {
	logger := opts.Logger
	if logger == "" {
		logger = LogCall
	}

	loggerID, ok := findLogger(m, logger)
	if !ok {
		return fmt.Errorf("could not find tracing function %q in module exports", logger)
	}

	skip := map[string]bool{
		logger:          true,
		ExposeTracer:    true,
		ExposeTracerLen: true,
	}
	for _, name := range opts.Skip {
		skip[name] = true
	}

	imported := m.NumImportedFuncs()
	for own := uint32(0); own < m.NumOwnFuncs(); own++ {
		id := imported + own
		name, exported := m.FunctionName(id)
		if !exported || skip[name] {
			continue
		}
		ty, err := m.TypeOf(id)
		if err != nil {
			return fmt.Errorf("function %q: %w", name, err)
		}
		if len(ty.Results) > 1 {
			return fmt.Errorf("function %q: multi-value results are not supported", name)
		}
		if err := instrumentBody(m.Bodies[own], loggerID, id, ty); err != nil {
			return fmt.Errorf("function %q: %w", name, err)
		}
	}
	return nil
}

func findLogger(m *wasm.Module, name string) (uint32, bool) {
	for _, exp := range m.Exports {
		if exp.Kind == wasm.ExtFunction && exp.Name == name {
			return exp.Index, true
		}
	}
	return 0, false
}

// instrumentBody rewrites one function body.
//
// The prologue records the call and the callee's index. The epilogue
// records the return; when the function produces a value, it is teed
// into a fresh local so it both survives on the stack and can be
// logged. The epilogue runs before every explicit return and before
// the implicit return at the final end, unless the end is preceded by
// unreachable (the stack would be empty, so there is nothing to tee).
func instrumentBody(body *wasm.FuncBody, loggerID, id uint32, ty wasm.FuncType) error {
	if len(body.Code) == 0 {
		return fmt.Errorf("empty body")
	}

	idOperand, err := safecast.Conv[int32](id)
	if err != nil {
		return fmt.Errorf("function index does not fit the log operand: %w", err)
	}
	prologue := []wasm.Instr{
		wasm.I32Const(int32(tracer.KindFunctionCall)),
		wasm.I32Const(idOperand),
		wasm.Call(loggerID),
	}

	var epilogue []wasm.Instr
	if ret, ok := ty.Result(); ok {
		// Local indices cover params first, then declared locals, so
		// the fresh local lands after both.
		retLocal := uint32(len(ty.Params)) + body.NumLocals()
		body.Locals = append(body.Locals, wasm.LocalEntry{Count: 1, Type: ret})
		epilogue = []wasm.Instr{
			wasm.LocalTee(retLocal),
			wasm.I32Const(int32(tracer.KindFunctionReturnValue)),
			wasm.LocalGet(retLocal),
			wasm.Call(loggerID),
		}
	} else {
		epilogue = []wasm.Instr{
			wasm.I32Const(int32(tracer.KindFunctionReturnVoid)),
			wasm.I32Const(tracer.VoidValue),
			wasm.Call(loggerID),
		}
	}

	code := body.Code
	last := len(code) - 1 // the final end

	out := make([]wasm.Instr, 0, len(code)+len(prologue)+2*len(epilogue))
	out = append(out, prologue...)
	for _, in := range code[:last] {
		if in.Op == wasm.OpReturn {
			out = append(out, epilogue...)
		}
		out = append(out, in)
	}

	// The final end returns implicitly, so the epilogue belongs there
	// too. After unreachable the stack holds nothing to tee, so skip it.
	if last == 0 || code[last-1].Op != wasm.OpUnreachable {
		out = append(out, epilogue...)
	}
	out = append(out, wasm.End())

	body.Code = out
	return nil
}
