package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/anandukch/localtoolbox/pkg/errmodel"
	"github.com/anandukch/localtoolbox/pkg/history"
)

// runFunc starts one OS process and waits for it. It returns captured stdout,
// stderr and the exit code; err is non-nil only when the process could not be
// started at all. Replaceable for tests (spawn counting, fault injection).
type runFunc func(ctx context.Context, argv []string, stdin []byte, env []string, dir string) (stdout, stderr []byte, exitCode int, err error)

// Invoker turns a (tool_id, parameters) request into exactly one process
// execution and a decoded Result. It performs no retries, imposes no timeout,
// and does not coordinate concurrent invocations; cancellation via ctx kills
// the child best-effort but callers must not rely on synchronous cleanup.
type Invoker struct {
	reg      *Registry
	log      *zap.Logger
	validate ValidateFunc
	rec      history.Recorder
	run      runFunc
}

// InvokerOption configures an Invoker at construction time.
type InvokerOption func(*Invoker)

// WithLogger sets the logger; default is a nop logger.
func WithLogger(l *zap.Logger) InvokerOption {
	return func(inv *Invoker) {
		if l != nil {
			inv.log = l
		}
	}
}

// WithHistory records every invocation to the given recorder. Recording
// failures are logged and never fail the invocation itself.
func WithHistory(rec history.Recorder) InvokerOption {
	return func(inv *Invoker) { inv.rec = rec }
}

// WithValidate overrides the input-schema validator (default jsonschema/v6).
func WithValidate(v ValidateFunc) InvokerOption {
	return func(inv *Invoker) {
		if v != nil {
			inv.validate = v
		}
	}
}

// withRunner overrides process execution; test hook.
func withRunner(r runFunc) InvokerOption {
	return func(inv *Invoker) { inv.run = r }
}

// NewInvoker constructs an Invoker over the given registry.
func NewInvoker(reg *Registry, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		reg:      reg,
		log:      zap.NewNop(),
		validate: JSONSchemaValidator,
		run:      runExec,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke resolves toolID, hands params to the tool process per its declared
// convention, and decodes the process's stdout into a Result.
//
// Failure semantics, in check order:
//   - config/not_found: toolID absent from the registry; no process spawned
//   - validation/invalid_input: params fail the tool's input schema; no spawn
//   - config/executable_missing: registry entry's target is not runnable
//   - process/spawn_failed: the OS could not start the process
//   - process/exit_nonzero: the process exited non-zero; stderr attached
//   - protocol/bad_output: exit 0 but stdout did not decode as a response
//
// A well-formed response with success=false is returned as a normal Result.
func (inv *Invoker) Invoke(ctx context.Context, toolID string, params map[string]any) (Result, error) {
	tr := otel.Tracer("tool/invoker")
	ctx, span := tr.Start(ctx, "Invoker.Invoke", trace.WithAttributes(
		attribute.String("tool.id", toolID),
	))
	defer span.End()

	d, ok := inv.reg.Resolve(toolID)
	if !ok {
		return Result{}, errmodel.Config("not_found", "tool not registered", map[string]any{"tool": toolID})
	}
	if len(d.InputSchema) > 0 {
		if err := inv.validate(d.InputSchema, params); err != nil {
			return Result{}, errmodel.Validation("invalid_input", "tool input validation failed", map[string]any{"tool": toolID, "error": err.Error()})
		}
	}
	if err := checkRunnable(d); err != nil {
		return Result{}, errmodel.Config("executable_missing", "tool executable does not resolve", map[string]any{"tool": toolID, "path": d.Path, "error": err.Error()})
	}

	payload, err := json.Marshal(params)
	if err != nil {
		return Result{}, errmodel.Validation("unserializable_params", "parameters do not serialize to JSON", map[string]any{"tool": toolID, "error": err.Error()})
	}

	argv, stdin, err := buildCommand(d, params, payload)
	if err != nil {
		return Result{}, err
	}

	ex := Execution{
		ID:        uuid.NewString(),
		ToolID:    toolID,
		Argv:      argv,
		StartedAt: time.Now(),
	}
	span.SetAttributes(attribute.String("invocation.id", ex.ID))
	inv.log.Debug("invoking tool",
		zap.String("tool", toolID),
		zap.String("invocation", ex.ID),
		zap.Strings("argv", argv),
	)

	stdout, stderr, exitCode, runErr := inv.run(ctx, argv, stdin, childEnv(d), d.WorkDir)
	ex.Stdout = stdout
	ex.Stderr = stderr
	ex.ExitCode = exitCode
	ex.Duration = time.Since(ex.StartedAt)
	span.SetAttributes(
		attribute.Int("process.exit_code", exitCode),
		attribute.Int64("invocation.duration_ms", ex.Duration.Milliseconds()),
	)

	if ctx.Err() != nil {
		// Best-effort kill already happened via CommandContext; report the
		// cancellation rather than misclassifying the killed exit status.
		err := errmodel.Process("canceled", "invocation canceled", map[string]any{"tool": toolID}, ctx.Err())
		inv.record(ex, Result{}, err)
		return Result{}, err
	}
	if runErr != nil {
		err := errmodel.Process("spawn_failed", "could not start tool process", map[string]any{"tool": toolID, "path": d.Path}, runErr)
		span.RecordError(err)
		inv.record(ex, Result{}, err)
		return Result{}, err
	}
	if exitCode != 0 {
		// Partial stdout must not be trusted as a response; both streams are
		// attached verbatim for diagnostics.
		err := errmodel.Process("exit_nonzero", fmt.Sprintf("tool exited with code %d", exitCode), map[string]any{
			"tool":      toolID,
			"exit_code": exitCode,
			"stderr":    string(stderr),
			"stdout":    string(stdout),
		}, nil)
		span.RecordError(err)
		inv.record(ex, Result{}, err)
		return Result{}, err
	}

	res, decErr := DecodeResult(stdout)
	if decErr != nil {
		// Exit 0 with undecodable stdout is a bug in the tool or this layer,
		// surfaced distinctly from a tool-reported failure.
		err := errmodel.Protocol("bad_output", "tool stdout did not decode as a response", map[string]any{
			"tool":   toolID,
			"stdout": string(stdout),
		}, decErr)
		span.RecordError(err)
		inv.record(ex, Result{}, err)
		return Result{}, err
	}

	span.SetAttributes(attribute.Bool("tool.success", res.Success))
	inv.log.Debug("tool completed",
		zap.String("tool", toolID),
		zap.String("invocation", ex.ID),
		zap.Bool("success", res.Success),
		zap.Duration("duration", ex.Duration),
	)
	inv.record(ex, res, nil)
	return res, nil
}

// record appends the execution to history when a recorder is configured.
func (inv *Invoker) record(ex Execution, res Result, invokeErr error) {
	if inv.rec == nil {
		return
	}
	rec := history.Record{
		InvocationID: ex.ID,
		ToolID:       ex.ToolID,
		Argv:         ex.Argv,
		ExitCode:     ex.ExitCode,
		Stderr:       string(ex.Stderr),
		Success:      invokeErr == nil && res.Success,
		Message:      res.Message,
		DurationMs:   ex.Duration.Milliseconds(),
		CreatedAt:    ex.StartedAt,
	}
	if invokeErr != nil {
		ce := errmodel.From(invokeErr)
		rec.Error = ce.Category + "/" + ce.Code
	}
	// History is observability, not part of the invocation contract.
	if err := inv.rec.Append(context.Background(), rec); err != nil {
		inv.log.Warn("history append failed", zap.String("invocation", ex.ID), zap.Error(err))
	}
}

// buildCommand assembles argv and the stdin payload per the tool's convention.
func buildCommand(d Descriptor, params map[string]any, payload []byte) (argv []string, stdin []byte, err error) {
	if d.Interpreter != "" {
		argv = append(argv, d.Interpreter)
	}
	argv = append(argv, d.Path)
	switch d.Convention {
	case ConventionStdinJSON:
		return argv, payload, nil
	case ConventionCLIArgs:
		flags, err := flagArgs(params)
		if err != nil {
			return nil, nil, errmodel.Validation("unserializable_params", "parameters do not serialize to flags", map[string]any{"tool": d.ID, "error": err.Error()})
		}
		return append(argv, flags...), nil, nil
	default:
		// Register rejects unknown conventions; reaching this means the
		// descriptor bypassed the registry.
		return nil, nil, errmodel.Config("bad_convention", "unknown argument convention", map[string]any{"tool": d.ID})
	}
}

// flagArgs serializes a parameter object into sorted --key=value arguments.
// Strings pass through; every other value is JSON-encoded.
func flagArgs(params map[string]any) ([]string, error) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		v := params[k]
		if s, ok := v.(string); ok {
			out = append(out, "--"+k+"="+s)
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out = append(out, "--"+k+"="+string(b))
	}
	return out, nil
}

// childEnv builds the child process environment: inherited minus ScrubEnv,
// plus the descriptor's extra variables.
func childEnv(d Descriptor) []string {
	scrub := make(map[string]bool, len(d.ScrubEnv))
	for _, k := range d.ScrubEnv {
		scrub[k] = true
	}
	var env []string
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if scrub[name] {
			continue
		}
		env = append(env, kv)
	}
	keys := make([]string, 0, len(d.Env))
	for k := range d.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+d.Env[k])
	}
	return env
}

// runExec is the default runFunc backed by os/exec. Context cancellation
// kills the child (best-effort).
func runExec(ctx context.Context, argv []string, stdin []byte, env []string, dir string) ([]byte, []byte, int, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	cmd.Env = env
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
		}
		return stdout.Bytes(), stderr.Bytes(), -1, err
	}
	return stdout.Bytes(), stderr.Bytes(), 0, nil
}
