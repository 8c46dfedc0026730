// Package tool defines the invocation contract between the bridge and the
// out-of-process utilities it fronts: the registry of runnable tools, the
// request/response shapes, and the Invoker that runs exactly one OS process
// per call. A tool is any executable that accepts a JSON parameter object
// (on stdin or as command-line flags, per its declared convention) and writes
// a single JSON object with a boolean "success" field to stdout before exiting.
package tool

import (
	"encoding/json"
	"fmt"
	"time"
)

// Convention declares how parameters are handed to a tool process.
type Convention string

const (
	// ConventionStdinJSON pipes the JSON-encoded parameter object to the
	// process's standard input and closes it.
	ConventionStdinJSON Convention = "stdin-json"

	// ConventionCLIArgs serializes parameters into --key=value arguments.
	// Non-string values are JSON-encoded; keys are sorted for determinism.
	ConventionCLIArgs Convention = "cli-args"
)

// ParseConvention maps a config string to a Convention. An unknown or empty
// value is a configuration error: per-tool conventions vary and must be
// declared, never guessed.
func ParseConvention(s string) (Convention, error) {
	switch Convention(s) {
	case ConventionStdinJSON, ConventionCLIArgs:
		return Convention(s), nil
	default:
		return "", fmt.Errorf("unknown argument convention %q", s)
	}
}

// Descriptor declares the static interface of a registered tool.
type Descriptor struct {
	// ID is the stable, lower_snake identifier the UI addresses the tool by.
	ID string `json:"id"`
	// Description explains what the tool does.
	Description string `json:"description,omitempty"`
	// Path is the executable or script to run.
	Path string `json:"path"`
	// Interpreter, when set, is the program that runs Path
	// (e.g. /usr/bin/python3 for the Python tool scripts).
	Interpreter string `json:"interpreter,omitempty"`
	// Convention selects how parameters reach the process.
	Convention Convention `json:"convention"`
	// InputSchema is an optional JSON Schema (draft 2020-12) for the
	// parameter object. When present, parameters are validated before any
	// process is spawned.
	InputSchema []byte `json:"input_schema,omitempty"`
	// Env holds extra environment variables for the child process.
	Env map[string]string `json:"env,omitempty"`
	// ScrubEnv lists variables removed from the inherited environment.
	// The Python tools need PYTHONHOME/PYTHONPATH scrubbed to force the
	// system interpreter's site-packages.
	ScrubEnv []string `json:"scrub_env,omitempty"`
	// WorkDir is the child's working directory; empty inherits the daemon's.
	WorkDir string `json:"work_dir,omitempty"`
}

// Result is the structured outcome of one invocation as reported by the tool
// itself. Success=false is a normal result (e.g. "compression failed: invalid
// image"), distinct from the bridge failing to run the tool at all.
type Result struct {
	Success bool
	Message string
	// Payload holds every tool-specific top-level field of the response
	// (output_path, open_ports, total_scanned, ...).
	Payload map[string]any
}

// DecodeResult parses a tool's stdout as a response object. Any shape other
// than a JSON object carrying a boolean "success" is a protocol violation and
// returns an error; the caller must not treat partial output as a Result.
func DecodeResult(raw []byte) (Result, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Result{}, fmt.Errorf("output is not a JSON object: %w", err)
	}
	succ, ok := fields["success"]
	if !ok {
		return Result{}, fmt.Errorf("output missing required \"success\" field")
	}
	sb, ok := succ.(bool)
	if !ok {
		return Result{}, fmt.Errorf("\"success\" is %T, want bool", succ)
	}
	res := Result{Success: sb}
	delete(fields, "success")
	// A non-string message is left in the payload untouched.
	if m, ok := fields["message"].(string); ok {
		res.Message = m
		delete(fields, "message")
	}
	if len(fields) > 0 {
		res.Payload = fields
	}
	return res, nil
}

// MarshalJSON re-emits the flat wire shape {"success": bool, "message"?: ...}
// so HTTP callers see exactly what the tool wrote.
func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Payload)+2)
	for k, v := range r.Payload {
		out[k] = v
	}
	out["success"] = r.Success
	if r.Message != "" {
		out["message"] = r.Message
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts the same flat shape DecodeResult does.
func (r *Result) UnmarshalJSON(raw []byte) error {
	dec, err := DecodeResult(raw)
	if err != nil {
		return err
	}
	*r = dec
	return nil
}

// Execution is the transient record of a single process run. It exists for
// diagnostics and history; it is not part of the caller-facing contract.
type Execution struct {
	ID        string
	ToolID    string
	Argv      []string
	Stdout    []byte
	Stderr    []byte
	ExitCode  int
	StartedAt time.Time
	Duration  time.Duration
}
