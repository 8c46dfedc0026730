// Package setup probes the host for the runtimes the tools depend on
// (python3, ffmpeg, Python packages like PIL or psutil). The probe is a
// single idempotent startup check returning an explicit Status value; there
// is no ambient "setup completed" flag, and installing anything is out of
// scope for the bridge.
package setup

import (
	"context"
	"os/exec"
)

// Check describes one probe command; exit code 0 means the dependency is
// present. Example: {name: pillow, command: /usr/bin/python3, args: ["-c", "import PIL"]}.
type Check struct {
	Name    string   `yaml:"name" json:"name"`
	Command string   `yaml:"command" json:"command"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`
}

// Status is the outcome of one probe run.
type Status struct {
	Checks map[string]bool `json:"checks"`
	AllOK  bool            `json:"all_ok"`
}

// Probe runs every check once and reports per-check and overall health.
// Probing twice yields the same result unless the host changed.
func Probe(ctx context.Context, checks []Check) Status {
	st := Status{Checks: make(map[string]bool, len(checks)), AllOK: true}
	for _, c := range checks {
		ok := run(ctx, c)
		st.Checks[c.Name] = ok
		if !ok {
			st.AllOK = false
		}
	}
	return st
}

func run(ctx context.Context, c Check) bool {
	if c.Command == "" {
		return false
	}
	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	// Output is irrelevant; only the exit status matters.
	cmd.Stdout = nil
	cmd.Stderr = nil
	return cmd.Run() == nil
}
