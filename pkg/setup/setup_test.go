package setup

import (
	"context"
	"testing"
)

func TestProbe(t *testing.T) {
	checks := []Check{
		{Name: "shell", Command: "sh", Args: []string{"-c", "exit 0"}},
		{Name: "broken", Command: "sh", Args: []string{"-c", "exit 1"}},
		{Name: "missing", Command: "/nonexistent/binary"},
	}
	st := Probe(context.Background(), checks)
	if !st.Checks["shell"] {
		t.Fatal("shell check should pass")
	}
	if st.Checks["broken"] || st.Checks["missing"] {
		t.Fatalf("failing checks reported ok: %#v", st.Checks)
	}
	if st.AllOK {
		t.Fatal("AllOK must be false when any check fails")
	}
}

func TestProbeIdempotent(t *testing.T) {
	checks := []Check{{Name: "shell", Command: "sh", Args: []string{"-c", "exit 0"}}}
	first := Probe(context.Background(), checks)
	second := Probe(context.Background(), checks)
	if first.AllOK != second.AllOK || first.Checks["shell"] != second.Checks["shell"] {
		t.Fatal("probe is not idempotent")
	}
}

func TestProbeEmpty(t *testing.T) {
	st := Probe(context.Background(), nil)
	if !st.AllOK || len(st.Checks) != 0 {
		t.Fatalf("empty probe should be trivially ok: %#v", st)
	}
}
