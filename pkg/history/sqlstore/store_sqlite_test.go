package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anandukch/localtoolbox/pkg/history"
)

func openTestStore(t *testing.T, name string) *Store {
	t.Helper()
	ctx := context.Background()
	st, err := Open(ctx, "sqlite:file:"+name+"?mode=memory&cache=shared&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	return st
}

func record(id, tool string, at time.Time) history.Record {
	return history.Record{
		InvocationID: id,
		ToolID:       tool,
		Argv:         []string{"/usr/bin/python3", "tools/" + tool + ".py"},
		ExitCode:     0,
		Success:      true,
		DurationMs:   12,
		CreatedAt:    at,
	}
}

func TestSQLiteAppendAndGet(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t, "hist-get")

	now := time.Now().UTC()
	in := record("inv-1", "image_compressor", now)
	in.Message = "compressed"
	if err := st.Append(ctx, in); err != nil {
		t.Fatal(err)
	}

	got, err := st.Get(ctx, "inv-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ToolID != "image_compressor" || !got.Success || got.Message != "compressed" {
		t.Fatalf("unexpected record: %#v", got)
	}
	if len(got.Argv) != 2 || got.Argv[0] != "/usr/bin/python3" {
		t.Fatalf("argv not round-tripped: %#v", got.Argv)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("created_at not decoded")
	}
}

func TestSQLiteGetNotFound(t *testing.T) {
	st := openTestStore(t, "hist-missing")
	_, err := st.Get(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v want ErrNotFound", err)
	}
}

func TestSQLiteListByToolNewestFirst(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t, "hist-list")

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		if err := st.Append(ctx, record(id, "port_scanner", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.Append(ctx, record("other", "pdf_merger", base)); err != nil {
		t.Fatal(err)
	}

	got, err := st.ListByTool(ctx, "port_scanner", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d want 2", len(got))
	}
	if got[0].InvocationID != "c" || got[1].InvocationID != "b" {
		t.Fatalf("wrong order: %s, %s", got[0].InvocationID, got[1].InvocationID)
	}
}

func TestSQLiteRecent(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t, "hist-recent")

	base := time.Now().UTC()
	if err := st.Append(ctx, record("a", "pdf_merger", base)); err != nil {
		t.Fatal(err)
	}
	failed := record("b", "image_compressor", base.Add(time.Second))
	failed.Success = false
	failed.ExitCode = 1
	failed.Stderr = "file not found"
	failed.Error = "process/exit_nonzero"
	if err := st.Append(ctx, failed); err != nil {
		t.Fatal(err)
	}

	got, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("len=%d want 2", len(got))
	}
	if got[0].InvocationID != "b" || got[0].Error != "process/exit_nonzero" || got[0].Stderr != "file not found" {
		t.Fatalf("unexpected head record: %#v", got[0])
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://root@localhost/db")
	if err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}
