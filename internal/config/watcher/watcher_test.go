package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOperation_String(t *testing.T) {
	tests := map[Operation]string{
		OpWrite:       "write",
		OpCreate:      "create",
		OpRemove:      "remove",
		OpRename:      "rename",
		Operation(99): "unknown",
	}
	for op, want := range tests {
		if got := op.String(); got != want {
			t.Errorf("Operation(%d).String() = %q, want %q", op, got, want)
		}
	}
}

func TestWatcher_DetectsWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nvimui.toml")
	if err := os.WriteFile(path, []byte("[ui]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := New(path, WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer w.Close()

	events := make(chan Event, 10)
	w.OnChange(func(ev Event) { events <- ev })

	// A sibling file must not trigger the handler.
	os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o644)
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("[ui]\nwidth = 100\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case ev := <-events:
		if ev.Path != w.Path() {
			t.Errorf("Path = %q, want %q", ev.Path, w.Path())
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change event")
	}

	// The burst is coalesced.
	select {
	case ev := <-events:
		t.Errorf("unexpected second event %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_CloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	w, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
}

func TestNew_MissingDirectory(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "no", "such", "file.toml")); err == nil {
		t.Error("New() succeeded for a missing directory")
	}
}
