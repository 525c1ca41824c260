package trace

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestRecordReplay(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf, "abc-123")
	if err != nil {
		t.Fatalf("NewRecorder() error = %v", err)
	}
	frames := [][]byte{{0x93, 0x02, 0xa1, 'x', 0x90}, {0x94, 0x01, 0x01, 0xc0, 0xc0}}
	for _, f := range frames {
		if _, err := rec.Write(f); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if rec.Written() != 10 {
		t.Errorf("Written() = %d, want 10", rec.Written())
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := rec.Write([]byte{1}); err == nil {
		t.Error("Write() after Close succeeded")
	}

	rep, err := NewReplay(&buf)
	if err != nil {
		t.Fatalf("NewReplay() error = %v", err)
	}
	defer rep.Close()

	if rep.Header.SessionID != "abc-123" || rep.Header.Version != 1 {
		t.Errorf("Header = %+v", rep.Header)
	}
	got, err := io.ReadAll(rep)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if want := bytes.Join(frames, nil); !bytes.Equal(got, want) {
		t.Errorf("replayed % x, want % x", got, want)
	}
}

func TestCreateOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.trace.zst")
	rec, err := Create(path, "file-session")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	rec.Write([]byte("payload"))
	if err := rec.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	rep, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rep.Close()
	got, _ := io.ReadAll(rep)
	if string(got) != "payload" {
		t.Errorf("replayed %q", got)
	}
	if n, _ := rep.Write([]byte("ignored")); n != 7 {
		t.Errorf("Write() = %d", n)
	}
}

func TestNewReplay_BadHeader(t *testing.T) {
	tests := map[string]string{
		"wrong magic": "other-trace 1 id 2024-01-01T00:00:00Z\n",
		"bad version": "nvimui-trace 9 id 2024-01-01T00:00:00Z\n",
		"bad time":    "nvimui-trace 1 id yesterday\n",
		"no newline":  "nvimui-trace 1 id",
		"too long":    strings.Repeat("x", maxHeaderLen+1),
	}
	for name, header := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			enc, _ := zstd.NewWriter(&buf)
			enc.Write([]byte(header))
			enc.Close()

			if _, err := NewReplay(&buf); !errors.Is(err, ErrBadHeader) {
				t.Errorf("NewReplay() error = %v, want ErrBadHeader", err)
			}
		})
	}
}
