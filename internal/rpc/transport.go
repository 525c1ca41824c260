package rpc

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// DefaultCloseGrace is how long Close waits for a child to exit on its own
// before killing it.
const DefaultCloseGrace = 500 * time.Millisecond

// Transport is the duplex byte stream a Client runs over.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
}

// StreamTransport wraps a separate reader, writer and closer as a
// Transport. It is used for sockets, replayed recordings and tests.
type StreamTransport struct {
	r         io.Reader
	w         io.Writer
	c         io.Closer
	closeOnce sync.Once
	closeErr  error
}

// NewStreamTransport creates a transport from its parts. c may be nil.
func NewStreamTransport(r io.Reader, w io.Writer, c io.Closer) *StreamTransport {
	return &StreamTransport{r: r, w: w, c: c}
}

// Read implements io.Reader.
func (t *StreamTransport) Read(p []byte) (int, error) { return t.r.Read(p) }

// Write implements io.Writer.
func (t *StreamTransport) Write(p []byte) (int, error) { return t.w.Write(p) }

// Close closes the underlying closer once.
func (t *StreamTransport) Close() error {
	t.closeOnce.Do(func() {
		if t.c != nil {
			t.closeErr = t.c.Close()
		}
	})
	return t.closeErr
}

// Dial connects to a remote editor listening on address. Addresses that
// look like a path (contain a separator or have no port) are dialed as
// unix sockets, everything else as TCP.
func Dial(ctx context.Context, address string) (*StreamTransport, error) {
	network := "tcp"
	if strings.ContainsRune(address, os.PathSeparator) || !strings.Contains(address, ":") {
		network = "unix"
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	return NewStreamTransport(conn, conn, conn), nil
}

// ProcessConfig defines how to start an embedded editor process.
type ProcessConfig struct {
	// Command is the executable to run.
	Command string

	// Args are command-line arguments, typically ["--embed"].
	Args []string

	// Env are additional environment variables.
	Env map[string]string

	// WorkDir is the working directory.
	WorkDir string

	// Stderr receives the process's stderr. Nil discards it.
	Stderr io.Writer

	// CloseGrace bounds the wait for exit after stdin closes.
	// Zero means DefaultCloseGrace.
	CloseGrace time.Duration
}

// ProcessTransport speaks over the stdin/stdout pipes of a child process.
type ProcessTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	grace  time.Duration

	closeOnce sync.Once
	closeErr  error
}

// StartProcess launches the configured command and returns a transport
// over its pipes.
func StartProcess(ctx context.Context, cfg ProcessConfig) (*ProcessTransport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("start process: empty command")
	}

	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.WorkDir
	cmd.Stderr = cfg.Stderr
	if len(cfg.Env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.Env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	grace := cfg.CloseGrace
	if grace <= 0 {
		grace = DefaultCloseGrace
	}
	return &ProcessTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		grace:  grace,
	}, nil
}

// Read implements io.Reader.
func (t *ProcessTransport) Read(p []byte) (int, error) { return t.stdout.Read(p) }

// Write implements io.Writer.
func (t *ProcessTransport) Write(p []byte) (int, error) { return t.stdin.Write(p) }

// Close closes the pipes and waits for the process. Closing stdin asks an
// embedded editor to exit; it is killed if it is still running after the
// grace period.
func (t *ProcessTransport) Close() error {
	t.closeOnce.Do(func() {
		t.stdin.Close()
		t.stdout.Close()

		done := make(chan error, 1)
		go func() { done <- t.cmd.Wait() }()

		timer := time.NewTimer(t.grace)
		defer timer.Stop()
		select {
		case t.closeErr = <-done:
		case <-timer.C:
			_ = t.cmd.Process.Kill()
			t.closeErr = <-done
		}
	})
	return t.closeErr
}

// Pid returns the child process id.
func (t *ProcessTransport) Pid() int {
	if t.cmd.Process == nil {
		return 0
	}
	return t.cmd.Process.Pid
}
