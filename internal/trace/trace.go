// Package trace records the raw inbound byte stream of a session to a
// zstd-compressed file and replays it later as a read-only transport.
//
// A trace is one zstd stream holding a header line followed by the
// msgpack bytes exactly as they arrived:
//
//	nvimui-trace 1 <session-id> <RFC 3339 start time>\n
//	<msgpack frames...>
package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	magic   = "nvimui-trace"
	version = 1

	maxHeaderLen = 512
)

// ErrBadHeader is returned when a trace does not start with a valid header.
var ErrBadHeader = errors.New("invalid trace header")

// Header describes a recorded session.
type Header struct {
	Version   int
	SessionID string
	Started   time.Time
}

func (h Header) String() string {
	return fmt.Sprintf("%s %d %s %s\n", magic, h.Version, h.SessionID, h.Started.UTC().Format(time.RFC3339))
}

func parseHeader(line string) (Header, error) {
	fields := strings.Fields(line)
	if len(fields) != 4 || fields[0] != magic {
		return Header{}, fmt.Errorf("%w: %q", ErrBadHeader, line)
	}
	v, err := strconv.Atoi(fields[1])
	if err != nil || v != version {
		return Header{}, fmt.Errorf("%w: unsupported version %q", ErrBadHeader, fields[1])
	}
	started, err := time.Parse(time.RFC3339, fields[3])
	if err != nil {
		return Header{}, fmt.Errorf("%w: start time: %v", ErrBadHeader, err)
	}
	return Header{Version: v, SessionID: fields[2], Started: started}, nil
}

// Recorder compresses everything written to it. It is safe for concurrent
// use.
type Recorder struct {
	mu      sync.Mutex
	enc     *zstd.Encoder
	closer  io.Closer
	written int64
	closed  bool
}

// NewRecorder starts a trace on w and writes its header.
func NewRecorder(w io.Writer, sessionID string) (*Recorder, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	h := Header{Version: version, SessionID: sessionID, Started: time.Now()}
	if _, err := io.WriteString(enc, h.String()); err != nil {
		enc.Close()
		return nil, fmt.Errorf("write trace header: %w", err)
	}
	return &Recorder{enc: enc}, nil
}

// Create starts a trace in a new file at path.
func Create(path, sessionID string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace: %w", err)
	}
	r, err := NewRecorder(f, sessionID)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Write appends raw stream bytes.
func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, os.ErrClosed
	}
	n, err := r.enc.Write(p)
	r.written += int64(n)
	return n, err
}

// Written returns the number of uncompressed stream bytes recorded.
func (r *Recorder) Written() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close flushes the zstd stream and closes the file opened by Create.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.enc.Close()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Replay reads the stream bytes of a trace.
type Replay struct {
	Header Header

	dec    *zstd.Decoder
	r      *bufio.Reader
	closer io.Closer
	once   sync.Once
}

// NewReplay opens a trace stream and parses its header.
func NewReplay(r io.Reader) (*Replay, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	br := bufio.NewReaderSize(dec, 64*1024)

	line, err := readHeaderLine(br)
	if err != nil {
		dec.Close()
		return nil, err
	}
	h, err := parseHeader(line)
	if err != nil {
		dec.Close()
		return nil, err
	}
	return &Replay{Header: h, dec: dec, r: br}, nil
}

func readHeaderLine(br *bufio.Reader) (string, error) {
	var b strings.Builder
	for b.Len() < maxHeaderLen {
		c, err := br.ReadByte()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
		if c == '\n' {
			return b.String(), nil
		}
		b.WriteByte(c)
	}
	return "", fmt.Errorf("%w: header longer than %d bytes", ErrBadHeader, maxHeaderLen)
}

// Open replays the trace file at path.
func Open(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	r, err := NewReplay(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Read returns recorded stream bytes.
func (r *Replay) Read(p []byte) (int, error) {
	return r.r.Read(p)
}

// Write discards p. A replayed session has no remote to talk to.
func (r *Replay) Write(p []byte) (int, error) {
	return len(p), nil
}

// Close releases the decoder and the file opened by Open.
func (r *Replay) Close() error {
	var err error
	r.once.Do(func() {
		r.dec.Close()
		if r.closer != nil {
			err = r.closer.Close()
		}
	})
	return err
}
