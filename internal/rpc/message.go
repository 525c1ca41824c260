package rpc

import (
	"bufio"
	"fmt"
	"io"
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// Wire message types.
const (
	TypeRequest      = 0
	TypeResponse     = 1
	TypeNotification = 2
)

// Message is a decoded frame: *Request, *Response or *Notification.
type Message interface {
	messageType() int
}

// Request is a call from the remote that expects a Response.
type Request struct {
	ID     uint64
	Method string
	Params []any
}

// Response answers an earlier Request.
type Response struct {
	ID     uint64
	Error  any
	Result any
}

// Notification is a one-way message.
type Notification struct {
	Method string
	Params []any
}

func (*Request) messageType() int      { return TypeRequest }
func (*Response) messageType() int     { return TypeResponse }
func (*Notification) messageType() int { return TypeNotification }

// Neovim ext types. The payload of each is a msgpack integer handle.
const (
	extBuffer  int8 = 0
	extWindow  int8 = 1
	extTabpage int8 = 2
)

// Buffer is a remote buffer handle.
type Buffer int64

// Window is a remote window handle.
type Window int64

// Tabpage is a remote tabpage handle.
type Tabpage int64

// Handle returns the integer handle.
func (b Buffer) Handle() int64 { return int64(b) }

// Handle returns the integer handle.
func (w Window) Handle() int64 { return int64(w) }

// Handle returns the integer handle.
func (t Tabpage) Handle() int64 { return int64(t) }

// MarshalMsgpack implements msgpack.Marshaler.
func (b Buffer) MarshalMsgpack() ([]byte, error) { return msgpack.Marshal(int64(b)) }

// MarshalMsgpack implements msgpack.Marshaler.
func (w Window) MarshalMsgpack() ([]byte, error) { return msgpack.Marshal(int64(w)) }

// MarshalMsgpack implements msgpack.Marshaler.
func (t Tabpage) MarshalMsgpack() ([]byte, error) { return msgpack.Marshal(int64(t)) }

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (b *Buffer) UnmarshalMsgpack(data []byte) error { return unmarshalHandle(data, (*int64)(b)) }

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (w *Window) UnmarshalMsgpack(data []byte) error { return unmarshalHandle(data, (*int64)(w)) }

// UnmarshalMsgpack implements msgpack.Unmarshaler.
func (t *Tabpage) UnmarshalMsgpack(data []byte) error { return unmarshalHandle(data, (*int64)(t)) }

func unmarshalHandle(data []byte, out *int64) error {
	var v int64
	if err := msgpack.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode handle: %w", err)
	}
	*out = v
	return nil
}

func init() {
	msgpack.RegisterExt(extBuffer, (*Buffer)(nil))
	msgpack.RegisterExt(extWindow, (*Window)(nil))
	msgpack.RegisterExt(extTabpage, (*Tabpage)(nil))
}

// Decoder reads frames from a byte stream.
type Decoder struct {
	dec *msgpack.Decoder
}

// NewDecoder creates a frame decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: msgpack.NewDecoder(bufio.NewReaderSize(r, 64*1024))}
}

// Next decodes the next frame. Errors wrapping ErrMalformedFrame leave the
// stream positioned after the bad frame; any other error is fatal to the
// stream.
func (d *Decoder) Next() (Message, error) {
	raw, err := d.dec.DecodeInterface()
	if err != nil {
		return nil, err
	}
	return parseMessage(raw)
}

// parseMessage validates the shape of a decoded top-level value.
func parseMessage(raw any) (Message, error) {
	arr, ok := raw.([]any)
	if !ok {
		return nil, malformed(raw, "frame is %T, not an array", raw)
	}
	if len(arr) == 0 {
		return nil, malformed(raw, "empty frame")
	}
	kind, ok := AsInt64(arr[0])
	if !ok {
		return nil, malformed(raw, "message type is %T", arr[0])
	}

	switch kind {
	case TypeRequest:
		if len(arr) != 4 {
			return nil, malformed(raw, "request has %d elements", len(arr))
		}
		id, ok := asUint64(arr[1])
		if !ok {
			return nil, malformed(raw, "request id is %T", arr[1])
		}
		method, ok := asString(arr[2])
		if !ok {
			return nil, malformed(raw, "request method is %T", arr[2])
		}
		params, ok := asParams(arr[3])
		if !ok {
			return nil, malformed(raw, "request params is %T", arr[3])
		}
		return &Request{ID: id, Method: method, Params: params}, nil

	case TypeResponse:
		if len(arr) != 4 {
			return nil, malformed(raw, "response has %d elements", len(arr))
		}
		id, ok := asUint64(arr[1])
		if !ok {
			return nil, malformed(raw, "response id is %T", arr[1])
		}
		return &Response{ID: id, Error: arr[2], Result: arr[3]}, nil

	case TypeNotification:
		if len(arr) != 3 {
			return nil, malformed(raw, "notification has %d elements", len(arr))
		}
		method, ok := asString(arr[1])
		if !ok {
			return nil, malformed(raw, "notification method is %T", arr[1])
		}
		params, ok := asParams(arr[2])
		if !ok {
			return nil, malformed(raw, "notification params is %T", arr[2])
		}
		return &Notification{Method: method, Params: params}, nil

	default:
		return nil, malformed(raw, "unknown message type %d", kind)
	}
}

func encodeRequest(id uint64, method string, params []any) ([]byte, error) {
	return msgpack.Marshal([]any{TypeRequest, id, method, nonNilParams(params)})
}

func encodeResponse(id uint64, errPayload, result any) ([]byte, error) {
	return msgpack.Marshal([]any{TypeResponse, id, errPayload, result})
}

func encodeNotification(method string, params []any) ([]byte, error) {
	return msgpack.Marshal([]any{TypeNotification, method, nonNilParams(params)})
}

func nonNilParams(params []any) []any {
	if params == nil {
		return []any{}
	}
	return params
}

func asParams(v any) ([]any, bool) {
	switch p := v.(type) {
	case nil:
		return []any{}, true
	case []any:
		return p, true
	default:
		return nil, false
	}
}

// AsInt64 converts any msgpack integer, float with no fraction, or handle
// type to int64.
func AsInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case uint:
		if uint64(n) > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float32:
		if float32(int64(n)) != n {
			return 0, false
		}
		return int64(n), true
	case float64:
		if float64(int64(n)) != n {
			return 0, false
		}
		return int64(n), true
	case Buffer:
		return int64(n), true
	case Window:
		return int64(n), true
	case Tabpage:
		return int64(n), true
	case *Buffer:
		if n == nil {
			return 0, false
		}
		return int64(*n), true
	case *Window:
		if n == nil {
			return 0, false
		}
		return int64(*n), true
	case *Tabpage:
		if n == nil {
			return 0, false
		}
		return int64(*n), true
	}
	return 0, false
}

func asUint64(v any) (uint64, bool) {
	if n, ok := v.(uint64); ok {
		return n, true
	}
	n, ok := AsInt64(v)
	if !ok || n < 0 {
		return 0, false
	}
	return uint64(n), true
}

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}
