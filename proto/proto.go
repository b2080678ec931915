// Package proto defines the frames exchanged over the device socket.
//
// All integers are little-endian.
//
//	request:  op u8 | arg u32 | n u32 | payload[n]
//	response: errno i32 | ret i32 | n u32 | payload[n]
package proto

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/ardnew/intstack/pkg"
)

// Op is a request opcode.
type Op uint8

// Request opcodes.
const (
	OpRead  Op = 1 // arg is the requested length
	OpWrite Op = 2 // payload is the write buffer
	OpIoctl Op = 3 // arg is the command, payload the argument slot
)

// String returns the opcode name.
func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpIoctl:
		return "ioctl"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Frame limits.
const (
	RequestHeaderSize  = 9
	ResponseHeaderSize = 12
	MaxPayload         = 64 << 10
)

// Request is a client call.
type Request struct {
	Op      Op
	Arg     uint32
	Payload []byte
}

// Response is the result of a Request.
type Response struct {
	Errno   int32
	Ret     int32
	Payload []byte
}

// WriteRequest encodes r to w in a single Write.
func WriteRequest(w io.Writer, r *Request) error {
	if len(r.Payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", pkg.ErrFrameTooLarge, len(r.Payload))
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = append(buf.B, byte(r.Op))
	buf.B = binary.LittleEndian.AppendUint32(buf.B, r.Arg)
	buf.B = binary.LittleEndian.AppendUint32(buf.B, uint32(len(r.Payload)))
	buf.B = append(buf.B, r.Payload...)
	_, err := w.Write(buf.B)
	return err
}

// ReadRequest decodes one request from rd. It returns io.EOF only when
// the stream ends cleanly before a frame.
func ReadRequest(rd io.Reader) (*Request, error) {
	var hdr [RequestHeaderSize]byte
	if _, err := io.ReadFull(rd, hdr[:]); err != nil {
		return nil, err
	}
	r := &Request{
		Op:  Op(hdr[0]),
		Arg: binary.LittleEndian.Uint32(hdr[1:5]),
	}
	payload, err := readPayload(rd, binary.LittleEndian.Uint32(hdr[5:9]))
	if err != nil {
		return nil, err
	}
	r.Payload = payload
	return r, nil
}

// WriteResponse encodes r to w.
func WriteResponse(w io.Writer, r *Response) error {
	if len(r.Payload) > MaxPayload {
		return fmt.Errorf("%w: %d bytes", pkg.ErrFrameTooLarge, len(r.Payload))
	}
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = binary.LittleEndian.AppendUint32(buf.B, uint32(r.Errno))
	buf.B = binary.LittleEndian.AppendUint32(buf.B, uint32(r.Ret))
	buf.B = binary.LittleEndian.AppendUint32(buf.B, uint32(len(r.Payload)))
	buf.B = append(buf.B, r.Payload...)
	_, err := w.Write(buf.B)
	return err
}

// ReadResponse decodes one response from rd.
func ReadResponse(rd io.Reader) (*Response, error) {
	var hdr [ResponseHeaderSize]byte
	if _, err := io.ReadFull(rd, hdr[:]); err != nil {
		return nil, err
	}
	r := &Response{
		Errno: int32(binary.LittleEndian.Uint32(hdr[0:4])),
		Ret:   int32(binary.LittleEndian.Uint32(hdr[4:8])),
	}
	payload, err := readPayload(rd, binary.LittleEndian.Uint32(hdr[8:12]))
	if err != nil {
		return nil, err
	}
	r.Payload = payload
	return r, nil
}

func readPayload(rd io.Reader, n uint32) ([]byte, error) {
	if n > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", pkg.ErrFrameTooLarge, n)
	}
	if n == 0 {
		return nil, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(rd, payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %w", pkg.ErrBadFrame, err)
	}
	return payload, nil
}
