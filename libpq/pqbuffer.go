package libpq

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unsafe"
)

const maxMessageSize = 1 << 24

// ReadBuffer is a buffer one protocol message is read into.
//
// ReadUntypedMsg, ReadTypedMsg read data from reader and put into buffer.
// GetString, GetBytes, GetInt16 etc read typed data from buffer.
//
// Exported so that backend implementations (the pqtest package) can parse
// the client half of the protocol with the same machinery.
type ReadBuffer struct {
	Msg []byte
	tmp [4]byte
}

// reset sets b.Msg to exactly size, attempting to use spare capacity
// at the end of the existing slice when possible and allocating a new
// slice when necessary.
func (b *ReadBuffer) reset(size int) {
	if b.Msg != nil {
		b.Msg = b.Msg[len(b.Msg):]
	}

	if cap(b.Msg) >= size {
		b.Msg = b.Msg[:size]
		return
	}

	allocSize := size
	if allocSize < 4096 {
		allocSize = 4096
	}
	b.Msg = make([]byte, size, allocSize)
}

// ReadUntypedMsg reads a length-prefixed message with no type byte. Only the
// startup message is framed this way; ReadTypedMsg is used at all other
// times. This returns the number of bytes read and an error, if there was
// one. The number of bytes returned can be non-zero even with an error
// (e.g. if data was read but didn't validate) so that we can more
// accurately measure network traffic.
func (b *ReadBuffer) ReadUntypedMsg(rd io.Reader) (int, error) {
	nread, err := io.ReadFull(rd, b.tmp[:])
	if err != nil {
		return nread, err
	}
	size := int(binary.BigEndian.Uint32(b.tmp[:]))
	size -= 4 // size includes itself.
	if size > maxMessageSize || size < 0 {
		return nread, fmt.Errorf("message size %d out of bounds (0..%d)", size, maxMessageSize)
	}

	b.reset(size)
	n, err := io.ReadFull(rd, b.Msg)

	return nread + n, err
}

// ReadTypedMsg reads a message from the provided reader, returning its type
// byte, the number of bytes read, and an error if there was one.
func (b *ReadBuffer) ReadTypedMsg(rd *bufio.Reader) (byte, int, error) {
	typ, err := rd.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	n, err := b.ReadUntypedMsg(rd)
	return typ, n, err
}

// GetString reads a null-terminated string.
func (b *ReadBuffer) GetString() (string, error) {
	pos := bytes.IndexByte(b.Msg, 0)
	if pos == -1 {
		return "", fmt.Errorf("NUL terminator not found")
	}
	// Note: this is a conversion from a byte slice to a string which avoids
	// allocation and copying. It is safe because we never reuse the bytes in
	// our read buffer. It is effectively the same as: "s := string(b.Msg[:pos])"
	s := b.Msg[:pos]
	b.Msg = b.Msg[pos+1:]
	return *((*string)(unsafe.Pointer(&s))), nil
}

func (b *ReadBuffer) GetBytes(n int) ([]byte, error) {
	if len(b.Msg) < n {
		return nil, fmt.Errorf("insufficient data: %d", len(b.Msg))
	}
	v := b.Msg[:n]
	b.Msg = b.Msg[n:]
	return v, nil
}

func (b *ReadBuffer) GetInt16() (int16, error) {
	if len(b.Msg) < 2 {
		return 0, fmt.Errorf("insufficient data: %d", len(b.Msg))
	}
	v := int16(binary.BigEndian.Uint16(b.Msg[:2]))
	b.Msg = b.Msg[2:]
	return v, nil
}

func (b *ReadBuffer) GetInt32() (int32, error) {
	if len(b.Msg) < 4 {
		return 0, fmt.Errorf("insufficient data: %d", len(b.Msg))
	}
	v := int32(binary.BigEndian.Uint32(b.Msg[:4]))
	b.Msg = b.Msg[4:]
	return v, nil
}

// WriteBuffer accumulates one outgoing protocol message. InitMsg starts a
// typed message, InitUntypedMsg the length-only startup framing; FinishMsg
// back-patches the length and writes the message out.
type WriteBuffer struct {
	bytes.Buffer
	putbuf [64]byte
	typed  bool
}

// WriteCString writes a null-terminated string.
func (b *WriteBuffer) WriteCString(s string) error {
	if _, err := b.WriteString(s); err != nil {
		return err
	}
	return b.WriteByte(0)
}

func (b *WriteBuffer) PutInt16(v int16) {
	binary.BigEndian.PutUint16(b.putbuf[:], uint16(v))
	b.Write(b.putbuf[:2])
}

func (b *WriteBuffer) PutInt32(v int32) {
	binary.BigEndian.PutUint32(b.putbuf[:], uint32(v))
	b.Write(b.putbuf[:4])
}

func (b *WriteBuffer) InitMsg(typ byte) {
	b.Reset()
	b.typed = true
	b.putbuf[0] = typ
	b.Write(b.putbuf[:5]) // message type + message length
}

func (b *WriteBuffer) InitUntypedMsg() {
	b.Reset()
	b.typed = false
	b.Write(b.putbuf[:4]) // message length only
}

func (b *WriteBuffer) FinishMsg(w io.Writer) error {
	msg := b.Bytes()
	if b.typed {
		binary.BigEndian.PutUint32(msg[1:5], uint32(b.Len()-1))
	} else {
		binary.BigEndian.PutUint32(msg[0:4], uint32(b.Len()))
	}
	_, err := w.Write(msg) // err is not nil for partial write.
	b.Reset()
	return err
}
