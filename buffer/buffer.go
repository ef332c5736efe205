/*
Buffer is a growable byte container with separate read and write cursors.

	+-------------------+------------------+------------------+
	| prependable bytes |  readable bytes  |  writable bytes  |
	|                   |     (CONTENT)    |                  |
	+-------------------+------------------+------------------+
	|                   |                  |                  |
	0      <=      readerIndex   <=   writerIndex    <=     len(buf)
*/
package buffer

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/panjf2000/gnet/v2/pkg/pool/byteslice"

	"github.com/moqsien/gkreactor/sys"
)

const (
	CheapPrepend = 8
	InitialSize  = 1024
	// extra space offered to a single readv beyond the buffer's own free space.
	SpareSize = 64 << 10
)

var (
	crlf = []byte("\r\n")
	eol  = []byte("\n")
)

type Buffer struct {
	buf         []byte
	readerIndex int
	writerIndex int
}

func New(initialSize ...int) *Buffer {
	size := InitialSize
	if len(initialSize) > 0 && initialSize[0] > 0 {
		size = initialSize[0]
	}
	return &Buffer{
		buf:         make([]byte, CheapPrepend+size),
		readerIndex: CheapPrepend,
		writerIndex: CheapPrepend,
	}
}

func (that *Buffer) ReadableBytes() int { return that.writerIndex - that.readerIndex }

func (that *Buffer) WritableBytes() int { return len(that.buf) - that.writerIndex }

func (that *Buffer) PrependableBytes() int { return that.readerIndex }

func (that *Buffer) Cap() int { return cap(that.buf) }

// Peek returns the readable region. The slice is only valid until the next
// mutation of the buffer.
func (that *Buffer) Peek() []byte {
	return that.buf[that.readerIndex:that.writerIndex]
}

func (that *Buffer) checkReadable(n int) {
	if n < 0 || n > that.ReadableBytes() {
		panic(fmt.Sprintf("buffer: %d bytes requested, only %d readable", n, that.ReadableBytes()))
	}
}

func (that *Buffer) Retrieve(n int) {
	that.checkReadable(n)
	if n < that.ReadableBytes() {
		that.readerIndex += n
	} else {
		that.RetrieveAll()
	}
}

func (that *Buffer) RetrieveAll() {
	that.readerIndex = CheapPrepend
	that.writerIndex = CheapPrepend
}

func (that *Buffer) RetrieveAsString(n int) string {
	that.checkReadable(n)
	s := string(that.buf[that.readerIndex : that.readerIndex+n])
	that.Retrieve(n)
	return s
}

func (that *Buffer) RetrieveAllAsString() string {
	return that.RetrieveAsString(that.ReadableBytes())
}

// RetrieveAsBytes returns a copy of the first n readable bytes and consumes them.
func (that *Buffer) RetrieveAsBytes(n int) []byte {
	that.checkReadable(n)
	b := make([]byte, n)
	copy(b, that.buf[that.readerIndex:])
	that.Retrieve(n)
	return b
}

func (that *Buffer) Append(data []byte) {
	that.EnsureWritableBytes(len(data))
	copy(that.buf[that.writerIndex:], data)
	that.writerIndex += len(data)
}

func (that *Buffer) AppendString(s string) {
	that.EnsureWritableBytes(len(s))
	copy(that.buf[that.writerIndex:], s)
	that.writerIndex += len(s)
}

func (that *Buffer) EnsureWritableBytes(n int) {
	if that.WritableBytes() < n {
		that.makeSpace(n)
	}
}

// BeginWrite returns the writable region; pair it with HasWritten.
func (that *Buffer) BeginWrite() []byte {
	return that.buf[that.writerIndex:]
}

func (that *Buffer) HasWritten(n int) {
	if n < 0 || n > that.WritableBytes() {
		panic(fmt.Sprintf("buffer: %d bytes written, only %d writable", n, that.WritableBytes()))
	}
	that.writerIndex += n
}

func (that *Buffer) Unwrite(n int) {
	that.checkReadable(n)
	that.writerIndex -= n
}

// Prepend writes data right before the readable region.
func (that *Buffer) Prepend(data []byte) {
	if len(data) > that.PrependableBytes() {
		panic(fmt.Sprintf("buffer: %d bytes prepended, only %d prependable", len(data), that.PrependableBytes()))
	}
	that.readerIndex -= len(data)
	copy(that.buf[that.readerIndex:], data)
}

func (that *Buffer) makeSpace(n int) {
	if that.WritableBytes()+that.PrependableBytes() < n+CheapPrepend {
		grown := make([]byte, that.writerIndex+n)
		copy(grown, that.buf[:that.writerIndex])
		that.buf = grown
		return
	}
	readable := that.ReadableBytes()
	copy(that.buf[CheapPrepend:], that.buf[that.readerIndex:that.writerIndex])
	that.readerIndex = CheapPrepend
	that.writerIndex = that.readerIndex + readable
}

// Shrink drops unused capacity, keeping reserve writable bytes.
func (that *Buffer) Shrink(reserve int) {
	readable := that.ReadableBytes()
	shrunk := make([]byte, CheapPrepend+readable+reserve)
	copy(shrunk[CheapPrepend:], that.buf[that.readerIndex:that.writerIndex])
	that.buf = shrunk
	that.readerIndex = CheapPrepend
	that.writerIndex = CheapPrepend + readable
}

func (that *Buffer) FindDelimiter(delim []byte) int {
	if len(delim) == 0 {
		return -1
	}
	return bytes.Index(that.Peek(), delim)
}

// FindCRLF returns the offset of the first "\r\n" from the read cursor, or -1.
func (that *Buffer) FindCRLF() int {
	return that.FindDelimiter(crlf)
}

func (that *Buffer) FindEOL() int {
	return that.FindDelimiter(eol)
}

func (that *Buffer) AppendInt32(x int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(x))
	that.Append(b[:])
}

func (that *Buffer) PrependInt32(x int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(x))
	that.Prepend(b[:])
}

func (that *Buffer) PeekInt32() int32 {
	that.checkReadable(4)
	return int32(binary.BigEndian.Uint32(that.buf[that.readerIndex:]))
}

func (that *Buffer) ReadInt32() int32 {
	x := that.PeekInt32()
	that.Retrieve(4)
	return x
}

// ReadFd reads from fd with a single readv into the writable region plus a
// pooled spare slice, so one call can take more than WritableBytes.
func (that *Buffer) ReadFd(fd int) (int, error) {
	extra := byteslice.Get(SpareSize)
	defer byteslice.Put(extra)

	writable := that.WritableBytes()
	iov := [][]byte{that.buf[that.writerIndex:], extra}
	if writable >= len(extra) {
		iov = iov[:1]
	}
	n, err := sys.Readv(fd, iov)
	if err != nil {
		return 0, err
	}
	if n <= writable {
		that.writerIndex += n
	} else {
		that.writerIndex = len(that.buf)
		that.Append(extra[:n-writable])
	}
	return n, nil
}

// WriteFd writes the readable region to fd and consumes what was written.
func (that *Buffer) WriteFd(fd int) (int, error) {
	n, err := sys.Write(fd, that.Peek())
	if n > 0 {
		that.Retrieve(n)
	}
	return n, err
}
