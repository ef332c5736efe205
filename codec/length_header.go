/*
LengthHeaderCodec frames messages with a 4-byte big-endian header:

	+-+-------------------------------+----------------------+
	|C|        payload length         |       payload        |
	+-+-------------------------------+----------------------+
	 1              31 bits

C marks a zstd-compressed payload.
*/
package codec

import (
	"errors"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/buffer"
	"github.com/moqsien/gkreactor/conn"
	"github.com/moqsien/gkreactor/iface"
	"github.com/moqsien/gkreactor/utils/errs"
)

const (
	HeaderLen     = 4
	compressedBit = uint32(1) << 31
	lengthMask    = compressedBit - 1
)

type FrameCallback func(c *conn.TcpConnection, message []byte, receiveTime time.Time)

type LengthHeaderCodec struct {
	frameCallback  FrameCallback
	compress       bool
	maxFrameLength int
}

func NewLengthHeaderCodec(cb FrameCallback, compress bool) *LengthHeaderCodec {
	return &LengthHeaderCodec{
		frameCallback:  cb,
		compress:       compress,
		maxFrameLength: iface.MaxFrameLength,
	}
}

// SetMaxFrameLength lowers the limit on both the wire payload and the
// decompressed message.
func (that *LengthHeaderCodec) SetMaxFrameLength(n int) {
	if n > 0 && n <= iface.MaxFrameLength {
		that.maxFrameLength = n
	}
}

// OnMessage is a conn.MessageCallback. It delivers every complete frame
// and shuts the connection down on a malformed one.
func (that *LengthHeaderCodec) OnMessage(c *conn.TcpConnection, buf *buffer.Buffer, receiveTime time.Time) {
	for {
		msg, ok, err := that.Decode(buf)
		if err != nil {
			logging.Errorf("LengthHeaderCodec[%s]: %v", c.Name(), err)
			buf.RetrieveAll()
			c.Shutdown()
			return
		}
		if !ok {
			return
		}
		that.frameCallback(c, msg, receiveTime)
	}
}

func (that *LengthHeaderCodec) Send(c *conn.TcpConnection, msg []byte) error {
	buf, err := that.Encode(msg)
	if err != nil {
		return err
	}
	c.SendBuffer(buf)
	return nil
}

func (that *LengthHeaderCodec) Encode(msg []byte) (*buffer.Buffer, error) {
	if len(msg) > that.maxFrameLength {
		return nil, errs.ErrFrameTooLarge
	}
	body := msg
	hdr := uint32(0)
	if that.compress {
		enc := getEncoder()
		body = enc.EncodeAll(msg, nil)
		putEncoder(enc)
		hdr = compressedBit
	}
	if len(body) > that.maxFrameLength {
		return nil, errs.ErrFrameTooLarge
	}
	buf := buffer.New(len(body))
	buf.Append(body)
	buf.PrependInt32(int32(hdr | uint32(len(body))))
	return buf, nil
}

// Decode consumes one frame from buf. ok is false while the frame is
// still incomplete.
func (that *LengthHeaderCodec) Decode(buf *buffer.Buffer) (msg []byte, ok bool, err error) {
	if buf.ReadableBytes() < HeaderLen {
		return nil, false, nil
	}
	hdr := uint32(buf.PeekInt32())
	length := int(hdr & lengthMask)
	if length > that.maxFrameLength {
		return nil, false, errs.ErrFrameTooLarge
	}
	if buf.ReadableBytes() < HeaderLen+length {
		return nil, false, nil
	}
	buf.Retrieve(HeaderLen)
	msg = buf.RetrieveAsBytes(length)
	if hdr&compressedBit != 0 {
		if msg, err = that.decompress(msg); err != nil {
			return nil, false, err
		}
	}
	return msg, true, nil
}

func (that *LengthHeaderCodec) decompress(payload []byte) ([]byte, error) {
	var h zstd.Header
	if h.Decode(payload) == nil && h.HasFCS && h.FrameContentSize > uint64(that.maxFrameLength) {
		return nil, errs.ErrFrameTooLarge
	}
	dec := getDecoder()
	msg, err := dec.DecodeAll(payload, nil)
	putDecoder(dec)
	if errors.Is(err, zstd.ErrDecoderSizeExceeded) || len(msg) > that.maxFrameLength {
		return nil, errs.ErrFrameTooLarge
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}
