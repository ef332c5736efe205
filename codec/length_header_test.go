package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/moqsien/gkreactor/buffer"
	"github.com/moqsien/gkreactor/utils/errs"
)

func TestFramesSurvivePartialDelivery(t *testing.T) {
	for _, compress := range []bool{false, true} {
		codec := NewLengthHeaderCodec(nil, compress)
		msgs := [][]byte{
			[]byte("hello"),
			{},
			bytes.Repeat([]byte("abc"), 5000),
		}
		var wire []byte
		for _, m := range msgs {
			frame, err := codec.Encode(m)
			if err != nil {
				t.Fatal(err)
			}
			wire = append(wire, frame.Peek()...)
		}

		in := buffer.New()
		var got [][]byte
		for i := 0; i < len(wire); i += 7 {
			end := min(i+7, len(wire))
			in.Append(wire[i:end])
			for {
				msg, ok, err := codec.Decode(in)
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					break
				}
				got = append(got, msg)
			}
		}
		if len(got) != len(msgs) || in.ReadableBytes() != 0 {
			t.Fatalf("compress=%v: decoded %d frames, %d bytes left", compress, len(got), in.ReadableBytes())
		}
		for i := range msgs {
			if !bytes.Equal(got[i], msgs[i]) {
				t.Fatalf("compress=%v: frame %d differs", compress, i)
			}
		}
	}
}

func TestHeaderLayout(t *testing.T) {
	frame, err := NewLengthHeaderCodec(nil, false).Encode([]byte("ping"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(frame.Peek(), []byte{0, 0, 0, 4, 'p', 'i', 'n', 'g'}) {
		t.Fatalf("frame bytes %v", frame.Peek())
	}

	compressed, err := NewLengthHeaderCodec(nil, true).Encode([]byte("ping"))
	if err != nil {
		t.Fatal(err)
	}
	if compressed.Peek()[0]&0x80 == 0 {
		t.Fatal("compressed flag not set")
	}
}

func TestOversizedFrameRejected(t *testing.T) {
	codec := NewLengthHeaderCodec(nil, false)
	codec.SetMaxFrameLength(16)

	if _, err := codec.Encode(make([]byte, 17)); !errors.Is(err, errs.ErrFrameTooLarge) {
		t.Fatalf("encode error %v", err)
	}
	in := buffer.New()
	in.AppendInt32(1 << 20)
	if _, _, err := codec.Decode(in); !errors.Is(err, errs.ErrFrameTooLarge) {
		t.Fatalf("decode error %v", err)
	}
}

func TestCorruptCompressedFrame(t *testing.T) {
	codec := NewLengthHeaderCodec(nil, true)
	in := buffer.New()
	hdr := compressedBit | 3
	in.AppendInt32(int32(hdr))
	in.AppendString("zzz")
	if _, _, err := codec.Decode(in); err == nil {
		t.Fatal("garbage accepted as a zstd payload")
	}
}

func TestDecompressedSizeIsBounded(t *testing.T) {
	frame, err := NewLengthHeaderCodec(nil, true).Encode(make([]byte, 1<<20))
	if err != nil {
		t.Fatal(err)
	}
	if frame.ReadableBytes() > 4096 {
		t.Fatalf("zeros compressed to %d bytes", frame.ReadableBytes())
	}

	small := NewLengthHeaderCodec(nil, true)
	small.SetMaxFrameLength(4096)
	in := buffer.New()
	in.Append(frame.Peek())
	if _, _, err = small.Decode(in); !errors.Is(err, errs.ErrFrameTooLarge) {
		t.Fatalf("decode error %v", err)
	}

	if _, err = small.Encode(make([]byte, 4097)); !errors.Is(err, errs.ErrFrameTooLarge) {
		t.Fatalf("encode error %v", err)
	}
}
