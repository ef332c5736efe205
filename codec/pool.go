package codec

import (
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/panjf2000/gnet/v2/pkg/logging"

	"github.com/moqsien/gkreactor/iface"
)

var (
	encoderPool = sync.Pool{New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			logging.Fatalf("codec: zstd encoder: %v", err)
		}
		return enc
	}}
	// decoded output never exceeds the largest frame a codec accepts
	decoderPool = sync.Pool{New: func() any {
		dec, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(uint64(iface.MaxFrameLength)))
		if err != nil {
			logging.Fatalf("codec: zstd decoder: %v", err)
		}
		return dec
	}}
)

func getEncoder() *zstd.Encoder  { return encoderPool.Get().(*zstd.Encoder) }
func putEncoder(e *zstd.Encoder) { encoderPool.Put(e) }
func getDecoder() *zstd.Decoder  { return decoderPool.Get().(*zstd.Decoder) }
func putDecoder(d *zstd.Decoder) { decoderPool.Put(d) }
