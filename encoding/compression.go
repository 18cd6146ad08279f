package encoding

import (
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// ZstdName is the content coding token for zstd.
const ZstdName = "zstd"

// Zstd compresses host API payloads with pooled zstd encoders and decoders.
type Zstd struct {
	level       zstd.EncoderLevel
	encoderPool sync.Pool
	decoderPool sync.Pool
}

// NewZstd creates a compressor for a config level (1-4). Level 0 returns
// nil, meaning compression is disabled.
func NewZstd(level int) *Zstd {
	if level <= 0 {
		return nil
	}
	return &Zstd{level: levelToZstd(level)}
}

// levelToZstd maps config levels (1-4) to zstd.EncoderLevel
func levelToZstd(level int) zstd.EncoderLevel {
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 2:
		return zstd.SpeedDefault
	case 3:
		return zstd.SpeedBetterCompression
	case 4:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedFastest
	}
}

// Level reports the zstd encoder level in use.
func (z *Zstd) Level() zstd.EncoderLevel { return z.level }

// Compress returns a WriteCloser that compresses data written to it
func (z *Zstd) Compress(w io.Writer) (io.WriteCloser, error) {
	if enc, ok := z.encoderPool.Get().(*zstd.Encoder); ok {
		enc.Reset(w)
		return &pooledEncoder{enc: enc, pool: &z.encoderPool}, nil
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(z.level))
	if err != nil {
		return nil, err
	}
	return &pooledEncoder{enc: enc, pool: &z.encoderPool}, nil
}

// Decompress returns a Reader that decompresses data read from it
func (z *Zstd) Decompress(r io.Reader) (io.Reader, error) {
	if dec, ok := z.decoderPool.Get().(*zstd.Decoder); ok {
		if err := dec.Reset(r); err != nil {
			z.decoderPool.Put(dec)
			return nil, err
		}
		return &pooledDecoder{dec: dec, pool: &z.decoderPool}, nil
	}

	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &pooledDecoder{dec: dec, pool: &z.decoderPool}, nil
}

// pooledEncoder wraps zstd.Encoder to return it to pool on Close
type pooledEncoder struct {
	enc  *zstd.Encoder
	pool *sync.Pool
}

func (p *pooledEncoder) Write(data []byte) (int, error) {
	return p.enc.Write(data)
}

func (p *pooledEncoder) Close() error {
	err := p.enc.Close()
	p.pool.Put(p.enc)
	return err
}

// pooledDecoder wraps zstd.Decoder to return it to pool when done
type pooledDecoder struct {
	dec      *zstd.Decoder
	pool     *sync.Pool
	returned bool
}

func (p *pooledDecoder) Read(data []byte) (int, error) {
	if p.returned {
		return 0, io.EOF
	}
	n, err := p.dec.Read(data)
	if err == io.EOF {
		p.returned = true
		p.pool.Put(p.dec)
	}
	return n, err
}

// AcceptsZstd reports whether an Accept-Encoding header lists zstd with a
// non-zero quality.
func AcceptsZstd(acceptEncoding string) bool {
	for _, part := range strings.Split(acceptEncoding, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(coding), ZstdName) {
			continue
		}
		q := strings.ReplaceAll(strings.TrimSpace(params), " ", "")
		return q != "q=0" && q != "q=0.0" && q != "q=0.00" && q != "q=0.000"
	}
	return false
}
