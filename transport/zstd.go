package transport

import (
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
	"google.golang.org/grpc/encoding"
)

// zstdCompressorName is the wire name advertised in grpc-encoding for this
// codec, mirroring gzip's own registration under "gzip".
const zstdCompressorName = "zstd"

func init() {
	encoding.RegisterCompressor(&zstdCompressor{})
}

// zstdCompressor adapts klauspost/compress/zstd to grpc's encoding.Compressor
// interface. Encoders and decoders are expensive to create, so both are
// pooled; zstd.Encoder/Decoder are safe for reuse across Reset calls but not
// for concurrent use, hence the per-use checkout.
type zstdCompressor struct {
	encoders sync.Pool
	decoders sync.Pool
}

func (z *zstdCompressor) Name() string { return zstdCompressorName }

func (z *zstdCompressor) Compress(w io.Writer) (io.WriteCloser, error) {
	enc, _ := z.encoders.Get().(*zstd.Encoder)
	if enc == nil {
		var err error
		enc, err = zstd.NewWriter(w)
		if err != nil {
			return nil, err
		}
	} else {
		enc.Reset(w)
	}
	return &pooledEncoder{Encoder: enc, pool: &z.encoders}, nil
}

func (z *zstdCompressor) Decompress(r io.Reader) (io.Reader, error) {
	dec, _ := z.decoders.Get().(*zstd.Decoder)
	if dec == nil {
		var err error
		dec, err = zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
	} else {
		if err := dec.Reset(r); err != nil {
			return nil, err
		}
	}
	return &pooledDecoder{Decoder: dec, pool: &z.decoders}, nil
}

type pooledEncoder struct {
	*zstd.Encoder
	pool *sync.Pool
}

func (p *pooledEncoder) Close() error {
	err := p.Encoder.Close()
	p.pool.Put(p.Encoder)
	return err
}

// pooledDecoder returns the underlying *zstd.Decoder to the pool once grpc
// is done reading a message. grpc-go never calls Close on the Reader it gets
// from Decompress, so Read below returns the decoder to the pool instead, the
// first time it sees io.EOF.
type pooledDecoder struct {
	*zstd.Decoder
	pool    *sync.Pool
	pooled  bool
}

func (p *pooledDecoder) Read(b []byte) (int, error) {
	n, err := p.Decoder.Read(b)
	if err == io.EOF && !p.pooled {
		p.pooled = true
		p.pool.Put(p.Decoder)
	}
	return n, err
}
