package protocol

import (
	"fmt"
	"io"
	"time"

	"github.com/aretw0/raysim/pkg/domain"
)

// Framing selects the wire format.
type Framing string

const (
	FramingDelimited      Framing = "delimited"
	FramingLengthPrefixed Framing = "length-prefixed"
)

// ParseFraming parses a framing name; "" selects FramingDelimited.
func ParseFraming(name string) (Framing, error) {
	switch Framing(name) {
	case "", FramingDelimited:
		return FramingDelimited, nil
	case FramingLengthPrefixed:
		return FramingLengthPrefixed, nil
	default:
		return "", fmt.Errorf("unknown framing: %q", name)
	}
}

// ResponseWriter streams result files back to a client.
type ResponseWriter interface {
	WriteFile(name string, content []byte) error
	Close() error
	Written() int64
}

// Codec reads and writes one request/response exchange in a given framing.
type Codec interface {
	Framing() Framing
	WriteRequest(w io.Writer, req Request) error
	ReadRequest(r io.Reader) (Request, error)
	NewResponseWriter(w io.Writer) ResponseWriter
	WriteFailure(w io.Writer, token string) error
	// ReadResponse consumes the response stream and returns its chunks in order.
	// An error token in the stream yields its domain error and no chunks.
	ReadResponse(r io.Reader) ([]domain.ResultFile, error)
}

// Option configures a Codec.
type Option func(*options)

type options struct {
	chunkSize   int
	compress    Compression
	requestIdle time.Duration
}

// WithChunkSize sets the byte budget of a response chunk.
func WithChunkSize(size int) Option {
	return func(o *options) {
		o.chunkSize = size
	}
}

// WithRequestIdle sets how long a delimited request may stay quiet after its
// separator before the server treats it as complete. Zero waits for EOF only.
func WithRequestIdle(d time.Duration) Option {
	return func(o *options) {
		o.requestIdle = d
	}
}

// WithCompression compresses chunk bodies. Only the length-prefixed framing honours it.
func WithCompression(c Compression) Option {
	return func(o *options) {
		o.compress = c
	}
}

// NewCodec returns the codec for framing.
func NewCodec(framing Framing, opts ...Option) (Codec, error) {
	o := options{chunkSize: DefaultChunkSize, requestIdle: DefaultRequestIdle}
	for _, opt := range opts {
		opt(&o)
	}

	switch framing {
	case "", FramingDelimited:
		return &delimitedCodec{chunkSize: o.chunkSize, requestIdle: o.requestIdle}, nil
	case FramingLengthPrefixed:
		return &framedCodec{chunkSize: o.chunkSize, compress: o.compress}, nil
	default:
		return nil, fmt.Errorf("unknown framing: %q", framing)
	}
}
