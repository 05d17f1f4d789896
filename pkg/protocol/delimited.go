package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aretw0/raysim/pkg/domain"
)

const readBufferSize = 32 * 1024

// DefaultRequestIdle is how long a delimited request may stay quiet after its
// separator before it is considered complete.
const DefaultRequestIdle = 250 * time.Millisecond

type delimitedCodec struct {
	chunkSize   int
	requestIdle time.Duration
}

// deadlineReader is satisfied by net.Conn.
type deadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

func (c *delimitedCodec) Framing() Framing {
	return FramingDelimited
}

func (c *delimitedCodec) WriteRequest(w io.Writer, req Request) error {
	if _, err := w.Write(EncodeRequest(req)); err != nil {
		return fmt.Errorf("writing request: %w", err)
	}
	return nil
}

// ReadRequest reads one request. The delimited request carries no length: it
// ends at EOF when the sender half-closes, or, on readers with deadlines, once
// the separator has arrived and the sender has been idle for requestIdle.
func (c *delimitedCodec) ReadRequest(r io.Reader) (Request, error) {
	dr, idle := r.(deadlineReader)
	idle = idle && c.requestIdle > 0
	if idle {
		defer func() { _ = dr.SetReadDeadline(time.Time{}) }()
	}

	var data []byte
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		data = append(data, buf[:n]...)
		separated := bytes.Contains(data, []byte(Delimiter))
		if idle && separated && n > 0 {
			_ = dr.SetReadDeadline(time.Now().Add(c.requestIdle))
		}
		if err != nil {
			if errors.Is(err, io.EOF) || (separated && errors.Is(err, os.ErrDeadlineExceeded)) {
				return DecodeRequest(data)
			}
			return Request{}, fmt.Errorf("reading request: %w", err)
		}
	}
}

func (c *delimitedCodec) NewResponseWriter(w io.Writer) ResponseWriter {
	return NewStreamWriter(w, c.chunkSize)
}

func (c *delimitedCodec) WriteFailure(w io.Writer, token string) error {
	_, err := io.WriteString(w, token)
	return err
}

func (c *delimitedCodec) ReadResponse(r io.Reader) ([]domain.ResultFile, error) {
	dec := NewDecoder()
	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			done, ferr := dec.Feed(buf[:n])
			if ferr != nil {
				return nil, ferr
			}
			if done {
				return dec.Chunks(), nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: stream closed before %s", domain.ErrProtocol, EndMarker)
			}
			return nil, fmt.Errorf("reading response: %w", err)
		}
	}
}
