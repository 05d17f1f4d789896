package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/raysim/pkg/domain"
	"github.com/fxamacker/cbor/v2"
)

// MaxMessageSize bounds one length-prefixed message. A chunk is extended to a
// line end, so a single very long line can exceed the configured chunk size.
const MaxMessageSize = 64 << 20

type messageKind uint8

const (
	kindRequest messageKind = iota + 1
	kindChunk
	kindEnd
	kindFailure
)

// message is the CBOR document carried by every length-prefixed frame.
type message struct {
	Kind        messageKind `cbor:"1,keyasint"`
	Exports     []string    `cbor:"2,keyasint,omitempty"`
	Name        string      `cbor:"3,keyasint,omitempty"`
	Data        []byte      `cbor:"4,keyasint,omitempty"`
	Compression Compression `cbor:"5,keyasint,omitempty"`
	Size        int         `cbor:"6,keyasint,omitempty"`
	Token       string      `cbor:"7,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("protocol: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("protocol: CBOR decoder initialization failed: " + err.Error())
	}
}

// writeMessage encodes m as CBOR and writes it with a 4-byte length prefix.
func writeMessage(w io.Writer, m message) (int, error) {
	data, err := encMode.Marshal(m)
	if err != nil {
		return 0, fmt.Errorf("encoding message: %w", err)
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))
	n, err := w.Write(prefix[:])
	if err != nil {
		return n, fmt.Errorf("writing message length: %w", err)
	}
	m2, err := w.Write(data)
	if err != nil {
		return n + m2, fmt.Errorf("writing message body: %w", err)
	}
	return n + m2, nil
}

// readMessage reads one length-prefixed CBOR message.
func readMessage(r io.Reader) (message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return message{}, fmt.Errorf("%w: stream closed mid-message", domain.ErrProtocol)
		}
		return message{}, fmt.Errorf("reading message length: %w", err)
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxMessageSize {
		return message{}, fmt.Errorf("%w: message size %d exceeds maximum %d", domain.ErrProtocol, length, MaxMessageSize)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return message{}, fmt.Errorf("%w: reading message body: %w", domain.ErrProtocol, err)
	}
	var m message
	if err := decMode.Unmarshal(data, &m); err != nil {
		return message{}, fmt.Errorf("%w: decoding message: %w", domain.ErrProtocol, err)
	}
	return m, nil
}

type framedCodec struct {
	chunkSize int
	compress  Compression
}

func (c *framedCodec) Framing() Framing {
	return FramingLengthPrefixed
}

func (c *framedCodec) WriteRequest(w io.Writer, req Request) error {
	_, err := writeMessage(w, message{
		Kind:    kindRequest,
		Exports: req.Exports,
		Data:    req.Scene,
	})
	return err
}

func (c *framedCodec) ReadRequest(r io.Reader) (Request, error) {
	m, err := readMessage(r)
	if err != nil {
		return Request{}, err
	}
	if m.Kind != kindRequest {
		return Request{}, fmt.Errorf("%w: expected request, got message kind %d", domain.ErrProtocol, m.Kind)
	}
	return Request{Exports: m.Exports, Scene: m.Data}, nil
}

func (c *framedCodec) NewResponseWriter(w io.Writer) ResponseWriter {
	return &framedWriter{w: w, chunkSize: c.chunkSize, compress: c.compress}
}

func (c *framedCodec) WriteFailure(w io.Writer, token string) error {
	_, err := writeMessage(w, message{Kind: kindFailure, Token: token})
	return err
}

func (c *framedCodec) ReadResponse(r io.Reader) ([]domain.ResultFile, error) {
	var chunks []domain.ResultFile
	for {
		m, err := readMessage(r)
		if err != nil {
			return nil, err
		}
		switch m.Kind {
		case kindChunk:
			data := m.Data
			if m.Compression != CompressionNone {
				if data, err = decompressChunk(m.Data, m.Compression, m.Size); err != nil {
					return nil, fmt.Errorf("%w: chunk of %s: %w", domain.ErrProtocol, m.Name, err)
				}
			}
			chunks = append(chunks, domain.ResultFile{Name: m.Name, Content: data})
		case kindEnd:
			return chunks, nil
		case kindFailure:
			return nil, ErrorForToken(m.Token)
		default:
			return nil, fmt.Errorf("%w: unexpected message kind %d", domain.ErrProtocol, m.Kind)
		}
	}
}

type framedWriter struct {
	w         io.Writer
	chunkSize int
	compress  Compression
	written   int64
	closed    bool
}

func (fw *framedWriter) WriteFile(name string, content []byte) error {
	if fw.closed {
		return fmt.Errorf("write to closed response writer")
	}
	for _, chunk := range ChunkLines(content, fw.chunkSize) {
		m := message{Kind: kindChunk, Name: name, Data: chunk}
		if fw.compress != CompressionNone {
			if packed, ok := compressChunk(chunk, fw.compress); ok {
				m.Data, m.Compression, m.Size = packed, fw.compress, len(chunk)
			}
		}
		n, err := writeMessage(fw.w, m)
		fw.written += int64(n)
		if err != nil {
			return fmt.Errorf("writing chunk of %s: %w", name, err)
		}
	}
	return nil
}

func (fw *framedWriter) Close() error {
	if fw.closed {
		return nil
	}
	fw.closed = true
	n, err := writeMessage(fw.w, message{Kind: kindEnd})
	fw.written += int64(n)
	return err
}

func (fw *framedWriter) Written() int64 {
	return fw.written
}
