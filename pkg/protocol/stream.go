package protocol

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/raysim/pkg/domain"
)

// StreamWriter emits a delimited response stream.
type StreamWriter struct {
	w         io.Writer
	chunkSize int
	written   int64
	closed    bool
}

// NewStreamWriter returns a writer that chunks files by chunkSize bytes.
func NewStreamWriter(w io.Writer, chunkSize int) *StreamWriter {
	return &StreamWriter{w: w, chunkSize: chunkSize}
}

// WriteFile sends content as one or more "<name>|||<chunk>|||" units.
func (sw *StreamWriter) WriteFile(name string, content []byte) error {
	if sw.closed {
		return fmt.Errorf("write to closed StreamWriter")
	}
	for _, chunk := range ChunkLines(content, sw.chunkSize) {
		unit := make([]byte, 0, len(name)+len(chunk)+2*len(Delimiter))
		unit = append(unit, name...)
		unit = append(unit, Delimiter...)
		unit = append(unit, chunk...)
		unit = append(unit, Delimiter...)
		n, err := sw.w.Write(unit)
		sw.written += int64(n)
		if err != nil {
			return fmt.Errorf("writing chunk of %s: %w", name, err)
		}
	}
	return nil
}

// Close writes the end-of-transmission marker. The underlying writer is not closed.
func (sw *StreamWriter) Close() error {
	if sw.closed {
		return nil
	}
	sw.closed = true
	n, err := io.WriteString(sw.w, EndMarker)
	sw.written += int64(n)
	return err
}

// Written returns the number of bytes sent so far.
func (sw *StreamWriter) Written() int64 {
	return sw.written
}

// Decoder accumulates a delimited response across any number of partial reads.
// Parsing is attempted only once the end marker is present; error tokens abort
// as soon as they appear anywhere in the accumulated buffer.
type Decoder struct {
	buf     bytes.Buffer
	scanned int
	chunks  []domain.ResultFile
	done    bool
	err     error
}

// NewDecoder returns an empty decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed appends p to the buffer. It reports done once the stream has been fully
// decoded, or a non-nil error when an error token or a malformed stream is seen.
func (d *Decoder) Feed(p []byte) (bool, error) {
	if d.done || d.err != nil {
		return d.done, d.err
	}
	d.buf.Write(p)

	// Only the region that could hold a token not seen before is scanned again.
	from := max(0, d.scanned-len(EndMarker)+1)
	window := d.buf.Bytes()[from:]
	d.scanned = d.buf.Len()

	for _, token := range errorTokens {
		if bytes.Contains(window, []byte(token)) {
			d.err = ErrorForToken(token)
			return false, d.err
		}
	}

	idx := bytes.Index(window, []byte(EndMarker))
	if idx < 0 {
		return false, nil
	}

	chunks, err := ParseStream(d.buf.Bytes()[:from+idx])
	if err != nil {
		d.err = err
		return false, err
	}
	d.chunks = chunks
	d.done = true
	return true, nil
}

// Done reports whether the end marker has been decoded.
func (d *Decoder) Done() bool {
	return d.done
}

// Chunks returns the decoded (name, content) pairs in stream order.
func (d *Decoder) Chunks() []domain.ResultFile {
	return d.chunks
}

// ParseStream splits a stream body (everything before the end marker) into
// (name, content) pairs.
func ParseStream(body []byte) ([]domain.ResultFile, error) {
	if len(body) == 0 {
		return nil, nil
	}
	trimmed, ok := bytes.CutSuffix(body, []byte(Delimiter))
	if !ok {
		return nil, fmt.Errorf("%w: stream does not end with %q", domain.ErrProtocol, Delimiter)
	}

	parts := strings.Split(string(trimmed), Delimiter)
	if len(parts)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of stream fields (%d)", domain.ErrProtocol, len(parts))
	}

	chunks := make([]domain.ResultFile, 0, len(parts)/2)
	for i := 0; i < len(parts); i += 2 {
		chunks = append(chunks, domain.ResultFile{
			Name:    parts[i],
			Content: []byte(parts[i+1]),
		})
	}
	return chunks, nil
}

// MergeChunks joins consecutive chunks of the same file.
func MergeChunks(chunks []domain.ResultFile) []domain.ResultFile {
	var files []domain.ResultFile
	for _, c := range chunks {
		if n := len(files); n > 0 && files[n-1].Name == c.Name {
			files[n-1].Content = append(files[n-1].Content, c.Content...)
			continue
		}
		files = append(files, domain.ResultFile{Name: c.Name, Content: bytes.Clone(c.Content)})
	}
	return files
}

// WriteChunks writes decoded chunks into dir. A chunk whose name matches the
// immediately preceding chunk is appended; otherwise the file is truncated.
// It returns the distinct file paths written, in order.
func WriteChunks(dir string, chunks []domain.ResultFile) ([]string, error) {
	var paths []string
	previous := ""
	for _, c := range chunks {
		if err := validName(c.Name); err != nil {
			return paths, err
		}
		path := filepath.Join(dir, c.Name)

		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if c.Name == previous {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		} else {
			paths = append(paths, path)
		}

		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			return paths, fmt.Errorf("opening result %s: %w", c.Name, err)
		}
		_, werr := f.Write(c.Content)
		cerr := f.Close()
		if werr != nil {
			return paths, fmt.Errorf("writing result %s: %w", c.Name, werr)
		}
		if cerr != nil {
			return paths, fmt.Errorf("closing result %s: %w", c.Name, cerr)
		}
		previous = c.Name
	}
	return paths, nil
}

// validName rejects names that would escape the working directory.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: invalid result file name %q", domain.ErrProtocol, name)
	}
	return nil
}
