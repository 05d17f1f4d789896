package protocol

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/aretw0/raysim/pkg/domain"
)

// Request asks the server to simulate Scene and return one result per export.
type Request struct {
	Exports []string
	Scene   []byte
}

// EncodeRequest serializes a request in the delimited framing.
// Neither the export names nor the scene may contain Delimiter.
func EncodeRequest(req Request) []byte {
	var buf bytes.Buffer
	buf.Grow(len(req.Scene) + len(Delimiter) + 16*len(req.Exports))
	buf.WriteString(strings.Join(req.Exports, ","))
	buf.WriteString(Delimiter)
	buf.Write(req.Scene)
	return buf.Bytes()
}

// DecodeRequest parses a delimited request. The scene is everything after the
// first delimiter, verbatim.
func DecodeRequest(data []byte) (Request, error) {
	head, scene, ok := bytes.Cut(data, []byte(Delimiter))
	if !ok {
		return Request{}, fmt.Errorf("%w: request has no %q separator", domain.ErrProtocol, Delimiter)
	}

	var exports []string
	if len(head) > 0 {
		exports = strings.Split(string(head), ",")
	}

	return Request{
		Exports: exports,
		Scene:   bytes.Clone(scene),
	}, nil
}
