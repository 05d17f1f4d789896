package protocol

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelimitedCodec_ReadRequestAtEOF(t *testing.T) {
	codec, err := NewCodec(FramingDelimited)
	require.NoError(t, err)

	req, err := codec.ReadRequest(bytes.NewReader([]byte("Dipole,M1|||<scene/>")))
	require.NoError(t, err)
	assert.Equal(t, []string{"Dipole", "M1"}, req.Exports)
	assert.Equal(t, "<scene/>", string(req.Scene))
}

func TestDelimitedCodec_ReadRequestWhenSenderGoesIdle(t *testing.T) {
	codec, err := NewCodec(FramingDelimited, WithRequestIdle(20*time.Millisecond))
	require.NoError(t, err)

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	go func() {
		// A pause before the separator must not end the request.
		_, _ = client.Write([]byte("Dip"))
		time.Sleep(100 * time.Millisecond)
		_, _ = client.Write([]byte("ole|||<scene/>"))
	}()

	req, err := codec.ReadRequest(server)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dipole"}, req.Exports)
	assert.Equal(t, "<scene/>", string(req.Scene))

}
