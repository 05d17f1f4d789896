package protocol

import (
	"errors"

	"github.com/aretw0/raysim/pkg/domain"
)

// Wire constants of the delimited framing.
const (
	Delimiter = "|||"
	EndMarker = "|ENDOFTRANSMISSION|"

	// TokenSimulationError replaces the response when the ray-tracer failed.
	TokenSimulationError = "SimulationError"
	// TokenIndexError replaces the response when post-processing found too few rays.
	TokenIndexError = "IndexError"

	// DefaultChunkSize is the byte budget of one response chunk before line extension.
	DefaultChunkSize = 40960
)

var errorTokens = []string{TokenIndexError, TokenSimulationError}

// TokenFor maps a server-side failure to the token sent in place of the stream.
func TokenFor(err error) string {
	if errors.Is(err, domain.ErrInsufficientRays) {
		return TokenIndexError
	}
	return TokenSimulationError
}

// ErrorForToken maps a received token to its domain failure.
func ErrorForToken(token string) error {
	switch token {
	case TokenIndexError:
		return domain.ErrInsufficientRays
	case TokenSimulationError:
		return domain.ErrSimulationFailed
	default:
		return domain.ErrProtocol
	}
}
