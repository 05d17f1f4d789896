package domain

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/zeebo/blake3"
)

// Working directory layout.
const (
	// SceneFileLocal is where engines write the caller's scene before simulating.
	SceneFileLocal = "tmp.rml"
	// SceneFileServer is where the transport server persists a received scene.
	SceneFileServer = "beamline.rml"
	// ServerLogFile is the server-side diagnostic log.
	ServerLogFile = "server_log.txt"
	// AnalyzedSuffix is appended to an export name to form its result file.
	AnalyzedSuffix = "_analyzed_rays.dat"
	// RawRaysKind is the export kind requested from the ray-tracer.
	RawRaysKind = "RawRaysOutgoing"
)

// AnalyzedFileName returns the result file name for an export.
func AnalyzedFileName(export string) string {
	return export + AnalyzedSuffix
}

// RawRaysFileName returns the name of the raw export written by the ray-tracer.
func RawRaysFileName(export string) string {
	return export + "-" + RawRaysKind + ".csv"
}

// Scene is the serialized optical layout. It is passed by value to engines;
// simulations may rewrite the on-disk copy.
type Scene struct {
	Document []byte
}

// NewScene wraps a document.
func NewScene(doc string) Scene {
	return Scene{Document: []byte(doc)}
}

// LoadScene reads a scene document from disk.
func LoadScene(path string) (Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scene{}, fmt.Errorf("failed to read scene: %w", err)
	}
	return Scene{Document: data}, nil
}

// Digest returns the hex BLAKE3 hash of the document.
func (s Scene) Digest() string {
	sum := blake3.Sum256(s.Document)
	return hex.EncodeToString(sum[:])
}

// WriteFile writes the document to path, creating parent directories.
func (s Scene) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create scene directory: %w", err)
	}
	if err := os.WriteFile(path, s.Document, 0o644); err != nil {
		return fmt.Errorf("failed to write scene: %w", err)
	}
	return nil
}

// ResultFile is a named artifact produced by a simulation.
type ResultFile struct {
	Name    string
	Content []byte
}

// DedupExports removes duplicate export names, keeping first occurrence order.
func DedupExports(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}
