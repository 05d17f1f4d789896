package detector

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/aretw0/raysim/pkg/domain"
	"github.com/aretw0/raysim/pkg/ports"
)

// Reading keys returned by Simulated.Read.
const (
	ReadingIntensity = "intensity"
	ReadingBandwidth = "bandwidth"
	ReadingHorFocus  = "hor_foc"
	ReadingVerFocus  = "ver_foc"
)

// CurrentCorrection scales simulated intensities from the 0.1 A the scene is
// computed for to the 0.3 A ring current.
const CurrentCorrection = 3

// readingColumns maps reading keys to their column in an analyzed file.
var readingColumns = []struct {
	key    string
	column int
	scale  float64
}{
	{ReadingIntensity, 3, CurrentCorrection},
	{ReadingBandwidth, 4, 1},
	{ReadingHorFocus, 5, 1},
	{ReadingVerFocus, 6, 1},
}

// Simulated is a detector whose readings come from the analyzed result of one export.
type Simulated struct {
	name   string
	export string
	dir    string

	mu     sync.Mutex
	engine ports.Engine
}

// NewSimulated creates a detector reading <dir>/<name>_analyzed_rays.dat.
func NewSimulated(name, dir string) *Simulated {
	return &Simulated{name: name, export: name, dir: dir}
}

func (s *Simulated) Name() string { return s.name }

// Export returns the element name requested from the simulation.
func (s *Simulated) Export() string { return s.export }

// IsSimulationTarget marks the detector as simulated.
func (s *Simulated) IsSimulationTarget() bool { return true }

// BindEngine ties the readings to the results of engine.
func (s *Simulated) BindEngine(engine ports.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = engine
}

// Trigger completes immediately: the acquisition is driven by the trigger device.
func (s *Simulated) Trigger() *domain.Status {
	return domain.CompletedStatus(nil)
}

// Read returns intensity, bandwidth and horizontal and vertical focus from the
// analyzed result file.
func (s *Simulated) Read() (map[string]float64, error) {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine != nil && !engine.IsDone() {
		return nil, fmt.Errorf("%s: %w", s.name, domain.ErrResultsNotReady)
	}

	path := filepath.Join(s.dir, domain.AnalyzedFileName(s.export))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: reading results: %w", s.name, err)
	}

	fields := strings.FieldsFunc(string(data), func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	readings := make(map[string]float64, len(readingColumns))
	for _, rc := range readingColumns {
		if rc.column >= len(fields) {
			return nil, fmt.Errorf("%s: result has %d columns, need %d", s.name, len(fields), rc.column+1)
		}
		v, err := strconv.ParseFloat(fields[rc.column], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: column %d: %w", s.name, rc.column, err)
		}
		readings[rc.key] = v * rc.scale
	}
	return readings, nil
}

var (
	_ domain.SimulationTarget = (*Simulated)(nil)
	_ domain.Readable         = (*Simulated)(nil)
	_ domain.Triggerable      = (*Simulated)(nil)
	_ ports.EngineBindable    = (*Simulated)(nil)
	_ domain.SimulationTarget = (*Trigger)(nil)
	_ domain.Triggerable      = (*Trigger)(nil)
)
