// Package postprocess turns the raw rays exported by the ray-tracer into the
// analyzed result files read by simulated detectors.
package postprocess

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/aretw0/raysim/pkg/domain"
)

// fwhmFactor converts a Gaussian standard deviation into a full width at half maximum.
const fwhmFactor = 2.3548200450309493

// Result column layout of an analyzed file.
const (
	ColumnRun = iota
	ColumnEnergy
	ColumnRays
	ColumnIntensity
	ColumnBandwidth
	ColumnHorizontalFocus
	ColumnVerticalFocus
	columnCount
)

// Analyzer implements ports.PostProcessor for "<element>-<object>.csv" raw exports.
type Analyzer struct {
	// MinRays is the smallest ray count that can be analyzed (at least 2).
	MinRays int
}

// NewAnalyzer returns an analyzer requiring at least two rays.
func NewAnalyzer() *Analyzer {
	return &Analyzer{MinRays: 2}
}

// Summary is the analysis of one exported element.
type Summary struct {
	Rays            int
	MeanEnergy      float64
	Intensity       float64
	Bandwidth       float64
	HorizontalFocus float64
	VerticalFocus   float64
}

// PostProcess reads dir/<element>-<object>.csv and writes dir/<element>_analyzed_rays.dat.
// The scene path is accepted for interface compatibility; the analysis only needs the rays.
func (a *Analyzer) PostProcess(exportedElement, exportedObject, dir, runIndex, scenePath string) error {
	raw := filepath.Join(dir, exportedElement+"-"+exportedObject+".csv")
	summary, err := a.Analyze(raw)
	if err != nil {
		return fmt.Errorf("analyzing %s: %w", exportedElement, err)
	}

	run := 0
	if runIndex != "" {
		if run, err = strconv.Atoi(runIndex); err != nil {
			return fmt.Errorf("invalid run index %q: %w", runIndex, err)
		}
	}

	out := filepath.Join(dir, domain.AnalyzedFileName(exportedElement))
	if err := os.WriteFile(out, []byte(summary.Line(run)), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(out), err)
	}
	return nil
}

// Line renders the summary as one whitespace-separated result row.
func (s Summary) Line(run int) string {
	values := []float64{
		float64(run), s.MeanEnergy, float64(s.Rays),
		s.Intensity, s.Bandwidth, s.HorizontalFocus, s.VerticalFocus,
	}
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(fields, " ") + "\n"
}

// Analyze computes the summary of a raw rays file.
// Lines starting with '#' are comments; the first other line is the header, whose
// columns are matched by their OX, OY and EN suffixes.
func (a *Analyzer) Analyze(path string) (Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", domain.ErrInsufficientRays, err)
	}
	defer f.Close()

	var (
		ox, oy, en  = -1, -1, -1
		header      bool
		xs, ys, ens []float64
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := splitFields(line)

		if !header {
			for i, name := range fields {
				switch columnSuffix(name) {
				case "OX":
					ox = i
				case "OY":
					oy = i
				case "EN":
					en = i
				}
			}
			if ox < 0 || oy < 0 || en < 0 {
				return Summary{}, fmt.Errorf("%w: header lacks OX/OY/EN columns", domain.ErrInsufficientRays)
			}
			header = true
			continue
		}

		if len(fields) <= max(ox, oy, en) {
			return Summary{}, fmt.Errorf("%w: short row %q", domain.ErrInsufficientRays, line)
		}
		x, errX := strconv.ParseFloat(fields[ox], 64)
		y, errY := strconv.ParseFloat(fields[oy], 64)
		e, errE := strconv.ParseFloat(fields[en], 64)
		if errX != nil || errY != nil || errE != nil {
			return Summary{}, fmt.Errorf("%w: malformed row %q", domain.ErrInsufficientRays, line)
		}
		xs, ys, ens = append(xs, x), append(ys, y), append(ens, e)
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}

	minRays := max(a.MinRays, 2)
	if len(xs) < minRays {
		return Summary{}, fmt.Errorf("%w: %d rays, need %d", domain.ErrInsufficientRays, len(xs), minRays)
	}

	meanE, sdE := meanStd(ens)
	_, sdX := meanStd(xs)
	_, sdY := meanStd(ys)
	return Summary{
		Rays:       len(xs),
		MeanEnergy: meanE,
		Intensity:  float64(len(xs)),
		Bandwidth:  fwhmFactor * sdE,
		// Positions are exported in mm; foci are reported in µm.
		HorizontalFocus: fwhmFactor * sdX * 1000,
		VerticalFocus:   fwhmFactor * sdY * 1000,
	}, nil
}

func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == '\t' || r == ',' || r == ' ' || r == ';'
	})
}

// columnSuffix returns the upper-cased part of a header name after its last '_'.
func columnSuffix(name string) string {
	if i := strings.LastIndexByte(name, '_'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToUpper(name)
}

func meanStd(v []float64) (float64, float64) {
	var sum float64
	for _, x := range v {
		sum += x
	}
	mean := sum / float64(len(v))

	var sq float64
	for _, x := range v {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(v)-1))
}
