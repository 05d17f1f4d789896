package raysim_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/aretw0/raysim"
	"github.com/aretw0/raysim/pkg/domain"
)

// fixedEngine writes the same analyzed row for every export.
type fixedEngine struct{ done bool }

func (e *fixedEngine) Setup(ctx context.Context) error {
	e.done = false
	return nil
}

func (e *fixedEngine) Simulate(ctx context.Context, dir string, scene domain.Scene, exports []string) error {
	for _, exp := range exports {
		row := []byte("0 1000 50 50 1.5 20 30\n")
		if err := os.WriteFile(filepath.Join(dir, domain.AnalyzedFileName(exp)), row, 0o644); err != nil {
			return err
		}
	}
	e.done = true
	return nil
}

func (e *fixedEngine) IsDone() bool { return e.done }

// ExampleNew shows a one-point count over a simulated detector. Any ports.Engine
// works here; engine.NewLocal and engine.NewRemote are the real ones.
func ExampleNew() {
	dir, err := os.MkdirTemp("", "raysim-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	sim, err := raysim.New(filepath.Join(dir, "sim"), domain.NewScene("<scene/>"), &fixedEngine{}, []string{"Dipole"})
	if err != nil {
		log.Fatal(err)
	}

	result, err := sim.Count(context.Background(), 1)
	if err != nil {
		log.Fatal(err)
	}
	r := result.Events[0].Readings
	fmt.Println(r["Dipole_intensity"], r["Dipole_bandwidth"], r["Dipole_hor_foc"], r["Dipole_ver_foc"])
	// Output: 150 1.5 20 30
}
