package runner

import (
	"fmt"
	"iter"
	"slices"

	"github.com/aretw0/raysim/pkg/domain"
)

// Count reads detectors num times. Every point triggers all detectors in one
// group, waits for the group and saves one event.
func Count(detectors []domain.Device, num int) iter.Seq[domain.Operation] {
	return func(yield func(domain.Operation) bool) {
		for _, d := range detectors {
			if !yield(domain.NewOperation(domain.CommandStage, d)) {
				return
			}
		}
		if !yield(domain.NewOperation(domain.CommandOpenRun, nil)) {
			return
		}
		for i := range max(num, 1) {
			group := fmt.Sprintf("trigger-%d", i)
			ops := []domain.Operation{
				domain.NewOperation(domain.CommandCheckpoint, nil),
				domain.NewOperation(domain.CommandCreate, nil),
			}
			for _, d := range detectors {
				ops = append(ops, domain.NewOperation(domain.CommandTrigger, d).WithGroup(group))
			}
			ops = append(ops, domain.NewOperation(domain.CommandWait, nil).WithGroup(group))
			for _, d := range detectors {
				ops = append(ops, domain.NewOperation(domain.CommandRead, d))
			}
			ops = append(ops, domain.NewOperation(domain.CommandSave, nil))
			for _, op := range ops {
				if !yield(op) {
					return
				}
			}
		}
		if !yield(domain.NewOperation(domain.CommandCloseRun, nil)) {
			return
		}
		for _, d := range slices.Backward(detectors) {
			if !yield(domain.NewOperation(domain.CommandUnstage, d)) {
				return
			}
		}
	}
}
