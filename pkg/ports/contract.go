package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/raysim/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLedgerContract runs a suite of tests to verify that a RunLedger implementation
// adheres to the defined interface contract.
func RunLedgerContract(t *testing.T, ledger RunLedger) {
	ctx := context.Background()
	runID := "contract-run-" + time.Now().Format("20060102150405")
	started := time.Now().UTC().Truncate(time.Second)

	t.Run("Put and Get", func(t *testing.T) {
		record := domain.RunRecord{
			ID:      runID,
			Peer:    "127.0.0.1:5000",
			Exports: []string{"Dipole", "DetectorAtFocus"},
			Outcome: domain.OutcomeRunning,
			Started: started,
		}

		err := ledger.Put(ctx, record)
		require.NoError(t, err, "Put should not return error")

		loaded, err := ledger.Get(ctx, runID)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, record.Exports, loaded.Exports)
		assert.Equal(t, domain.OutcomeRunning, loaded.Outcome)
		assert.True(t, record.Started.Equal(loaded.Started))
	})

	t.Run("Put Replaces", func(t *testing.T) {
		err := ledger.Put(ctx, domain.RunRecord{
			ID:       runID,
			Outcome:  domain.OutcomeSuccess,
			Started:  started,
			Finished: started.Add(2 * time.Second),
			Files:    3,
		})
		require.NoError(t, err)

		loaded, err := ledger.Get(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeSuccess, loaded.Outcome)
		assert.Equal(t, 3, loaded.Files)
		assert.Equal(t, 2*time.Second, loaded.Duration())
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := ledger.Get(ctx, "non-existent-"+runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := ledger.Delete(ctx, runID)
		require.NoError(t, err, "Delete should not return error")

		_, err = ledger.Get(ctx, runID)
		assert.ErrorIs(t, err, domain.ErrRunNotFound, "Get after Delete should return ErrRunNotFound")
	})

	t.Run("List Newest First", func(t *testing.T) {
		id1 := runID + "-1"
		id2 := runID + "-2"
		require.NoError(t, ledger.Put(ctx, domain.RunRecord{ID: id1, Started: started}))
		require.NoError(t, ledger.Put(ctx, domain.RunRecord{ID: id2, Started: started.Add(time.Minute)}))

		defer func() {
			_ = ledger.Delete(ctx, id1)
			_ = ledger.Delete(ctx, id2)
		}()

		records, err := ledger.List(ctx)
		require.NoError(t, err)

		var ids []string
		for _, r := range records {
			ids = append(ids, r.ID)
		}
		require.Contains(t, ids, id1)
		require.Contains(t, ids, id2)

		pos := func(id string) int {
			for i, v := range ids {
				if v == id {
					return i
				}
			}
			return -1
		}
		assert.Less(t, pos(id2), pos(id1), "newer run should be listed first")
	})
}
