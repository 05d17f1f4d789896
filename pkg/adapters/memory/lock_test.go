package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/raysim/pkg/adapters/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_Exclusive(t *testing.T) {
	locker := memory.NewLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "dir", time.Second)
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "dir", time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = locker.Lock(waitCtx, "other", time.Second)
	assert.NoError(t, err, "distinct keys must not contend")

	require.NoError(t, unlock(ctx))
	require.NoError(t, unlock(ctx), "unlock is idempotent")

	unlock2, err := locker.Lock(ctx, "dir", time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}
