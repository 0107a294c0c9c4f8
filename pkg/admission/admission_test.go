package admission

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAcquireUpToLimitThenRejects(t *testing.T) {
	c := New(2)
	require.NoError(t, c.Acquire(context.Background()))
	require.NoError(t, c.Acquire(context.Background()))

	err := c.Acquire(context.Background())
	require.Error(t, err)
	var tooMany *ErrTooManySearchRequests
	require.ErrorAs(t, err, &tooMany)
}

func TestReleaseFreesASlot(t *testing.T) {
	c := New(1)
	require.NoError(t, c.Acquire(context.Background()))
	require.Error(t, c.Acquire(context.Background()))

	c.Release()
	require.NoError(t, c.Acquire(context.Background()))
}

func TestRunReleasesOnError(t *testing.T) {
	c := New(1)
	err := c.Run(context.Background(), func() error { return fmt.Errorf("boom") })
	require.Error(t, err)
	require.NoError(t, c.Acquire(context.Background()))
}
