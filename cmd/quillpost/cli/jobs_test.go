package cli

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/quillpost/quillpost/internal/lifecycle"
)

func newTestCLI(t *testing.T) *JobsCLI {
	t.Helper()
	mr := miniredis.RunT(t)
	cli, err := NewJobsCLI(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })
	return cli
}

func TestTriggerCascadeRejectsUnknownDirection(t *testing.T) {
	cli := newTestCLI(t)

	_, err := cli.TriggerCascade(context.Background(), 42, lifecycle.Direction("sideways"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "direction")
}

func TestTriggerCascadeRequiresClient(t *testing.T) {
	var cli *JobsCLI
	_, err := cli.TriggerCascade(context.Background(), 42, lifecycle.Deactivate)
	require.Error(t, err)

	_, err = cli.TriggerIdempotencyCleanup(context.Background())
	require.Error(t, err)
}

func TestInspectQueueRequiresInspector(t *testing.T) {
	cli := &JobsCLI{}
	_, err := cli.InspectQueue(context.Background())
	require.Error(t, err)

	_, err = cli.ListScheduled(context.Background(), 5)
	require.Error(t, err)
}
