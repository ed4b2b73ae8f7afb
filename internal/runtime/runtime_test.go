package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/shmaxi/excel-mcp-server/config"
	"github.com/stretchr/testify/require"
)

func TestControllerAcquireRelease(t *testing.T) {
	limits := NewLimits(1, 1)
	controller := NewController(limits)

	require.Equal(t, limits, controller.LimitsSnapshot())

	require.NoError(t, controller.AcquireRequest(context.Background()))
	controller.ReleaseRequest()

	require.NoError(t, controller.AcquireWorkbook(context.Background()))
	controller.ReleaseWorkbook()
}

func TestControllerWorkbookSlotsBounded(t *testing.T) {
	controller := NewController(NewLimits(4, 1))
	require.NoError(t, controller.AcquireWorkbook(context.Background()))
	defer controller.ReleaseWorkbook()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, controller.AcquireWorkbook(ctx))
}

func TestLimitsFromConfig(t *testing.T) {
	cfg := config.Default().Limits
	cfg.MaxCellsPerOp = 12
	cfg.PageRows = 3
	cfg.OperationTimeout = 0

	l := LimitsFromConfig(cfg)
	require.Equal(t, 12, l.MaxCellsPerOp)
	require.Equal(t, 3, l.PageRows)
	require.Zero(t, l.OperationTimeout)
	require.Equal(t, config.DefaultMaxConcurrentRequests, l.MaxConcurrentRequests)
	require.Equal(t, config.DefaultLockTimeout, l.LockTimeout)
}
