package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/punchd-io/punchd/config"
	"github.com/punchd-io/punchd/internal/mocks"
)

func reaperConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:       10 * time.Minute,
		BatchRetention: 30 * 24 * time.Hour,
		AuditRetention: 90 * 24 * time.Hour,
		BatchSize:      1000,
	}
}

func TestSweepRunsEveryStep(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	batches := mocks.NewMockBatchRepository(ctrl)
	audit := mocks.NewMockAuditRepository(ctrl)

	batches.EXPECT().RequeueExpiredLeases(gomock.Any(), gomock.Any()).Return(int64(2), nil)
	// Deletions loop until a short batch signals the table is drained.
	gomock.InOrder(
		batches.EXPECT().DeleteOldJobs(gomock.Any(), 30*24*time.Hour, 1000).Return(int64(1000), nil),
		batches.EXPECT().DeleteOldJobs(gomock.Any(), 30*24*time.Hour, 1000).Return(int64(3), nil),
		batches.EXPECT().DeleteOldJobs(gomock.Any(), 30*24*time.Hour, 1000).Return(int64(0), nil),
	)
	audit.EXPECT().DeleteOld(gomock.Any(), 90*24*time.Hour, 1000).Return(int64(0), nil)

	reaper := NewReaper(ReaperOptions{
		Deps:   ReaperDeps{Batches: batches, Audit: audit},
		Config: reaperConfig(),
		Logger: slog.New(slog.DiscardHandler),
	})

	require.NoError(t, reaper.Sweep(context.Background()))
}

func TestSweepStepFailureDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	batches := mocks.NewMockBatchRepository(ctrl)
	audit := mocks.NewMockAuditRepository(ctrl)

	batches.EXPECT().RequeueExpiredLeases(gomock.Any(), gomock.Any()).
		Return(int64(0), errors.New("deadlock"))
	batches.EXPECT().DeleteOldJobs(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), nil)
	audit.EXPECT().DeleteOld(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), nil)

	reaper := NewReaper(ReaperOptions{
		Deps:   ReaperDeps{Batches: batches, Audit: audit},
		Config: reaperConfig(),
		Logger: slog.New(slog.DiscardHandler),
	})

	err := reaper.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requeue lapsed leases")
}

func TestSweepWithoutAuditRepo(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	batches := mocks.NewMockBatchRepository(ctrl)
	batches.EXPECT().RequeueExpiredLeases(gomock.Any(), gomock.Any()).Return(int64(0), nil)
	batches.EXPECT().DeleteOldJobs(gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), nil)

	reaper := NewReaper(ReaperOptions{
		Deps:   ReaperDeps{Batches: batches},
		Config: reaperConfig(),
		Logger: slog.New(slog.DiscardHandler),
	})

	require.NoError(t, reaper.Sweep(context.Background()))
}

func TestNewReaperRequiresBatchRepository(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		NewReaper(ReaperOptions{Config: reaperConfig()})
	})
}
