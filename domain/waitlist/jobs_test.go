package waitlist

import (
	"context"
	"testing"
	"time"

	apperrors "github.com/akeren/lasting-loves-waitlist/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestSizeReporter_Report(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := NewMockWaitlistService(ctrl)
	reg := prometheus.NewRegistry()

	reporter, err := NewSizeReporter(quietLogger(), service, "@every 1h", reg)
	require.NoError(t, err)

	service.EXPECT().Count(gomock.Any()).Return(int64(12), nil)
	reporter.Report(context.Background())
	assert.Equal(t, 12.0, testutil.ToFloat64(reporter.gauge))

	service.EXPECT().Count(gomock.Any()).Return(int64(0), apperrors.NewDatabaseError("unable to count waitlist entries", nil))
	reporter.Report(context.Background())
	assert.Equal(t, 12.0, testutil.ToFloat64(reporter.gauge), "failed report keeps the last value")
}

func TestSizeReporter_ReusesRegisteredGauge(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := prometheus.NewRegistry()

	first, err := NewSizeReporter(quietLogger(), NewMockWaitlistService(ctrl), "@every 1h", reg)
	require.NoError(t, err)
	second, err := NewSizeReporter(quietLogger(), NewMockWaitlistService(ctrl), "@every 1h", reg)
	require.NoError(t, err)

	assert.Same(t, first.gauge, second.gauge)
}

func TestSizeReporter_RejectsInvalidSchedule(t *testing.T) {
	ctrl := gomock.NewController(t)

	_, err := NewSizeReporter(quietLogger(), NewMockWaitlistService(ctrl), "every now and then", prometheus.NewRegistry())

	assert.Error(t, err)
}

func TestSizeReporter_StartStop(t *testing.T) {
	ctrl := gomock.NewController(t)

	reporter, err := NewSizeReporter(quietLogger(), NewMockWaitlistService(ctrl), "@every 1h", prometheus.NewRegistry())
	require.NoError(t, err)

	reporter.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, reporter.Stop(ctx))
}
