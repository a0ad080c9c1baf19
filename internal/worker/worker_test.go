package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/hlin/internal/telemetry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, jobType string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "job_type" && l.GetValue() == jobType {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestNewWorker_Defaults(t *testing.T) {
	w := NewWorker(Config{}, testLogger())

	assert.Contains(t, w.config.WorkerID, "worker-")
	assert.Equal(t, time.Hour, w.config.Interval)
	assert.Equal(t, time.Minute, w.config.JobTimeout)
	assert.Equal(t, 2, w.config.MaxConcurrency)
}

func TestRunJob_RecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := telemetry.Business
	telemetry.Business = telemetry.NewBusinessMetrics("hlin_test", reg)
	t.Cleanup(func() { telemetry.Business = prev })

	w := NewWorker(Config{JobTimeout: time.Second}, testLogger())

	require.NoError(t, w.RunJob(context.Background(), Job{
		Type: "ok",
		Run:  func(ctx context.Context) error { return nil },
	}))
	err := w.RunJob(context.Background(), Job{
		Type: "broken",
		Run:  func(ctx context.Context) error { return errors.New("boom") },
	})
	require.Error(t, err)

	assert.Equal(t, 1.0, counterValue(t, reg, "hlin_test_business_jobs_processed_total", "ok"))
	assert.Equal(t, 1.0, counterValue(t, reg, "hlin_test_business_jobs_failed_total", "broken"))
}

func TestRunJob_AppliesTimeout(t *testing.T) {
	w := NewWorker(Config{JobTimeout: 10 * time.Millisecond}, testLogger())

	err := w.RunJob(context.Background(), Job{
		Type: "slow",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var runs atomic.Int32
	ran := make(chan struct{}, 1)
	w := NewWorker(Config{Interval: time.Hour}, testLogger(), Job{
		Type: "count",
		Run: func(ctx context.Context) error {
			runs.Add(1)
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, int32(1), runs.Load())
}
