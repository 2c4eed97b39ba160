package warmer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chrissnell/wastecast/internal/forecast"
	"github.com/chrissnell/wastecast/internal/metrics"
	"github.com/chrissnell/wastecast/internal/report"
	"github.com/chrissnell/wastecast/pkg/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

// savedReports serves only GetSavedReports; other methods are never called
type savedReports struct {
	config.ConfigProvider
	reports []config.SavedReportData
	err     error
}

func (s *savedReports) GetSavedReports() ([]config.SavedReportData, error) {
	return s.reports, s.err
}

type recordingRefresher struct {
	mu       sync.Mutex
	requests []report.Request
	failFor  string
}

func (r *recordingRefresher) Refresh(_ context.Context, req report.Request) (*report.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	if req.Filter.Location == r.failFor {
		return nil, &forecast.DataError{Reason: "series is empty"}
	}
	return &report.Envelope{Success: true, Horizon: req.Horizon}, nil
}

func newWarmer(t *testing.T, provider config.ConfigProvider, refresher Refresher) (*Controller, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, provider,
		config.WarmerData{Enabled: true, Schedule: "@every 1h"}, refresher, m, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	return ctrl, m
}

func TestRunOnce(t *testing.T) {
	provider := &savedReports{reports: []config.SavedReportData{
		{Name: "north", Location: "North Depot", Horizon: 6},
		{Name: "empty", Location: "Nowhere"},
		{Name: "acme", Company: "ACME", Title: "cardboard", Horizon: 24},
	}}
	refresher := &recordingRefresher{failFor: "Nowhere"}
	ctrl, m := newWarmer(t, provider, refresher)

	warmed, failed := ctrl.RunOnce(context.Background())
	if warmed != 2 || failed != 1 {
		t.Errorf("warmed %d failed %d, want 2 and 1", warmed, failed)
	}
	if len(refresher.requests) != 3 {
		t.Fatalf("got %d refreshes, want 3", len(refresher.requests))
	}

	acme := refresher.requests[2]
	if acme.Filter.Company != "ACME" || acme.Filter.Title != "cardboard" || acme.Horizon != 24 {
		t.Errorf("unexpected request %+v", acme)
	}

	if got := testutil.ToFloat64(m.WarmerRuns.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok runs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.WarmerRuns.WithLabelValues("data_error")); got != 1 {
		t.Errorf("data_error runs = %v, want 1", got)
	}
	if testutil.ToFloat64(m.WarmerLastRunTS) == 0 {
		t.Error("last run timestamp not set")
	}
}

func TestRunOnceProviderError(t *testing.T) {
	refresher := &recordingRefresher{}
	ctrl, m := newWarmer(t, &savedReports{err: errors.New("locked")}, refresher)

	warmed, failed := ctrl.RunOnce(context.Background())
	if warmed != 0 || failed != 0 || len(refresher.requests) != 0 {
		t.Errorf("unexpected work: warmed %d failed %d refreshes %d", warmed, failed, len(refresher.requests))
	}
	if got := testutil.ToFloat64(m.WarmerRuns.WithLabelValues("error")); got != 1 {
		t.Errorf("error runs = %v, want 1", got)
	}
}

func TestRunOnceStopsOnCancel(t *testing.T) {
	provider := &savedReports{reports: []config.SavedReportData{{Name: "a"}, {Name: "b"}}}
	refresher := &recordingRefresher{}
	ctrl, _ := newWarmer(t, provider, refresher)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl.RunOnce(ctx)
	if len(refresher.requests) != 0 {
		t.Errorf("got %d refreshes after cancellation", len(refresher.requests))
	}
}

func TestNewController(t *testing.T) {
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	logger := zap.NewNop().Sugar()

	ctrl, err := NewController(context.Background(), &sync.WaitGroup{}, &savedReports{}, config.WarmerData{Enabled: false}, &recordingRefresher{}, m, logger)
	if err != nil || ctrl != nil {
		t.Errorf("disabled warmer: got %v, %v", ctrl, err)
	}

	_, err = NewController(context.Background(), &sync.WaitGroup{}, &savedReports{}, config.WarmerData{Enabled: true, Schedule: "every tuesday"}, &recordingRefresher{}, m, logger)
	if err == nil {
		t.Error("expected an error for an invalid schedule")
	}

	for _, spec := range []string{"0 3 * * *", "@hourly", "@every 30m"} {
		if _, err := NewController(context.Background(), &sync.WaitGroup{}, &savedReports{}, config.WarmerData{Enabled: true, Schedule: spec}, &recordingRefresher{}, m, logger); err != nil {
			t.Errorf("schedule %q rejected: %v", spec, err)
		}
	}
}

func TestStartStop(t *testing.T) {
	provider := &savedReports{reports: []config.SavedReportData{{Name: "north", Location: "North"}}}
	refresher := &recordingRefresher{}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	ctrl, err := NewController(ctx, &wg, provider, config.WarmerData{Enabled: true, Schedule: "@every 1h"}, refresher, m, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	if err := ctrl.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	wg.Wait()

	// The initial warm-up may be skipped when cancellation wins the race
	refresher.mu.Lock()
	defer refresher.mu.Unlock()
	if len(refresher.requests) > 1 {
		t.Errorf("got %d refreshes, want at most 1", len(refresher.requests))
	}
}
