package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akeren/lasting-loves-waitlist/internal/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
)

const sizeReportTimeout = 10 * time.Second

// SizeReporter refreshes the waitlist_entries gauge on a cron schedule.
type SizeReporter struct {
	cron    *cron.Cron
	service WaitlistService
	gauge   prometheus.Gauge
	logger  *log.Logger
}

func NewSizeReporter(logger *log.Logger, service WaitlistService, schedule string, reg prometheus.Registerer) (*SizeReporter, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger{logger})),
	)

	r := &SizeReporter{
		cron:    c,
		service: service,
		gauge:   registerSizeGauge(reg),
		logger:  logger,
	}

	if _, err := c.AddFunc(schedule, func() { r.Report(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid waitlist size report schedule %q: %w", schedule, err)
	}

	return r, nil
}

func registerSizeGauge(reg prometheus.Registerer) prometheus.Gauge {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "waitlist_entries",
		Help: "Number of entries on the waitlist at the last report.",
	})
	if reg == nil {
		return gauge
	}

	if err := reg.Register(gauge); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return already.ExistingCollector.(prometheus.Gauge)
		}
		panic(err)
	}
	return gauge
}

// Report sets the gauge to the current count. On failure the gauge keeps its
// previous value.
func (r *SizeReporter) Report(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, sizeReportTimeout)
	defer cancel()

	count, err := r.service.Count(ctx)
	if err != nil {
		r.logger.Error("Waitlist size report failed", "error", err)
		return
	}

	r.gauge.Set(float64(count))
	r.logger.Debug("Waitlist size reported", "count", count)
}

func (r *SizeReporter) Start() {
	r.cron.Start()
	r.logger.Info("Waitlist size reporter started")
}

// Stop halts scheduling and waits for a running report until ctx ends.
func (r *SizeReporter) Stop(ctx context.Context) error {
	done := r.cron.Stop()

	select {
	case <-done.Done():
		r.logger.Info("Waitlist size reporter stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the application logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
