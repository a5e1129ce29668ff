package api

import (
	"time"

	log "github.com/sirupsen/logrus"

	"pinky-api/domain"
)

type listRequestMetrics struct {
	logger         *log.Logger
	start          time.Time
	listDuration   time.Duration
	encodeDuration time.Duration
	statusFilter   domain.MicroTaskStatus
	returned       int
	errorStage     string
}

func newListRequestMetrics(logger *log.Logger) *listRequestMetrics {
	return &listRequestMetrics{
		logger: logger,
		start:  time.Now(),
	}
}

func (m *listRequestMetrics) ObserveList(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.listDuration = duration
}

func (m *listRequestMetrics) ObserveEncode(duration time.Duration) {
	if duration <= 0 {
		return
	}
	m.encodeDuration = duration
}

func (m *listRequestMetrics) SetStatusFilter(status domain.MicroTaskStatus) {
	m.statusFilter = status
}

func (m *listRequestMetrics) SetReturned(count int) {
	if count < 0 {
		count = 0
	}
	m.returned = count
}

func (m *listRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *listRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":    "/microtasks",
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
		"filter":   string(m.statusFilter),
		"returned": m.returned,
	}

	if m.listDuration > 0 {
		fields["list_ms"] = durationToMillis(m.listDuration)
	}
	if m.encodeDuration > 0 {
		fields["encode_ms"] = durationToMillis(m.encodeDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("microtasks.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
