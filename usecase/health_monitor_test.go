package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/voicebook/assistant/domain/entities"
)

type fakeHealthChecker struct {
	health *entities.HealthStatus
	err    error
}

func (c *fakeHealthChecker) CheckHealth(ctx context.Context) (*entities.HealthStatus, error) {
	return c.health, c.err
}

func TestHealthMonitor_Check(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 14, 30, 5, 0, time.UTC)

	tests := []struct {
		name    string
		checker *fakeHealthChecker
		want    string
	}{
		{
			name:    "healthy",
			checker: &fakeHealthChecker{health: &entities.HealthStatus{Status: "ok", AIConfigured: true}},
			want:    "Assistant service healthy • 14:30:05",
		},
		{
			name:    "ai not configured",
			checker: &fakeHealthChecker{health: &entities.HealthStatus{Status: "ok"}},
			want:    "Assistant service up, AI not configured",
		},
		{
			name:    "degraded",
			checker: &fakeHealthChecker{health: &entities.HealthStatus{Status: "starting"}},
			want:    "Assistant service degraded: starting",
		},
		{
			name:    "unreachable",
			checker: &fakeHealthChecker{err: errors.New("dial tcp: connection refused")},
			want:    "Assistant service unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			presenter := newRecordingPresenter()
			monitor := NewHealthMonitor(tt.checker, presenter, time.Minute, zaptest.NewLogger(t))
			monitor.now = func() time.Time { return fixed }

			monitor.Check()

			if got := presenter.statusText(entities.StatusSlotBackend); got != tt.want {
				t.Errorf("backend status = %q, want %q", got, tt.want)
			}
		})
	}
}
