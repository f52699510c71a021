package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/voicebook/assistant/domain/entities"
	"github.com/voicebook/assistant/domain/repositories"
)

// HealthMonitor periodically checks the assistant service and shows the
// result in the backend status slot.
type HealthMonitor struct {
	checker   repositories.HealthChecker
	presenter repositories.Presenter
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	now       func() time.Time
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor(checker repositories.HealthChecker, presenter repositories.Presenter, interval time.Duration, logger *zap.Logger) *HealthMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthMonitor{
		checker:   checker,
		presenter: presenter,
		interval:  interval,
		timeout:   healthCheckTimeout,
		logger:    logger,
		stopChan:  make(chan struct{}),
		now:       time.Now,
	}
}

// Start begins probing in the background
func (m *HealthMonitor) Start() {
	go m.loop()
	m.logger.Info("Health monitor started", zap.Duration("interval", m.interval))
}

// Stop ends the probing loop
func (m *HealthMonitor) Stop() {
	close(m.stopChan)
	m.logger.Info("Health monitor stopped")
}

func (m *HealthMonitor) loop() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check()
	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check queries once and updates the backend status
func (m *HealthMonitor) Check() *entities.HealthStatus {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	health, err := m.checker.CheckHealth(ctx)
	if err != nil {
		m.logger.Warn("Assistant service unreachable", zap.Error(err))
		m.presenter.SetStatusText(entities.StatusSlotBackend, "Assistant service unreachable")
		return nil
	}

	text := "Assistant service healthy • " + m.now().Format("15:04:05")
	if !health.OK() {
		text = "Assistant service degraded: " + health.Status
	} else if !health.AIConfigured {
		text = "Assistant service up, AI not configured"
	}
	m.presenter.SetStatusText(entities.StatusSlotBackend, text)

	m.logger.Debug("Assistant health checked",
		zap.String("status", health.Status),
		zap.Bool("aiConfigured", health.AIConfigured))
	return health
}
