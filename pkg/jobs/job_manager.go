package jobs

import (
	"fmt"
	"time"

	"courierbot/pkg/logger"
	"courierbot/pkg/metrics"
)

// JobManager starts and stops the scheduled jobs together.
type JobManager struct {
	quotaReset *QuotaResetJob
	quotaGauge *QuotaGaugeJob
}

func NewJobManager(quota QuotaCounter, resetSpec string, loc *time.Location, m *metrics.Metrics, log logger.ILogger) *JobManager {
	return &JobManager{
		quotaReset: NewQuotaResetJob(quota, resetSpec, loc, m, log),
		quotaGauge: NewQuotaGaugeJob(quota, m, log),
	}
}

func (jm *JobManager) StartAll() error {
	if err := jm.quotaReset.Start(); err != nil {
		return fmt.Errorf("failed to start quota reset job: %w", err)
	}
	if err := jm.quotaGauge.Start(); err != nil {
		jm.quotaReset.Stop()
		return fmt.Errorf("failed to start quota gauge job: %w", err)
	}
	return nil
}

func (jm *JobManager) StopAll() {
	jm.quotaGauge.Stop()
	jm.quotaReset.Stop()
}
