package jobs

import (
	"github.com/robfig/cron/v3"

	"courierbot/pkg/logger"
	"courierbot/pkg/metrics"
)

const quotaGaugeSpec = "@every 30s"

// QuotaGaugeJob publishes the quota usage so it is visible between builds.
type QuotaGaugeJob struct {
	quota   QuotaCounter
	metrics *metrics.Metrics
	cron    *cron.Cron
	log     logger.ILogger
}

func NewQuotaGaugeJob(quota QuotaCounter, m *metrics.Metrics, log logger.ILogger) *QuotaGaugeJob {
	return &QuotaGaugeJob{
		quota:   quota,
		metrics: m,
		cron:    cron.New(),
		log:     log.With(logger.String("component", "quota_gauge_job")),
	}
}

func (j *QuotaGaugeJob) Start() error {
	if _, err := j.cron.AddFunc(quotaGaugeSpec, j.Run); err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

func (j *QuotaGaugeJob) Run() {
	used := j.quota.Used()
	j.metrics.QuotaUsed(used)
	if used >= j.quota.Limit() {
		j.log.Warning("distance quota exhausted", logger.Int64("limit", j.quota.Limit()))
	}
}

func (j *QuotaGaugeJob) Stop() {
	<-j.cron.Stop().Done()
}
