package jobs

import (
	"time"

	"github.com/robfig/cron/v3"

	"courierbot/pkg/logger"
	"courierbot/pkg/metrics"
)

// QuotaCounter is the part of the distance quota the jobs touch.
type QuotaCounter interface {
	Reset() int64
	Used() int64
	Limit() int64
}

// QuotaResetJob zeroes the distance quota at the start of each day in the
// configured timezone.
type QuotaResetJob struct {
	quota   QuotaCounter
	metrics *metrics.Metrics
	spec    string
	cron    *cron.Cron
	log     logger.ILogger
}

func NewQuotaResetJob(quota QuotaCounter, spec string, loc *time.Location, m *metrics.Metrics, log logger.ILogger) *QuotaResetJob {
	return &QuotaResetJob{
		quota:   quota,
		metrics: m,
		spec:    spec,
		cron:    cron.New(cron.WithLocation(loc)),
		log:     log.With(logger.String("component", "quota_reset_job")),
	}
}

func (j *QuotaResetJob) Start() error {
	if _, err := j.cron.AddFunc(j.spec, j.Run); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("quota reset job started", logger.String("spec", j.spec))
	return nil
}

func (j *QuotaResetJob) Run() {
	used := j.quota.Reset()
	j.metrics.QuotaUsed(0)
	j.log.Info("distance quota reset",
		logger.Int64("used", used),
		logger.Int64("limit", j.quota.Limit()))
}

func (j *QuotaResetJob) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("quota reset job stopped")
}
