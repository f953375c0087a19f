package scheduler

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/Daniromero1410/Sistema-Positiva/model"
	"github.com/Daniromero1410/Sistema-Positiva/pkg/logger"
	"github.com/Daniromero1410/Sistema-Positiva/service"
	"github.com/go-co-op/gocron"
)

// Owner is recorded on runs started by the scheduler.
const Owner = "scheduler"

const jobID = "scheduled-consolidation"

// Scheduler periodically resubmits the archived master file.
type Scheduler struct {
	cron    *gocron.Scheduler
	cfg     config.ScheduleConfig
	client  *service.Client
	tracker *service.RunTracker
	archive service.MasterArchive
	retry   service.RetryPolicy
	now     func() time.Time
}

func New(cfg config.ScheduleConfig, client *service.Client, tracker *service.RunTracker, archive service.MasterArchive, retry service.RetryPolicy) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	return &Scheduler{
		cron:    s,
		cfg:     cfg,
		client:  client,
		tracker: tracker,
		archive: archive,
		retry:   retry,
		now:     time.Now,
	}
}

// Enabled reports whether Start will schedule anything.
func (s *Scheduler) Enabled() bool {
	return s.cfg.IntervalMinutes > 0 && s.cfg.MasterObject != "" && s.archive != nil
}

// Start schedules the job and returns immediately. Runs are tied to ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.Enabled() {
		logger.Info(ctx, "scheduled consolidation is disabled",
			"interval_minutes", s.cfg.IntervalMinutes,
			"master_object", s.cfg.MasterObject,
			"archive", s.archive != nil,
		)
		return nil
	}

	logger.Info(ctx, "scheduling job", "job", jobID, "interval_minutes", s.cfg.IntervalMinutes)
	_, err := s.cron.Every(s.cfg.IntervalMinutes).Minutes().WaitForSchedule().Do(func() {
		logger.Info(ctx, "scheduler is triggering job", "job", jobID)
		if _, err := s.RunOnce(ctx); err != nil {
			logger.Error(ctx, "scheduled job could not start", "job", jobID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", jobID, err)
	}

	s.cron.StartAsync()
	return nil
}

// Stop waits for a running job to return.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// ConsolidationConfig is the start config the job submits.
func (s *Scheduler) ConsolidationConfig() model.ConsolidationConfig {
	cfg := model.ConsolidationConfig{
		Modo:            model.Mode(s.cfg.Modo),
		Contratos:       s.cfg.Contratos,
		GuardarEnBD:     s.cfg.GuardarEnBD,
		ExportarAlertas: s.cfg.ExportarAlertas,
	}
	if s.cfg.Ano > 0 {
		cfg.Ano = model.Year(s.cfg.Ano)
	}
	return cfg
}

// idempotencyKey is stable within one interval slot, so a restart that fires the
// job twice in the same slot submits the same key.
func (s *Scheduler) idempotencyKey() string {
	slot := time.Duration(s.cfg.IntervalMinutes) * time.Minute
	if slot <= 0 {
		slot = time.Minute
	}
	return fmt.Sprintf("%s-%d", jobID, s.now().UTC().Truncate(slot).Unix())
}

// RunOnce submits the archived master file and hands the run to the tracker.
func (s *Scheduler) RunOnce(ctx context.Context) (*service.Submission, error) {
	if s.archive == nil {
		return nil, fmt.Errorf("%s: no master archive configured", jobID)
	}

	cfg := s.ConsolidationConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reader, size, err := s.archive.Open(ctx, s.cfg.MasterObject)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to open master %s: %w", jobID, s.cfg.MasterObject, err)
	}
	defer reader.Close()

	filename := path.Base(s.cfg.MasterObject)
	sub, err := s.client.Submit(ctx, model.MasterFile{
		Filename: filename,
		Content:  reader,
		Size:     size,
	}, cfg, service.SubmitOptions{IdempotencyKey: s.idempotencyKey(), Retry: s.retry})
	if err != nil {
		return nil, err
	}

	s.tracker.Track(&model.RunRecord{
		ID:             sub.Handle.RunID,
		Owner:          Owner,
		Config:         cfg,
		MasterFile:     filename,
		MasterObject:   s.cfg.MasterObject,
		IdempotencyKey: sub.IdempotencyKey,
	})
	logger.Info(logger.WithRunID(ctx, sub.Handle.RunID), "scheduled run submitted",
		"modo", cfg.Modo,
		"idempotency_key", sub.IdempotencyKey,
	)
	return sub, nil
}
