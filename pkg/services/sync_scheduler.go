package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
	"github.com/ekaya-inc/genbi-engine/pkg/repositories"
)

// SyncScheduler starts sync jobs for data sources with a recurring schedule.
type SyncScheduler struct {
	repo   repositories.DataSourceRepository
	syncs  SyncService
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	ctx     context.Context
	entries map[uuid.UUID]cron.EntryID
}

// NewSyncScheduler creates a stopped scheduler.
func NewSyncScheduler(repo repositories.DataSourceRepository, syncs SyncService, logger *zap.Logger) *SyncScheduler {
	logger = logger.Named("scheduler")
	cronLog := cronLogger{logger.Sugar()}
	return &SyncScheduler{
		repo:    repo,
		syncs:   syncs,
		cron:    cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.Recover(cronLog))),
		logger:  logger,
		ctx:     context.Background(),
		entries: make(map[uuid.UUID]cron.EntryID),
	}
}

var _ ScheduleReloader = (*SyncScheduler)(nil)

// Start loads all schedules and starts the cron loop. Ticks run under ctx.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if err := s.Reload(ctx); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the cron loop and waits for running ticks, bounded by ctx.
func (s *SyncScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reload replaces every registered schedule with the stored ones and
// persists their next run time.
func (s *SyncScheduler) Reload(ctx context.Context) error {
	sources, err := s.repo.ListScheduled(ctx)
	if err != nil {
		return fmt.Errorf("failed to load sync schedules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.entries {
		s.cron.Remove(entry)
		delete(s.entries, id)
	}

	now := time.Now()
	for _, ds := range sources {
		spec, err := CronSpec(ds.SyncSchedule)
		if err != nil {
			s.logger.Warn("Skipping invalid sync schedule",
				zap.String("data_source_id", ds.ID.String()),
				zap.Error(err))
			continue
		}
		schedule, err := cron.ParseStandard(spec)
		if err != nil {
			s.logger.Warn("Skipping unparsable sync schedule",
				zap.String("data_source_id", ds.ID.String()),
				zap.String("spec", spec),
				zap.Error(err))
			continue
		}

		stored := *ds.SyncSchedule
		id := ds.ID
		s.entries[id] = s.cron.Schedule(schedule, cron.FuncJob(func() {
			s.tick(id, stored, schedule)
		}))

		next := schedule.Next(now).UTC()
		stored.NextRun = &next
		if err := s.repo.UpdateSchedule(ctx, id, &stored); err != nil {
			s.logger.Error("Failed to persist next sync run",
				zap.String("data_source_id", id.String()),
				zap.Error(err))
		}
	}

	s.logger.Info("Sync schedules loaded", zap.Int("count", len(s.entries)))
	return nil
}

func (s *SyncScheduler) tick(id uuid.UUID, stored models.SyncSchedule, schedule cron.Schedule) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.syncs.Start(ctx, id, &models.SyncRequest{FullSync: false})
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		s.logger.Info("Scheduled sync skipped, a sync is already running", zap.String("data_source_id", id.String()))
	case err != nil:
		s.logger.Error("Scheduled sync failed to start", zap.String("data_source_id", id.String()), zap.Error(err))
	default:
		s.logger.Info("Scheduled sync started", zap.String("data_source_id", id.String()), zap.String("by", "scheduler"))
	}

	next := schedule.Next(now).UTC()
	stored.LastRun = &now
	stored.NextRun = &next
	if err := s.repo.UpdateSchedule(ctx, id, &stored); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		s.logger.Error("Failed to persist sync run", zap.String("data_source_id", id.String()), zap.Error(err))
	}
}

// CronSpec converts a schedule to a standard cron expression with a
// CRON_TZ prefix.
//
//	{daily, 09:30, Europe/Paris} -> "CRON_TZ=Europe/Paris 30 9 * * *"
func CronSpec(sched *models.SyncSchedule) (string, error) {
	if sched == nil || sched.Frequency == models.SyncFrequencyNever {
		return "", fmt.Errorf("no recurring schedule")
	}
	hour, minute, err := parseClock(sched.Time)
	if err != nil {
		return "", err
	}
	tz := sched.Timezone
	if tz == "" {
		tz = "UTC"
	}

	var expr string
	switch sched.Frequency {
	case models.SyncFrequencyHourly:
		expr = fmt.Sprintf("%d * * * *", minute)
	case models.SyncFrequencyDaily:
		expr = fmt.Sprintf("%d %d * * *", minute, hour)
	case models.SyncFrequencyWeekly:
		expr = fmt.Sprintf("%d %d * * 0", minute, hour)
	case models.SyncFrequencyMonthly:
		expr = fmt.Sprintf("%d %d 1 * *", minute, hour)
	default:
		return "", fmt.Errorf("unknown frequency %q", sched.Frequency)
	}
	return "CRON_TZ=" + tz + " " + expr, nil
}

// parseClock reads HH:MM or HH:MM:SS. Seconds are accepted and ignored.
func parseClock(value string) (hour, minute int, err error) {
	if value == "" {
		return 0, 0, nil
	}
	parts := strings.Split(value, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", value)
	}
	limits := []int{23, 59, 59}
	vals := make([]int, len(parts))
	for i, p := range parts {
		n, convErr := strconv.Atoi(p)
		if convErr != nil || len(p) != 2 || n < 0 || n > limits[i] {
			return 0, 0, fmt.Errorf("invalid time %q: expected HH:MM or HH:MM:SS", value)
		}
		vals[i] = n
	}
	return vals[0], vals[1], nil
}

// normalizeSchedule validates a client-supplied schedule and applies
// defaults. Run times are server maintained and dropped.
func normalizeSchedule(in *models.SyncSchedule) (*models.SyncSchedule, error) {
	if in == nil {
		return nil, nil
	}
	if !in.Frequency.IsValid() {
		return nil, apperrors.Validationf("Invalid sync frequency: %s", in.Frequency)
	}
	out := &models.SyncSchedule{Frequency: in.Frequency, Time: in.Time, Timezone: in.Timezone}
	if out.Time == "" {
		out.Time = "00:00"
	}
	if _, _, err := parseClock(out.Time); err != nil {
		return nil, apperrors.Validationf("Invalid sync time: %s", out.Time)
	}
	if out.Timezone == "" {
		out.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(out.Timezone); err != nil {
		return nil, apperrors.Validationf("Invalid sync timezone: %s", out.Timezone)
	}
	return out, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
