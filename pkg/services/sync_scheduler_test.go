package services

import (
	"context"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/apperrors"
	"github.com/ekaya-inc/genbi-engine/pkg/models"
)

func TestCronSpec(t *testing.T) {
	tests := []struct {
		name    string
		sched   *models.SyncSchedule
		want    string
		wantErr bool
	}{
		{"hourly ignores hour", &models.SyncSchedule{Frequency: models.SyncFrequencyHourly, Time: "05:15"}, "CRON_TZ=UTC 15 * * * *", false},
		{"daily", &models.SyncSchedule{Frequency: models.SyncFrequencyDaily, Time: "09:30", Timezone: "Europe/Paris"}, "CRON_TZ=Europe/Paris 30 9 * * *", false},
		{"daily with seconds", &models.SyncSchedule{Frequency: models.SyncFrequencyDaily, Time: "23:59:30"}, "CRON_TZ=UTC 59 23 * * *", false},
		{"weekly on sunday", &models.SyncSchedule{Frequency: models.SyncFrequencyWeekly, Time: "02:00"}, "CRON_TZ=UTC 0 2 * * 0", false},
		{"monthly on the first", &models.SyncSchedule{Frequency: models.SyncFrequencyMonthly}, "CRON_TZ=UTC 0 0 1 * *", false},
		{"never", &models.SyncSchedule{Frequency: models.SyncFrequencyNever}, "", true},
		{"nil", nil, "", true},
		{"bad time", &models.SyncSchedule{Frequency: models.SyncFrequencyDaily, Time: "25:00"}, "", true},
		{"single digit hour", &models.SyncSchedule{Frequency: models.SyncFrequencyDaily, Time: "9:30"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CronSpec(tt.sched)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeSchedule(t *testing.T) {
	got, err := normalizeSchedule(nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = normalizeSchedule(&models.SyncSchedule{Frequency: models.SyncFrequencyWeekly})
	require.NoError(t, err)
	assert.Equal(t, "00:00", got.Time)
	assert.Equal(t, "UTC", got.Timezone)
	assert.Nil(t, got.NextRun)

	_, err = normalizeSchedule(&models.SyncSchedule{Frequency: models.SyncFrequencyDaily, Time: "noon"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Invalid sync time: noon", apperrors.Message(err, ""))

	_, err = normalizeSchedule(&models.SyncSchedule{Frequency: models.SyncFrequencyDaily, Timezone: "Mars/Olympus"})
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "Invalid sync timezone: Mars/Olympus", apperrors.Message(err, ""))
}

func TestSyncScheduler_ReloadPersistsNextRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dsSvc := env.dataSources()

	scheduled, err := dsSvc.Create(ctx, &models.CreateDataSourceRequest{
		Name:         "Nightly",
		Type:         models.DataSourceTypeCSV,
		SyncSchedule: &models.SyncSchedule{Frequency: models.SyncFrequencyDaily, Time: "03:00"},
	})
	require.NoError(t, err)
	unscheduled, err := dsSvc.Create(ctx, &models.CreateDataSourceRequest{
		Name:         "Manual",
		Type:         models.DataSourceTypeCSV,
		SyncSchedule: &models.SyncSchedule{Frequency: models.SyncFrequencyNever},
	})
	require.NoError(t, err)

	scheduler := NewSyncScheduler(env.dsRepo, env.syncs(), zap.NewNop())
	require.NoError(t, scheduler.Reload(ctx))
	assert.Len(t, scheduler.entries, 1)

	got, err := dsSvc.Get(ctx, scheduled.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SyncSchedule)
	require.NotNil(t, got.SyncSchedule.NextRun)
	assert.Equal(t, 3, got.SyncSchedule.NextRun.Hour())
	assert.Equal(t, 0, got.SyncSchedule.NextRun.Minute())

	manual, err := dsSvc.Get(ctx, unscheduled.ID)
	require.NoError(t, err)
	require.NotNil(t, manual.SyncSchedule)
	assert.Nil(t, manual.SyncSchedule.NextRun)

	// Reloading again replaces rather than duplicates the entries.
	require.NoError(t, scheduler.Reload(ctx))
	assert.Len(t, scheduler.entries, 1)
	assert.Len(t, scheduler.cron.Entries(), 1)
}

func TestSyncScheduler_TickStartsSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ds := env.connectedSource(t, "Warehouse")
	syncs := env.syncs()
	scheduler := NewSyncScheduler(env.dsRepo, syncs, zap.NewNop())

	sched := models.SyncSchedule{Frequency: models.SyncFrequencyHourly, Time: "00:10", Timezone: "UTC"}
	spec, err := CronSpec(&sched)
	require.NoError(t, err)
	parsed, err := cron.ParseStandard(spec)
	require.NoError(t, err)

	scheduler.tick(ds.ID, sched, parsed)
	// A second tick while the first job is queued is skipped.
	scheduler.tick(ds.ID, sched, parsed)

	jobs, err := syncs.List(ctx, ds.ID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].FullSync)

	got, err := env.dataSources().Get(ctx, ds.ID)
	require.NoError(t, err)
	require.NotNil(t, got.SyncSchedule)
	require.NotNil(t, got.SyncSchedule.LastRun)
	require.NotNil(t, got.SyncSchedule.NextRun)
	assert.Equal(t, 10, got.SyncSchedule.NextRun.Minute())
	assert.True(t, got.SyncSchedule.NextRun.After(*got.SyncSchedule.LastRun))
}

func TestSyncScheduler_StartStop(t *testing.T) {
	env := newTestEnv(t)
	scheduler := NewSyncScheduler(env.dsRepo, env.syncs(), zap.NewNop())
	require.NoError(t, scheduler.Start(context.Background()))
	assert.NoError(t, scheduler.Stop(context.Background()))
}
