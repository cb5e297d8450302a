package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/genbi-engine/pkg/repositories"
)

// RecoveryService fails work that was active when the process last stopped.
type RecoveryService interface {
	// Recover must run before the server accepts requests.
	Recover(ctx context.Context) error
}

type recoveryService struct {
	dsRepo    repositories.DataSourceRepository
	syncRepo  repositories.SyncRepository
	queryRepo repositories.QueryRepository
	logger    *zap.Logger
}

// NewRecoveryService creates the startup recovery step.
func NewRecoveryService(
	dsRepo repositories.DataSourceRepository,
	syncRepo repositories.SyncRepository,
	queryRepo repositories.QueryRepository,
	logger *zap.Logger,
) RecoveryService {
	return &recoveryService{dsRepo: dsRepo, syncRepo: syncRepo, queryRepo: queryRepo, logger: logger.Named("recovery")}
}

func (s *recoveryService) Recover(ctx context.Context) error {
	syncs, err := s.syncRepo.FailActive(ctx, InterruptedMessage, time.Now().UTC())
	if err != nil {
		return err
	}
	queries, err := s.queryRepo.FailActive(ctx, InterruptedMessage)
	if err != nil {
		return err
	}
	sources, err := s.dsRepo.FailConnecting(ctx, InterruptedMessage)
	if err != nil {
		return err
	}

	if syncs+queries+sources > 0 {
		s.logger.Warn("Recovered interrupted work",
			zap.Int64("sync_jobs", syncs),
			zap.Int64("queries", queries),
			zap.Int64("data_sources", sources))
	}
	return nil
}
