package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	authDomain "github.com/allisson/rotator/internal/auth/domain"
	apperrors "github.com/allisson/rotator/internal/errors"
)

// SchedulerConfig holds scheduler settings.
type SchedulerConfig struct {
	Interval  time.Duration
	BatchSize int
	// StaleAfter is how long a definition may stay rotating before the scheduler
	// treats the attempt as abandoned and retries it.
	StaleAfter time.Duration
}

// Scheduler rotates due definitions as the system actor.
type Scheduler struct {
	config       SchedulerConfig
	rotationRepo RotationRepository
	useCase      RotationUseCase
	clock        clockwork.Clock
	logger       *slog.Logger
}

// NewScheduler creates a scheduler. A nil clock uses the real clock.
func NewScheduler(
	config SchedulerConfig,
	rotationRepo RotationRepository,
	useCase RotationUseCase,
	clock clockwork.Clock,
	logger *slog.Logger,
) *Scheduler {
	if config.Interval <= 0 {
		config.Interval = time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = 15 * time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		config:       config,
		rotationRepo: rotationRepo,
		useCase:      useCase,
		clock:        clock,
		logger:       logger,
	}
}

// Start runs the scheduling loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("starting rotation scheduler",
		slog.Duration("interval", s.config.Interval),
		slog.Int("batch_size", s.config.BatchSize),
	)

	ticker := s.clock.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopping rotation scheduler")
			return ctx.Err()
		case <-ticker.Chan():
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("failed to run due rotations", slog.Any("error", err))
			}
		}
	}
}

// RunOnce rotates one batch of due definitions and returns how many succeeded.
// Definitions left rotating by an abandoned attempt are retried, which reconciles
// their pending issuance. Definitions rotating in this process are skipped and
// individual failures are logged.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	due, err := s.rotationRepo.ListDue(ctx, now, now.Add(-s.config.StaleAfter), s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	rotated := 0
	for _, rotation := range due {
		if ctx.Err() != nil {
			return rotated, ctx.Err()
		}

		logger := s.logger.With(slog.String("rotation_id", rotation.ID.String()))
		result, err := s.useCase.Rotate(ctx, authDomain.SystemActor, rotation.ID)
		switch {
		case apperrors.Is(err, apperrors.ErrConflict):
			logger.Debug("rotation already in progress")
		case err != nil:
			logger.Error("scheduled rotation failed", slog.Any("error", err))
		default:
			rotated++
			if result.RevokeError != nil {
				logger.Warn("scheduled rotation left previous credential active",
					slog.Any("error", result.RevokeError))
			}
		}
	}
	return rotated, nil
}
