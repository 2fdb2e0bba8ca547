package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	iauth "github.com/peladahub/peladahub/internal/auth"
	"github.com/peladahub/peladahub/internal/models"
	"github.com/peladahub/peladahub/internal/services"
	"github.com/peladahub/peladahub/pkg/logger"
)

const (
	defaultPaymentSpec = "@every 1m"
	defaultSessionSpec = "@hourly"
	defaultInviteSpec  = "@daily"
)

// Sweeper coordinates background maintenance: crediting lapsed diarist
// payment windows, purging expired sessions and flagging stale invites.
type Sweeper struct {
	db       *gorm.DB
	diarists *services.DiaristService
	sessions *iauth.SessionService
	cron     *cron.Cron
	now      func() time.Time
	log      *zap.Logger
	enabled  bool

	paymentSchedule string
	sessionSchedule string
	inviteSchedule  string
}

// Option customises the Sweeper.
type Option func(*Sweeper)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Sweeper) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithNow overrides the clock used for sweep comparisons.
func WithNow(now func() time.Time) Option {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPaymentSchedule overrides the cron specification for the payment
// window sweep. The default keeps credit within a minute of the deadline.
func WithPaymentSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.paymentSchedule = spec
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.sessionSchedule = spec
		}
	}
}

// WithInviteSchedule overrides the cron specification for invite expiry.
func WithInviteSchedule(spec string) Option {
	return func(s *Sweeper) {
		if spec != "" {
			s.inviteSchedule = spec
		}
	}
}

// NewSweeper constructs a Sweeper with sensible defaults. Any nil dependency
// results in the corresponding job being skipped.
func NewSweeper(db *gorm.DB, diarists *services.DiaristService, sessions *iauth.SessionService, opts ...Option) *Sweeper {
	sweeper := &Sweeper{
		db:              db,
		diarists:        diarists,
		sessions:        sessions,
		now:             time.Now,
		paymentSchedule: defaultPaymentSpec,
		sessionSchedule: defaultSessionSpec,
		inviteSchedule:  defaultInviteSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(sweeper)
	}

	if sweeper.cron == nil {
		sweeper.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	sweeper.enabled = sweeper.diarists != nil || sweeper.sessions != nil || sweeper.db != nil

	return sweeper
}

// Start registers the sweep jobs with the cron scheduler and launches it if
// at least one job is enabled.
func (s *Sweeper) Start() error {
	if !s.enabled {
		return nil
	}

	if s.diarists != nil {
		if _, err := s.cron.AddFunc(s.paymentSchedule, func() {
			credited, err := s.diarists.CreditOverdue(context.Background())
			if err != nil {
				s.log.Warn("payment window sweep failed", zap.Error(err))
				return
			}
			if credited > 0 {
				s.log.Info("credited lapsed payment windows", zap.Int64("count", credited))
			}
		}); err != nil {
			return err
		}
	}

	if s.sessions != nil {
		if _, err := s.cron.AddFunc(s.sessionSchedule, func() {
			if _, err := s.sessions.CleanupExpired(context.Background()); err != nil {
				s.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if s.db != nil {
		if _, err := s.cron.AddFunc(s.inviteSchedule, func() {
			if _, err := ExpireInvites(context.Background(), s.db, s.now()); err != nil {
				s.log.Warn("invite expiry sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Sweeper) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes all configured sweeps sequentially. Primarily used in
// tests and during graceful shutdown.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if s.diarists != nil {
		if _, err := s.diarists.CreditOverdue(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.sessions != nil {
		if _, err := s.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if s.db != nil {
		if _, err := ExpireInvites(ctx, s.db, s.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// ExpireInvites flags sent invites whose deadline has passed so they stop
// showing up as pending. Acceptance checks expiry on its own; this keeps the
// organizer's listing honest.
func ExpireInvites(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("expire invites: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Model(&models.Invite{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", models.InviteStatusSent, now).
		Update("status", models.InviteStatusExpired)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
