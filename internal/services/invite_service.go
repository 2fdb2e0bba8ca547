package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/peladahub/peladahub/internal/models"
	"github.com/peladahub/peladahub/pkg/crypto"
	"github.com/peladahub/peladahub/pkg/mail"
	"github.com/peladahub/peladahub/pkg/metrics"
)

const defaultInviteTokenLength = 40

var (
	// ErrInviteNotFound indicates no invite matches the provided token.
	ErrInviteNotFound = errors.New("invite: not found")
	// ErrInviteAlreadyUsed signals that the invite has already been accepted.
	ErrInviteAlreadyUsed = errors.New("invite: already accepted")
	// ErrInviteExhausted signals that the usage cap has been reached.
	ErrInviteExhausted = errors.New("invite: usage cap reached")
	// ErrInviteExpired indicates the invite token has expired.
	ErrInviteExpired = errors.New("invite: expired")
	// ErrInviteEmailMismatch is returned when the caller's email does not
	// match the invitee's.
	ErrInviteEmailMismatch = errors.New("invite: email does not match")
)

// InviteOption customises InviteService behaviour.
type InviteOption func(*InviteService)

// WithInviteBaseURL configures the base URL used to build shareable links.
func WithInviteBaseURL(url string) InviteOption {
	return func(s *InviteService) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithInviteExpiry sets a default lifetime applied to new invites. Zero means
// invites never expire unless the creator sets a deadline.
func WithInviteExpiry(d time.Duration) InviteOption {
	return func(s *InviteService) {
		if d > 0 {
			s.expiry = d
		}
	}
}

// WithInviteTokenLength adjusts the generated token length in characters.
func WithInviteTokenLength(length int) InviteOption {
	return func(s *InviteService) {
		if length > 0 {
			s.tokenLength = length
		}
	}
}

// WithInviteClock injects a custom clock primarily for testing.
func WithInviteClock(clock func() time.Time) InviteOption {
	return func(s *InviteService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// InviteService manages creation and consumption of membership invites.
type InviteService struct {
	db          *gorm.DB
	mailer      mail.Mailer
	baseURL     string
	expiry      time.Duration
	tokenLength int
	now         func() time.Time
}

// NewInviteService constructs an InviteService with the provided dependencies.
func NewInviteService(db *gorm.DB, mailer mail.Mailer, opts ...InviteOption) (*InviteService, error) {
	if db == nil {
		return nil, errors.New("invite service: db is required")
	}

	service := &InviteService{
		db:          db,
		mailer:      mailer,
		tokenLength: defaultInviteTokenLength,
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// CreateInviteInput describes a new invite.
type CreateInviteInput struct {
	Email      string
	Membership models.Membership
	MaxUses    *int
	ExpiresAt  *time.Time
	InvitedBy  string
}

// CreateInviteResult carries the persisted invite plus its shareable link.
// The raw token is only available here; it is never logged.
type CreateInviteResult struct {
	Invite *models.Invite
	Token  string
	URL    string
}

// Create persists a new invite and returns the shareable URL embedding the
// token. The invite is stored before the URL is handed out, so a returned
// link always resolves.
func (s *InviteService) Create(ctx context.Context, input CreateInviteInput) (*CreateInviteResult, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(input.Email)
	if email == "" {
		return nil, errors.New("invite service: email is required")
	}
	if !input.Membership.Valid() {
		return nil, fmt.Errorf("invite service: invalid membership %q", input.Membership)
	}
	if input.MaxUses != nil && *input.MaxUses <= 0 {
		return nil, errors.New("invite service: max uses must be positive")
	}

	token, err := crypto.GenerateInviteToken(s.tokenLength)
	if err != nil {
		return nil, fmt.Errorf("invite service: generate token: %w", err)
	}

	expiresAt := input.ExpiresAt
	if expiresAt == nil && s.expiry > 0 {
		at := s.now().Add(s.expiry)
		expiresAt = &at
	}

	invite := models.Invite{
		Token:      token,
		Email:      email,
		Membership: input.Membership,
		Status:     models.InviteStatusSent,
		MaxUses:    input.MaxUses,
		ExpiresAt:  expiresAt,
		InvitedBy:  strings.TrimSpace(input.InvitedBy),
	}

	if err := s.db.WithContext(ctx).Create(&invite).Error; err != nil {
		return nil, fmt.Errorf("invite service: create invite: %w", err)
	}

	link := s.inviteLink(token)

	if s.mailer != nil {
		message := mail.Message{
			To:      []string{email},
			Subject: "You're invited to PeladaHub",
			Body:    s.inviteBody(link),
		}
		if mailErr := s.mailer.Send(ctx, message); mailErr != nil && !errors.Is(mailErr, mail.ErrSMTPDisabled) {
			return nil, fmt.Errorf("invite service: send email: %w", mailErr)
		}
	}

	return &CreateInviteResult{Invite: &invite, Token: token, URL: link}, nil
}

// List returns invites ordered newest first.
func (s *InviteService) List(ctx context.Context) ([]models.Invite, error) {
	ctx = ensureContext(ctx)

	var invites []models.Invite
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&invites).Error; err != nil {
		return nil, fmt.Errorf("invite service: list invites: %w", err)
	}
	return invites, nil
}

// Link rebuilds the shareable URL for an existing invite.
func (s *InviteService) Link(ctx context.Context, inviteID string) (string, error) {
	ctx = ensureContext(ctx)

	var invite models.Invite
	if err := s.db.WithContext(ctx).Take(&invite, "id = ?", inviteID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInviteNotFound
		}
		return "", fmt.Errorf("invite service: find invite: %w", err)
	}
	return s.inviteLink(invite.Token), nil
}

// AcceptInviteInput identifies the caller consuming an invite.
type AcceptInviteInput struct {
	Token       string
	CallerID    string
	CallerEmail string
}

// AcceptInviteResult is what the mobile client needs to route the user after
// joining: the granted membership and the screens it unlocks, in order.
type AcceptInviteResult struct {
	Membership models.Membership `json:"membership"`
	Routes     []string          `json:"routes"`
}

// Accept validates and consumes an invite token, then upserts the caller's
// profile with the invite's membership kind.
//
// Preconditions are checked in a fixed order so each failure is distinct:
// unknown token, already accepted, usage cap reached, expired, email
// mismatch. The consumption itself is a single conditional UPDATE so two
// concurrent acceptances of a single-use token can never both succeed.
//
// The invite is marked consumed before the profile write. If the profile
// upsert fails the consumption is not rolled back; the caller sees a
// dependency error and support resolves manually.
func (s *InviteService) Accept(ctx context.Context, input AcceptInviteInput) (*AcceptInviteResult, error) {
	ctx = ensureContext(ctx)

	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, errors.New("invite service: token is required")
	}
	callerID := strings.TrimSpace(input.CallerID)
	if callerID == "" {
		return nil, errors.New("invite service: caller id is required")
	}
	callerEmail := normaliseEmail(input.CallerEmail)

	var invite models.Invite
	if err := s.db.WithContext(ctx).Where("token = ?", token).Take(&invite).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.InviteAcceptances.WithLabelValues("not_found").Inc()
			return nil, ErrInviteNotFound
		}
		metrics.InviteAcceptances.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("invite service: find invite: %w", err)
	}

	now := s.now()

	if err := s.checkPreconditions(&invite, callerEmail, now); err != nil {
		return nil, err
	}

	// Consume atomically. The WHERE clause re-asserts every precondition so a
	// concurrent acceptance that slipped in between the read and this write
	// makes the update match zero rows instead of double-consuming.
	result := s.db.WithContext(ctx).Model(&models.Invite{}).
		Where("token = ? AND status = ?", token, models.InviteStatusSent).
		Where("max_uses IS NULL OR used_count < max_uses").
		Where("expires_at IS NULL OR expires_at > ?", now).
		Updates(map[string]any{
			"status":      models.InviteStatusAccepted,
			"used_count":  gorm.Expr("used_count + 1"),
			"consumed_by": callerID,
			"consumed_at": now,
		})
	if result.Error != nil {
		metrics.InviteAcceptances.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("invite service: consume invite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		metrics.InviteAcceptances.WithLabelValues("conflict").Inc()
		return nil, ErrInviteAlreadyUsed
	}

	if err := s.upsertProfile(ctx, callerID, callerEmail, invite.Membership); err != nil {
		metrics.InviteAcceptances.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("invite service: upsert profile: %w", err)
	}

	metrics.InviteAcceptances.WithLabelValues("success").Inc()

	return &AcceptInviteResult{
		Membership: invite.Membership,
		Routes:     invite.Membership.Routes(),
	}, nil
}

func (s *InviteService) checkPreconditions(invite *models.Invite, callerEmail string, now time.Time) error {
	switch {
	case invite.Status != models.InviteStatusSent:
		metrics.InviteAcceptances.WithLabelValues("conflict").Inc()
		return ErrInviteAlreadyUsed
	case invite.Exhausted():
		metrics.InviteAcceptances.WithLabelValues("conflict").Inc()
		return ErrInviteExhausted
	case invite.Expired(now):
		metrics.InviteAcceptances.WithLabelValues("conflict").Inc()
		return ErrInviteExpired
	case normaliseEmail(invite.Email) != callerEmail:
		metrics.InviteAcceptances.WithLabelValues("forbidden").Inc()
		return ErrInviteEmailMismatch
	}
	return nil
}

func (s *InviteService) upsertProfile(ctx context.Context, callerID, callerEmail string, membership models.Membership) error {
	user := models.User{
		BaseModel:  models.BaseModel{ID: callerID},
		Email:      callerEmail,
		Membership: membership,
		Role:       models.RolePlayer,
		IsActive:   true,
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"membership", "role", "updated_at"}),
		}).Create(&user).Error
}

func (s *InviteService) inviteLink(token string) string {
	if s.baseURL == "" {
		return token
	}
	return fmt.Sprintf("%s/invite/accept?token=%s", s.baseURL, token)
}

func (s *InviteService) inviteBody(link string) string {
	return fmt.Sprintf("Hello,\n\nYou have been invited to join a pelada group on PeladaHub. Use the following link to accept your invite:\n%s\n\nIf you did not expect this email, you can ignore it.\n", link)
}
