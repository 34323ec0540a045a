package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pushit/marketplace/internal/auth"
	"github.com/pushit/marketplace/internal/models"
	"github.com/pushit/marketplace/internal/repositories"
	"go.uber.org/zap"
)

type AccountStore interface {
	CreateAccount(ctx context.Context, a repositories.NewAccount) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID) error
}

type ProfileStore interface {
	GetBrand(ctx context.Context, userID uuid.UUID) (*models.Brand, error)
	UpdateBrand(ctx context.Context, b *models.Brand) error
	GetInfluencer(ctx context.Context, userID uuid.UUID) (*models.Influencer, error)
	UpdateInfluencer(ctx context.Context, i *models.Influencer) error
}

// ApprovalEvaluator re-checks whether an influencer qualifies for
// automatic approval after their profile changes.
type ApprovalEvaluator interface {
	EvaluateApproval(ctx context.Context, influencerID uuid.UUID) (bool, error)
}

type SignupInput struct {
	Email           string
	Username        string
	Password        string
	Role            string
	Currency        string
	CompanyName     string
	Niche           string
	PrimaryPlatform string
}

type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Profile is a user together with their role profile.
type Profile struct {
	User       *models.User       `json:"user"`
	Brand      *models.Brand      `json:"brand,omitempty"`
	Influencer *models.Influencer `json:"influencer,omitempty"`
}

type ProfileUpdate struct {
	CompanyName     *string
	Website         *string
	Industry        *string
	Description     *string
	Bio             *string
	Niche           *string
	PrimaryPlatform *string
}

type AccountService struct {
	users     AccountStore
	profiles  ProfileStore
	rates     RateProvider
	approver  ApprovalEvaluator
	audit     AuditLogger
	jwtSecret string
	jwtTTL    time.Duration
	log       *zap.Logger
}

func NewAccountService(
	users AccountStore,
	profiles ProfileStore,
	rates RateProvider,
	approver ApprovalEvaluator,
	audit AuditLogger,
	jwtSecret string,
	jwtTTL time.Duration,
	log *zap.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		profiles:  profiles,
		rates:     rates,
		approver:  approver,
		audit:     audit,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
		log:       log,
	}
}

func (s *AccountService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !strings.Contains(email, "@") {
		return nil, models.NewValidationError("invalid email")
	}
	if strings.TrimSpace(in.Username) == "" {
		return nil, models.NewValidationError("username is required")
	}
	if len(in.Password) < auth.MinPasswordLength {
		return nil, models.NewValidationError(fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}
	if in.Role != models.RoleBrand && in.Role != models.RoleInfluencer {
		return nil, models.NewValidationError("role must be brand or influencer")
	}

	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = rates.Default
	}
	if !rates.Supports(currency) {
		return nil, models.ErrCurrencyUnsupported
	}

	hash, err := auth.HashPassword(in.Password, auth.DefaultArgon2Params)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	acc := repositories.NewAccount{
		User: &models.User{
			Email:        email,
			Username:     strings.TrimSpace(in.Username),
			PasswordHash: hash,
			Role:         in.Role,
		},
		Currency: currency,
	}
	if in.Role == models.RoleBrand {
		name := strings.TrimSpace(in.CompanyName)
		if name == "" {
			name = acc.User.Username
		}
		acc.Brand = &models.Brand{CompanyName: name, Currency: currency}
	} else {
		inf := &models.Influencer{Currency: currency}
		if n := normalizeNiche(in.Niche); n != "" {
			inf.Niche = &n
		}
		if in.PrimaryPlatform != "" {
			if !models.IsValidPlatform(in.PrimaryPlatform) {
				return nil, models.NewValidationError("unknown primary platform")
			}
			p := in.PrimaryPlatform
			inf.PrimaryPlatform = &p
		}
		acc.Influencer = inf
	}

	if err := s.users.CreateAccount(ctx, acc); err != nil {
		return nil, err
	}

	audit(ctx, s.audit, s.log, models.AuditLog{
		ActorUserID: &acc.User.ID,
		ActorType:   models.ActorUser,
		Action:      "account_created",
		EntityType:  "user",
		EntityID:    &acc.User.ID,
		Meta:        map[string]any{"role": in.Role, "currency": currency},
	})
	s.log.Info("account created", zap.String("user_id", acc.User.ID.String()), zap.String("role", in.Role))

	return s.session(acc.User)
}

func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.VerifyPassword(password, u.PasswordHash)
	if err != nil || !ok {
		return nil, models.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, models.ErrAccountPaused
	}

	if err := s.users.UpdateLastLogin(ctx, u.ID); err != nil {
		s.log.Warn("update last login failed", zap.Error(err))
	}
	return s.session(u)
}

func (s *AccountService) session(u *models.User) (*Session, error) {
	token, err := auth.GenerateJWT(s.jwtSecret, u.ID, u.Role, s.jwtTTL)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{Token: token, User: u}, nil
}

func (s *AccountService) Me(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := &Profile{User: u}
	switch u.Role {
	case models.RoleBrand:
		p.Brand, err = s.profiles.GetBrand(ctx, userID)
	case models.RoleInfluencer:
		p.Influencer, err = s.profiles.GetInfluencer(ctx, userID)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProfile edits the caller's role profile. Currency is fixed at
// signup because wallets are keyed by it.
func (s *AccountService) UpdateProfile(ctx context.Context, actor Actor, in ProfileUpdate) (*Profile, error) {
	switch actor.Role {
	case models.RoleBrand:
		b, err := s.profiles.GetBrand(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if in.CompanyName != nil {
			name := strings.TrimSpace(*in.CompanyName)
			if name == "" {
				return nil, models.NewValidationError("company_name must not be empty")
			}
			b.CompanyName = name
		}
		if in.Website != nil {
			b.Website = in.Website
		}
		if in.Industry != nil {
			b.Industry = in.Industry
		}
		if in.Description != nil {
			b.Description = in.Description
		}
		if err := s.profiles.UpdateBrand(ctx, b); err != nil {
			return nil, err
		}

	case models.RoleInfluencer:
		inf, err := s.profiles.GetInfluencer(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		if in.Bio != nil {
			inf.Bio = in.Bio
		}
		if in.Niche != nil {
			n := normalizeNiche(*in.Niche)
			if n == "" {
				inf.Niche = nil
			} else {
				inf.Niche = &n
			}
		}
		if in.PrimaryPlatform != nil {
			if !models.IsValidPlatform(*in.PrimaryPlatform) {
				return nil, models.NewValidationError("unknown primary platform")
			}
			inf.PrimaryPlatform = in.PrimaryPlatform
		}
		if err := s.profiles.UpdateInfluencer(ctx, inf); err != nil {
			return nil, err
		}
		if s.approver != nil {
			if _, err := s.approver.EvaluateApproval(ctx, actor.UserID); err != nil {
				s.log.Warn("auto-approval check failed", zap.String("user_id", actor.UserID.String()), zap.Error(err))
			}
		}

	default:
		return nil, models.ErrForbidden
	}

	return s.Me(ctx, actor.UserID)
}

func normalizeNiche(n string) string {
	return strings.ToLower(strings.TrimSpace(n))
}
