package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/bankapp/internal/common"
	"github.com/dmitrijs2005/bankapp/internal/logging"
	"github.com/dmitrijs2005/bankapp/internal/server/auth"
	"github.com/dmitrijs2005/bankapp/internal/server/config"
	"github.com/dmitrijs2005/bankapp/internal/server/models"
	"github.com/dmitrijs2005/bankapp/internal/server/notify"
	"github.com/dmitrijs2005/bankapp/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bankapp/internal/server/validation"
	"github.com/dmitrijs2005/bankapp/internal/timex"
	"github.com/shopspring/decimal"
)

const (
	accountNumberAttempts = 5

	MsgUsernameTaken = "Please use a different username."
	MsgEmailTaken    = "Please use a different email address."
	MsgEmailInUse    = "This email is already in use. Please use a different email address."
)

type UserService struct {
	repos   repomanager.RepositoryManager
	hasher  auth.Hasher
	tokens  *auth.ResetTokens
	events  notify.Publisher
	logger  logging.Logger
	clock   timex.Clock
	timeout time.Duration

	baseURL       string
	defaultStatus string

	dummyOnce   sync.Once
	dummyDigest string
}

func NewUserService(repos repomanager.RepositoryManager, hasher auth.Hasher, tokens *auth.ResetTokens,
	events notify.Publisher, logger logging.Logger, cfg *config.Config) *UserService {
	status := cfg.RegistrationDefaultStatus
	if status != common.StatusActive {
		status = common.StatusPending
	}
	return &UserService{
		repos:         repos,
		hasher:        hasher,
		tokens:        tokens,
		events:        events,
		logger:        logger,
		clock:         timex.SystemClock,
		timeout:       cfg.StoreTimeout,
		baseURL:       strings.TrimRight(cfg.PublicBaseURL, "/"),
		defaultStatus: status,
	}
}

// Register creates a customer account. Field problems, including taken
// usernames and emails, come back as a *validation.Result.
func (s *UserService) Register(ctx context.Context, form validation.RegistrationForm) (*models.User, error) {
	return s.register(ctx, form, s.defaultStatus, false)
}

// CreateAdmin creates an active administrator.
func (s *UserService) CreateAdmin(ctx context.Context, form validation.RegistrationForm) (*models.User, error) {
	return s.register(ctx, form, common.StatusActive, true)
}

func (s *UserService) register(ctx context.Context, form validation.RegistrationForm, status string, admin bool) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	r := form.Validate()
	email := validation.NormalizeEmail(form.Email)
	repo := s.repos.Users()

	if !r.Has(validation.FieldUsername) {
		taken, err := exists(repo.GetByUsername(ctx, form.Username))
		if err != nil {
			return nil, storeFailure(ctx, s.logger, "register", err)
		}
		if taken {
			r.Add(validation.FieldUsername, MsgUsernameTaken)
		}
	}
	if !r.Has(validation.FieldEmail) {
		taken, err := exists(repo.GetByEmail(ctx, email))
		if err != nil {
			return nil, storeFailure(ctx, s.logger, "register", err)
		}
		if taken {
			r.Add(validation.FieldEmail, MsgEmailTaken)
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(form.Password)
	if err != nil {
		return nil, storeFailure(ctx, s.logger, "register", err)
	}

	for i := 0; i < accountNumberAttempts; i++ {
		number, err := common.MakeRandDigits(common.AccountNumberLength)
		if err != nil {
			return nil, storeFailure(ctx, s.logger, "register", err)
		}

		user, err := repo.Create(ctx, &models.User{
			Username:      form.Username,
			Email:         email,
			PasswordHash:  hash,
			AccountNumber: number,
			Balance:       decimal.Zero,
			Status:        status,
			IsAdmin:       admin,
		})
		switch {
		case err == nil:
			s.logger.Info(ctx, "user registered", "user_id", user.ID, "status", status)
			return user, nil
		case errors.Is(err, common.ErrAccountNumberTaken):
			continue
		case errors.Is(err, common.ErrUsernameTaken):
			return nil, validation.FieldError(validation.FieldUsername, MsgUsernameTaken).WithCause(err)
		case errors.Is(err, common.ErrEmailTaken):
			return nil, validation.FieldError(validation.FieldEmail, MsgEmailTaken).WithCause(err)
		default:
			return nil, storeFailure(ctx, s.logger, "register", err)
		}
	}

	return nil, storeFailure(ctx, s.logger, "register", common.ErrAccountNumberTaken)
}

func exists(_ *models.User, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, common.ErrorNotFound) {
		return false, nil
	}
	return false, err
}

// dummy returns a digest to compare against when the username is unknown,
// so a failed lookup costs as much as a failed password check.
func (s *UserService) dummy() string {
	s.dummyOnce.Do(func() {
		d, err := s.hasher.Hash("not-a-real-password-1A!")
		if err == nil {
			s.dummyDigest = d
		}
	})
	return s.dummyDigest
}

// Login checks credentials. Unknown usernames and wrong passwords both yield
// common.ErrInvalidCredentials; the account status is only revealed to
// callers who know the password.
func (s *UserService) Login(ctx context.Context, form validation.LoginForm) (*models.User, error) {
	if err := form.Validate().Err(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repos.Users().GetByUsername(ctx, form.Username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(form.Password, s.dummy())
			return nil, common.ErrInvalidCredentials
		}
		return nil, storeFailure(ctx, s.logger, "login", err)
	}

	if !s.hasher.Verify(form.Password, user.PasswordHash) {
		return nil, common.ErrInvalidCredentials
	}

	switch user.Status {
	case common.StatusActive:
		return user, nil
	case common.StatusPending:
		return nil, common.ErrAccountPending
	default:
		return nil, common.ErrAccountDeactivated
	}
}

// RequestPasswordReset issues a reset token for the account registered under
// the email and publishes a notification. Unknown and deactivated accounts
// are silently ignored.
func (s *UserService) RequestPasswordReset(ctx context.Context, form validation.ResetRequestForm) error {
	if err := form.Validate().Err(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	repo := s.repos.Users()
	user, err := repo.GetByEmail(ctx, validation.NormalizeEmail(form.Email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return storeFailure(ctx, s.logger, "reset request", err)
	}
	if user.Status == common.StatusDeactivated {
		return nil
	}

	token, jti, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return storeFailure(ctx, s.logger, "reset request", err)
	}
	if err := repo.SetResetToken(ctx, user.ID, jti, expiresAt); err != nil {
		return storeFailure(ctx, s.logger, "reset request", err)
	}

	ev := notify.PasswordResetRequested{
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		ResetURL:  s.baseURL + "/reset_password/" + url.PathEscape(token),
		ExpiresAt: expiresAt,
	}
	if err := s.events.Publish(ctx, notify.RoutingPasswordResetRequested, ev); err != nil {
		s.logger.Warn(ctx, "reset notification not published", "user_id", user.ID, "error", err)
	}
	return nil
}

// VerifyResetToken returns the user a reset token belongs to. It does not
// modify anything.
func (s *UserService) VerifyResetToken(ctx context.Context, token string) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, common.ErrTokenInvalid
	}

	user, err := s.repos.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenUnknown
		}
		return nil, storeFailure(ctx, s.logger, "verify reset token", err)
	}
	if err := s.checkStoredToken(user, claims.ID); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) checkStoredToken(user *models.User, jti string) error {
	if user.ResetToken == nil || *user.ResetToken != jti {
		return common.ErrTokenUnknown
	}
	if user.ResetTokenExpiry != nil && !s.clock().Before(*user.ResetTokenExpiry) {
		return common.ErrTokenExpired
	}
	return nil
}

// ResetPassword sets a new password using a reset token. The token is
// consumed in the same transaction, so it works once.
func (s *UserService) ResetPassword(ctx context.Context, token string, form validation.ResetPasswordForm) error {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return err
	}
	id, err := claims.UserID()
	if err != nil {
		return common.ErrTokenInvalid
	}

	if err := form.Validate().Err(); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(form.Password)
	if err != nil {
		return storeFailure(ctx, s.logger, "reset password", err)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	err = s.repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		user, err := r.Users().GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrTokenUnknown
			}
			return err
		}
		if err := s.checkStoredToken(user, claims.ID); err != nil {
			return err
		}
		return r.Users().UpdatePassword(ctx, user.ID, hash)
	})
	if err != nil {
		return storeFailure(ctx, s.logger, "reset password", err)
	}

	s.logger.Info(ctx, "password reset completed", "user_id", id)
	return nil
}

// Account returns the user with their current balance.
func (s *UserService) Account(ctx context.Context, userID int64) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.repos.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, storeFailure(ctx, s.logger, "account", err)
	}
	return user, nil
}

// UpdateProfile edits the caller's own contact details.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, form validation.ProfileForm) (*models.User, error) {
	if err := form.Validate().Err(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var updated *models.User
	err := s.repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		u, err := s.applyProfile(ctx, r, userID, form)
		updated = u
		return err
	})
	if err != nil {
		return nil, s.profileError(ctx, err)
	}
	return updated, nil
}

func (s *UserService) applyProfile(ctx context.Context, r repomanager.Repositories, userID int64, form validation.ProfileForm) (*models.User, error) {
	repo := r.Users()
	user, err := repo.GetByIDForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}

	email := validation.NormalizeEmail(form.Email)
	if email != user.Email {
		other, err := repo.GetByEmail(ctx, email)
		if err == nil && other.ID != user.ID {
			return nil, common.ErrEmailTaken
		}
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
	}

	p := models.ProfileUpdate{
		Email:       email,
		FirstName:   strings.TrimSpace(form.FirstName),
		LastName:    strings.TrimSpace(form.LastName),
		Phone:       strings.TrimSpace(form.Phone),
		AddressLine: strings.TrimSpace(form.AddressLine),
		PostalCode:  strings.TrimSpace(form.PostalCode),
	}
	if err := repo.UpdateProfile(ctx, user.ID, p); err != nil {
		return nil, err
	}

	user.Email = p.Email
	user.FirstName = p.FirstName
	user.LastName = p.LastName
	user.Phone = p.Phone
	user.AddressLine = p.AddressLine
	user.PostalCode = p.PostalCode
	return user, nil
}

func (s *UserService) profileError(ctx context.Context, err error) error {
	if errors.Is(err, common.ErrEmailTaken) {
		return validation.FieldError(validation.FieldEmail, MsgEmailInUse).WithCause(err)
	}
	return storeFailure(ctx, s.logger, "update profile", err)
}

// ListUsers pages through all users for administrators.
func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	users, err := s.repos.Users().List(ctx, limit, offset)
	if err != nil {
		return nil, storeFailure(ctx, s.logger, "list users", err)
	}
	return users, nil
}

// UpdateUser lets an administrator edit a user's profile and status.
func (s *UserService) UpdateUser(ctx context.Context, userID int64, form validation.AdminUserForm) (*models.User, error) {
	if err := form.Validate().Err(); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var updated *models.User
	err := s.repos.WithTx(ctx, func(ctx context.Context, r repomanager.Repositories) error {
		u, err := s.applyProfile(ctx, r, userID, form.ProfileForm)
		if err != nil {
			return err
		}
		if err := r.Users().UpdateStatus(ctx, userID, form.Status); err != nil {
			return err
		}
		u.Status = form.Status
		updated = u
		return nil
	})
	if err != nil {
		return nil, s.profileError(ctx, err)
	}

	s.logger.Info(ctx, "user updated by admin", "user_id", userID, "status", form.Status)
	return updated, nil
}

// ClearExpiredResetTokens drops reset tokens past their expiry.
func (s *UserService) ClearExpiredResetTokens(ctx context.Context) (int64, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.repos.Users().ClearExpiredResetTokens(ctx, s.clock())
	if err != nil {
		return 0, storeFailure(ctx, s.logger, "clear reset tokens", err)
	}
	return n, nil
}
