package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/budgetbook/internal/auth"
	"github.com/dmitrijs2005/budgetbook/internal/common"
	"github.com/dmitrijs2005/budgetbook/internal/logging"
	"github.com/dmitrijs2005/budgetbook/internal/models"
	"github.com/dmitrijs2005/budgetbook/internal/repositories/metadata"
)

// IdentityService resolves who is calling. The guest flag lives on the
// device and wins over any stored session; a stored token counts only while
// it verifies.
type IdentityService struct {
	meta   metadata.Repository
	secret []byte
	logger logging.Logger
}

func NewIdentityService(meta metadata.Repository, secret []byte, logger logging.Logger) *IdentityService {
	return &IdentityService{meta: meta, secret: secret, logger: logging.Component(logger, "identity")}
}

func (s *IdentityService) Mode(ctx context.Context) (models.Mode, error) {
	guest, err := s.isGuest(ctx)
	if err != nil {
		return models.ModeNone, err
	}
	if guest {
		return models.ModeGuest, nil
	}

	sess, err := s.Session(ctx)
	if err != nil {
		return models.ModeNone, err
	}
	if sess != nil {
		return models.ModeAuthenticated, nil
	}
	return models.ModeNone, nil
}

// Session returns nil, nil when there is no usable session.
func (s *IdentityService) Session(ctx context.Context) (*models.Session, error) {
	guest, err := s.isGuest(ctx)
	if err != nil || guest {
		return nil, err
	}

	token, ok, err := s.meta.Get(ctx, metadata.KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if !ok || token == "" {
		return nil, nil
	}

	sess, err := auth.ParseToken(token, s.secret)
	if err != nil {
		s.logger.Debug(ctx, "stored token rejected", "error", err)
		return nil, nil
	}
	return sess, nil
}

// CurrentUserID returns "" when there is no session or the device is in
// guest mode.
func (s *IdentityService) CurrentUserID(ctx context.Context) (string, error) {
	sess, err := s.Session(ctx)
	if err != nil || sess == nil {
		return "", err
	}
	return sess.UserID, nil
}

// RequireUser is CurrentUserID for write paths.
func (s *IdentityService) RequireUser(ctx context.Context) (string, error) {
	id, err := s.CurrentUserID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", common.ErrNoSession
	}
	return id, nil
}

// SignIn verifies token, stores it and leaves guest mode.
func (s *IdentityService) SignIn(ctx context.Context, token string) (*models.Session, error) {
	sess, err := auth.ParseToken(token, s.secret)
	if err != nil {
		return nil, err
	}
	if err := s.meta.Set(ctx, metadata.KeyAccessToken, token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}
	if err := s.meta.Set(ctx, metadata.KeyAuthMode, string(models.ModeAuthenticated)); err != nil {
		return nil, fmt.Errorf("store mode: %w", err)
	}
	s.logger.Info(ctx, "signed in", "user_id", sess.UserID)
	return sess, nil
}

// ContinueAsGuest switches the device to guest mode and drops any session.
func (s *IdentityService) ContinueAsGuest(ctx context.Context) error {
	if err := s.meta.Set(ctx, metadata.KeyAuthMode, string(models.ModeGuest)); err != nil {
		return fmt.Errorf("store mode: %w", err)
	}
	if err := s.meta.Delete(ctx, metadata.KeyAccessToken); err != nil {
		return fmt.Errorf("drop token: %w", err)
	}
	return nil
}

func (s *IdentityService) SignOut(ctx context.Context) error {
	if err := s.meta.Delete(ctx, metadata.KeyAuthMode); err != nil {
		return fmt.Errorf("clear mode: %w", err)
	}
	if err := s.meta.Delete(ctx, metadata.KeyAccessToken); err != nil {
		return fmt.Errorf("drop token: %w", err)
	}
	return nil
}

// DisplayName is the name shown for the caller: the session profile name, or
// the guest label.
func (s *IdentityService) DisplayName(ctx context.Context) (string, error) {
	guest, err := s.isGuest(ctx)
	if err != nil {
		return "", err
	}
	if guest {
		return common.GuestDisplayName, nil
	}
	sess, err := s.Session(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", common.ErrNoSession
	}
	return sess.Profile().DisplayName(), nil
}

func (s *IdentityService) isGuest(ctx context.Context) (bool, error) {
	mode, ok, err := s.meta.Get(ctx, metadata.KeyAuthMode)
	if err != nil {
		return false, fmt.Errorf("read mode: %w", err)
	}
	return ok && models.Mode(mode) == models.ModeGuest, nil
}
