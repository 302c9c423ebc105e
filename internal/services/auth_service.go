package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

const tokenTypeBearer = "Bearer"

type authService struct {
	repo       repositories.Repository
	db         *gorm.DB
	logger     *slog.Logger
	validator  *validator.Validator
	tokens     *TokenManager
	bcryptCost int
}

func NewAuthService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, tokens *TokenManager, bcryptCost int) AuthService {
	return &authService{
		repo:       repo,
		db:         db,
		logger:     logger,
		validator:  validator,
		tokens:     tokens,
		bcryptCost: bcryptCost,
	}
}

func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	role := models.RoleStudent
	if req.Role != "" {
		role = models.UserRole(req.Role)
	}

	hash, err := hashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	}

	var resp *AuthResponse
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		exists, err := s.repo.User().ExistsByEmail(ctx, tx, req.Email, nil)
		if err != nil {
			return err
		}
		if exists {
			return ErrEmailTaken
		}
		if err := s.repo.User().Create(ctx, tx, user); err != nil {
			if repositories.IsDuplicateError(err) {
				return ErrEmailTaken
			}
			return err
		}
		resp, err = s.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User registered", "user_id", user.ID, "role", user.Role)
	return resp, nil
}

func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByEmail(ctx, s.db, req.Email)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !checkPassword(user.PasswordHash, req.Password) {
		s.logger.Warn("Failed login attempt", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	var resp *AuthResponse
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		now := nowUTC()
		if err := s.repo.User().Update(ctx, tx, user.ID, map[string]interface{}{"last_login": now}); err != nil {
			return err
		}
		user.LastLogin = &now
		resp, err = s.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return resp, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}

	stored, err := s.repo.RefreshToken().GetByToken(ctx, s.db, refreshToken)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load refresh token: %w", err)
	}
	if !stored.IsUsable(nowUTC()) {
		return nil, ErrInvalidToken
	}

	user, err := s.repo.User().GetByID(ctx, s.db, stored.UserID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	access, expiresAt, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken: access,
		TokenType:   tokenTypeBearer,
		ExpiresIn:   int64(expiresAt.Sub(nowUTC()).Seconds()),
	}, nil
}

// Logout revokes a refresh token owned by the requester. Unknown tokens are ignored.
func (s *authService) Logout(ctx context.Context, refreshToken string, requester Principal) error {
	if refreshToken == "" {
		return validator.NewValidationError("refreshToken", "refresh token is required", nil)
	}

	stored, err := s.repo.RefreshToken().GetByToken(ctx, s.db, refreshToken)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil
		}
		return fmt.Errorf("failed to load refresh token: %w", err)
	}
	if stored.UserID != requester.UserID && !requester.IsAdmin() {
		return NewPermissionError(requester.UserID, stored.ID, "refresh_token", "revoke", "token belongs to another user")
	}

	if _, err := s.repo.RefreshToken().Revoke(ctx, nil, refreshToken, nowUTC()); err != nil {
		return err
	}
	s.logger.Info("User logged out", "user_id", stored.UserID)
	return nil
}

func (s *authService) Me(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound, userID, "failed to load user")
	}
	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	return s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		user, err := s.repo.User().GetByID(ctx, tx, userID)
		if err != nil {
			return notFound(err, ErrUserNotFound, userID, "failed to load user")
		}
		if !checkPassword(user.PasswordHash, req.CurrentPassword) {
			return NewAuthenticationError("current password is incorrect")
		}

		hash, err := hashPassword(req.NewPassword, s.bcryptCost)
		if err != nil {
			return err
		}
		if err := s.repo.User().Update(ctx, tx, userID, map[string]interface{}{"password_hash": hash}); err != nil {
			return err
		}
		// existing sessions end with the old password
		if err := s.repo.RefreshToken().RevokeAllForUser(ctx, tx, userID, nowUTC()); err != nil {
			return err
		}

		s.logger.Info("Password changed", "user_id", userID)
		return nil
	})
}

// VerifyAccessToken checks the signature and that the account is still active.
// The role comes from the current account, so deactivation and role changes
// apply before the token expires.
func (s *authService) VerifyAccessToken(ctx context.Context, token string) (*AccessClaims, error) {
	claims, err := s.tokens.ParseAccessToken(token)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByID(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to load token subject: %w", err)
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}
	claims.Role = user.Role
	return claims, nil
}

func (s *authService) SSOEnabled() bool {
	return s.repo.Identity() != nil
}

// LoginWithCasdoor exchanges an authorization code and signs in the matching
// local account, creating or linking it on first use.
func (s *authService) LoginWithCasdoor(ctx context.Context, req *CasdoorLoginRequest) (*AuthResponse, error) {
	if !s.SSOEnabled() {
		return nil, ErrSSODisabled
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	identity, err := s.repo.Identity().Exchange(ctx, req.Code, req.State)
	if err != nil {
		s.logger.Warn("Casdoor exchange failed", "error", err)
		return nil, NewAuthenticationError("single sign-on failed")
	}

	var resp *AuthResponse
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		user, err := s.upsertExternalUser(ctx, tx, identity)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return ErrAccountInactive
		}

		now := nowUTC()
		if err := s.repo.User().Update(ctx, tx, user.ID, map[string]interface{}{"last_login": now}); err != nil {
			return err
		}
		user.LastLogin = &now
		resp, err = s.issueTokens(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User logged in with casdoor", "user_id", resp.User.ID)
	return resp, nil
}

func (s *authService) upsertExternalUser(ctx context.Context, tx *gorm.DB, identity *repositories.ExternalIdentity) (*models.User, error) {
	user, err := s.repo.User().GetByExternalID(ctx, tx, identity.Subject)
	if err == nil {
		return user, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, err
	}

	// an existing password account with the same e-mail gets linked
	user, err = s.repo.User().GetByEmail(ctx, tx, identity.Email)
	if err == nil {
		fields := map[string]interface{}{"external_id": identity.Subject}
		if identity.EmailVerified {
			fields["email_verified"] = true
		}
		if err := s.repo.User().Update(ctx, tx, user.ID, fields); err != nil {
			return nil, err
		}
		user.ExternalID = ptr(identity.Subject)
		return user, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, err
	}

	role := identity.Role
	if !role.IsValid() {
		role = models.RoleStudent
	}
	user = &models.User{
		Email:         identity.Email,
		Role:          role,
		FirstName:     identity.FirstName,
		LastName:      identity.LastName,
		IsActive:      true,
		EmailVerified: identity.EmailVerified,
		ExternalID:    ptr(identity.Subject),
	}
	if identity.AvatarURL != "" {
		user.AvatarURL = ptr(identity.AvatarURL)
	}
	if err := s.repo.User().Create(ctx, tx, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.logger.Info("Provisioned user from casdoor", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *authService) issueTokens(ctx context.Context, tx *gorm.DB, user *models.User) (*AuthResponse, error) {
	access, expiresAt, err := s.tokens.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}

	refresh, refreshExpiresAt, err := s.tokens.NewRefreshToken()
	if err != nil {
		return nil, err
	}
	if err := s.repo.RefreshToken().Create(ctx, tx, &models.RefreshToken{
		UserID:    user.ID,
		Token:     refresh,
		ExpiresAt: refreshExpiresAt,
	}); err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(expiresAt.Sub(nowUTC()).Seconds()),
	}, nil
}
