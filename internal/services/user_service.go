package services

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

const defaultUserPageSize = 10

type userService struct {
	repo       repositories.Repository
	db         *gorm.DB
	logger     *slog.Logger
	validator  *validator.Validator
	bcryptCost int
}

func NewUserService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, bcryptCost int) UserService {
	return &userService{
		repo:       repo,
		db:         db,
		logger:     logger,
		validator:  validator,
		bcryptCost: bcryptCost,
	}
}

func (s *userService) List(ctx context.Context, query *UserListQuery) (*UserListResponse, error) {
	if err := s.validator.Validate(query); err != nil {
		return nil, err
	}

	page, limit, offset := query.Normalize(defaultUserPageSize)
	filters := repositories.UserFilters{
		IsActive: query.IsActive,
		Search:   query.Search,
		Limit:    limit,
		Offset:   offset,
	}
	if query.Role != "" {
		role := models.UserRole(query.Role)
		filters.Role = &role
	}

	users, total, err := s.repo.User().List(ctx, nil, filters)
	if err != nil {
		return nil, err
	}
	return &UserListResponse{Users: users, Pagination: newPagination(page, limit, total)}, nil
}

func (s *userService) Get(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, nil, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound, id, "failed to get user")
	}
	return user, nil
}

func (s *userService) Create(ctx context.Context, req *UserCreateRequest) (*models.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	hash, err := hashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	}

	exists, err := s.repo.User().ExistsByEmail(ctx, nil, req.Email, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrEmailTaken
	}
	if err := s.repo.User().Create(ctx, nil, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("User created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *userService) Update(ctx context.Context, id uint, req *UserUpdateRequest) (*models.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	fields := make(map[string]interface{})
	if req.Email != nil {
		exists, err := s.repo.User().ExistsByEmail(ctx, nil, *req.Email, &id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrEmailTaken
		}
		fields["email"] = *req.Email
	}
	if req.Password != nil {
		hash, err := hashPassword(*req.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hash
	}
	if req.FirstName != nil {
		fields["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		fields["last_name"] = *req.LastName
	}
	if req.Role != nil {
		fields["role"] = *req.Role
	}
	if req.AvatarURL != nil {
		fields["avatar_url"] = *req.AvatarURL
	}
	if req.Bio != nil {
		fields["bio"] = *req.Bio
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if len(fields) == 0 {
		return nil, validator.NewValidationError("request", "no fields to update", nil)
	}

	if err := s.repo.User().Update(ctx, nil, id, fields); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrEmailTaken
		}
		return nil, notFound(err, ErrUserNotFound, id, "failed to update user")
	}

	s.logger.Info("User updated", "user_id", id)
	return s.Get(ctx, id)
}

// Delete deactivates the account; rows are kept for enrollment and grading history
func (s *userService) Delete(ctx context.Context, id uint, requester Principal) error {
	_, err := s.SetStatus(ctx, id, false, requester)
	return err
}

func (s *userService) SetStatus(ctx context.Context, id uint, isActive bool, requester Principal) (*models.User, error) {
	if !isActive && id == requester.UserID {
		return nil, ErrCannotDeactivateSelf
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.repo.User().Update(ctx, tx, id, map[string]interface{}{"is_active": isActive}); err != nil {
			return notFound(err, ErrUserNotFound, id, "failed to update user status")
		}
		if !isActive {
			return s.repo.RefreshToken().RevokeAllForUser(ctx, tx, id, nowUTC())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("User status changed", "user_id", id, "is_active", isActive, "by", requester.UserID)
	return s.Get(ctx, id)
}

func (s *userService) Stats(ctx context.Context) (*repositories.UserStats, error) {
	return s.repo.User().GetStats(ctx, nil)
}
