package postgres

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/cache"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type UserPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.Manager
}

func NewUserPostgreSQL(db *gorm.DB, helpers *SharedHelpers, cacheManager *cache.Manager) repositories.UserRepository {
	return &UserPostgreSQL{
		db:           db,
		helpers:      helpers,
		cacheManager: cacheManager,
	}
}

func (u *UserPostgreSQL) Create(ctx context.Context, tx *gorm.DB, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := getDB(ctx, u.db, tx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	u.helpers.AfterCommit(tx, func() {
		cache.SafeInvalidatePattern(ctx, u.cacheManager.Stats, "users:*")
	})
	return nil
}

// GetByID reads through the user cache when called outside a transaction
func (u *UserPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error) {
	fetch := func() (interface{}, error) {
		var user models.User
		if err := getDB(ctx, u.db, tx).First(&user, id).Error; err != nil {
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
		return &user, nil
	}

	if tx != nil {
		user, err := fetch()
		if err != nil {
			return nil, err
		}
		return user.(*models.User), nil
	}

	// password_hash is not serialized, so cached users are never used for credential checks
	var user models.User
	if err := u.cacheManager.User.CacheOrExecute(ctx, cache.UserKey(id), &user, cache.UserCacheConfig.TTL, fetch); err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*models.User, error) {
	var user models.User
	err := getDB(ctx, u.db, tx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByExternalID(ctx context.Context, tx *gorm.DB, externalID string) (*models.User, error) {
	var user models.User
	if err := getDB(ctx, u.db, tx).Where("external_id = ?", externalID).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by external id: %w", err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) Update(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	if email, ok := fields["email"].(string); ok {
		fields["email"] = strings.ToLower(strings.TrimSpace(email))
	}

	result := getDB(ctx, u.db, tx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update user: %w", gorm.ErrRecordNotFound)
	}

	u.helpers.AfterCommit(tx, func() {
		cache.InvalidateUser(ctx, u.cacheManager, id)
	})
	return nil
}

func (u *UserPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.UserFilters) ([]*models.User, int64, error) {
	query := getDB(ctx, u.db, tx).Model(&models.User{})

	if filters.Role != nil {
		query = query.Where("role = ?", *filters.Role)
	}
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	query = u.helpers.ApplySearch(query, filters.Search, "email", "first_name", "last_name")

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var users []*models.User
	query = u.helpers.ApplyPaginationAndSort(query, "", "created_at", "desc", filters.Limit, filters.Offset)
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

func (u *UserPostgreSQL) ExistsByEmail(ctx context.Context, tx *gorm.DB, email string, excludeID *uint) (bool, error) {
	query := getDB(ctx, u.db, tx).Model(&models.User{}).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email)))
	if excludeID != nil {
		query = query.Where("id <> ?", *excludeID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return count > 0, nil
}

func (u *UserPostgreSQL) GetStats(ctx context.Context, tx *gorm.DB) (*repositories.UserStats, error) {
	type roleRow struct {
		Role     models.UserRole
		Total    int64
		Active   int64
		Verified int64
	}

	fetch := func() (interface{}, error) {
		var rows []roleRow
		err := getDB(ctx, u.db, tx).Model(&models.User{}).
			Select("role, COUNT(*) AS total, " +
				"SUM(CASE WHEN is_active THEN 1 ELSE 0 END) AS active, " +
				"SUM(CASE WHEN email_verified THEN 1 ELSE 0 END) AS verified").
			Group("role").
			Scan(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get user stats: %w", err)
		}

		stats := &repositories.UserStats{ByRole: make(map[models.UserRole]repositories.RoleStats)}
		for _, r := range rows {
			stats.Total += r.Total
			stats.Active += r.Active
			stats.Verified += r.Verified
			stats.ByRole[r.Role] = repositories.RoleStats{Total: r.Total, Active: r.Active}
		}
		return stats, nil
	}

	var stats repositories.UserStats
	if err := u.cacheManager.Stats.CacheOrExecute(ctx, "users:summary", &stats, cache.StatsCacheConfig.TTL, fetch); err != nil {
		return nil, err
	}
	return &stats, nil
}
