package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type RefreshTokenPostgreSQL struct {
	db *gorm.DB
}

func NewRefreshTokenPostgreSQL(db *gorm.DB) repositories.RefreshTokenRepository {
	return &RefreshTokenPostgreSQL{db: db}
}

func (r *RefreshTokenPostgreSQL) Create(ctx context.Context, tx *gorm.DB, token *models.RefreshToken) error {
	if err := getDB(ctx, r.db, tx).Create(token).Error; err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenPostgreSQL) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := getDB(ctx, r.db, tx).Where("token = ?", token).First(&rt).Error; err != nil {
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}
	return &rt, nil
}

func (r *RefreshTokenPostgreSQL) Revoke(ctx context.Context, tx *gorm.DB, token string, at time.Time) (int64, error) {
	result := getDB(ctx, r.db, tx).Model(&models.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL", token).
		Update("revoked_at", at)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to revoke refresh token: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *RefreshTokenPostgreSQL) RevokeAllForUser(ctx context.Context, tx *gorm.DB, userID uint, at time.Time) error {
	err := getDB(ctx, r.db, tx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to revoke user refresh tokens: %w", err)
	}
	return nil
}

// DeleteStale removes expired and revoked tokens
func (r *RefreshTokenPostgreSQL) DeleteStale(ctx context.Context, tx *gorm.DB, now time.Time) (int64, error) {
	result := getDB(ctx, r.db, tx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", now).
		Delete(&models.RefreshToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge refresh tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
