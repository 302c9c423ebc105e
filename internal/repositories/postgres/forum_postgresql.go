package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/learning-service/internal/cache"
	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

type ForumPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.Manager
}

func NewForumPostgreSQL(db *gorm.DB, helpers *SharedHelpers, cacheManager *cache.Manager) repositories.ForumRepository {
	return &ForumPostgreSQL{db: db, helpers: helpers, cacheManager: cacheManager}
}

const authorNameSQL = "TRIM(COALESCE(users.first_name, '') || ' ' || COALESCE(users.last_name, '')) AS author_name, users.role AS author_role"

// ===== CATEGORIES =====

// ListCategories reads through the forum cache outside transactions
func (f *ForumPostgreSQL) ListCategories(ctx context.Context, tx *gorm.DB) ([]*models.ForumCategory, error) {
	fetch := func() (interface{}, error) {
		categories := make([]*models.ForumCategory, 0)
		if err := getDB(ctx, f.db, tx).Order("order_index ASC, name ASC").Find(&categories).Error; err != nil {
			return nil, fmt.Errorf("failed to list categories: %w", err)
		}
		return categories, nil
	}

	if tx != nil {
		categories, err := fetch()
		if err != nil {
			return nil, err
		}
		return categories.([]*models.ForumCategory), nil
	}

	categories := make([]*models.ForumCategory, 0)
	if err := f.cacheManager.Forum.CacheOrExecute(ctx, cache.ForumCategoriesKey, &categories, cache.ForumCacheConfig.TTL, fetch); err != nil {
		return nil, err
	}
	return categories, nil
}

func (f *ForumPostgreSQL) CreateCategory(ctx context.Context, tx *gorm.DB, category *models.ForumCategory) error {
	if err := getDB(ctx, f.db, tx).Create(category).Error; err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	f.helpers.AfterCommit(tx, func() {
		cache.SafeDelete(ctx, f.cacheManager.Forum, cache.ForumCategoriesKey)
	})
	return nil
}

func (f *ForumPostgreSQL) GetCategory(ctx context.Context, tx *gorm.DB, id uint) (*models.ForumCategory, error) {
	var category models.ForumCategory
	if err := getDB(ctx, f.db, tx).First(&category, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}

// ===== THREADS =====

func (f *ForumPostgreSQL) threadQuery(ctx context.Context, tx *gorm.DB) *gorm.DB {
	return getDB(ctx, f.db, tx).Table("forum_threads").
		Select("forum_threads.*, " + authorNameSQL + ", " +
			"(SELECT COUNT(*) FROM forum_replies r WHERE r.thread_id = forum_threads.id) AS replies_count").
		Joins("LEFT JOIN users ON users.id = forum_threads.author_id")
}

func (f *ForumPostgreSQL) CreateThread(ctx context.Context, tx *gorm.DB, thread *models.ForumThread) error {
	if err := getDB(ctx, f.db, tx).Create(thread).Error; err != nil {
		return fmt.Errorf("failed to create thread: %w", err)
	}
	return nil
}

func (f *ForumPostgreSQL) GetThread(ctx context.Context, tx *gorm.DB, id uint) (*repositories.ThreadRow, error) {
	var row repositories.ThreadRow
	result := f.threadQuery(ctx, tx).Where("forum_threads.id = ?", id).Limit(1).Scan(&row)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get thread: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("failed to get thread: %w", gorm.ErrRecordNotFound)
	}
	return &row, nil
}

func (f *ForumPostgreSQL) UpdateThread(ctx context.Context, tx *gorm.DB, id uint, fields map[string]interface{}) error {
	result := getDB(ctx, f.db, tx).Model(&models.ForumThread{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update thread: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update thread: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

// DeleteThread removes a thread with its replies and likes
func (f *ForumPostgreSQL) DeleteThread(ctx context.Context, tx *gorm.DB, id uint) error {
	if tx == nil {
		return f.helpers.Transaction(ctx, func(tx *gorm.DB) error {
			return f.DeleteThread(ctx, tx, id)
		})
	}

	db := tx.WithContext(ctx)
	replies := db.Model(&models.ForumReply{}).Select("id").Where("thread_id = ?", id)
	if err := db.Where("reply_id IN (?)", replies).Delete(&models.ForumLike{}).Error; err != nil {
		return fmt.Errorf("failed to delete reply likes: %w", err)
	}
	if err := db.Where("thread_id = ?", id).Delete(&models.ForumLike{}).Error; err != nil {
		return fmt.Errorf("failed to delete thread likes: %w", err)
	}
	if err := db.Where("thread_id = ?", id).Delete(&models.ForumReply{}).Error; err != nil {
		return fmt.Errorf("failed to delete replies: %w", err)
	}

	result := db.Delete(&models.ForumThread{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete thread: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to delete thread: %w", gorm.ErrRecordNotFound)
	}
	return nil
}

// ListThreads orders pinned threads first, then by last activity
func (f *ForumPostgreSQL) ListThreads(ctx context.Context, tx *gorm.DB, filters repositories.ThreadFilters) ([]*repositories.ThreadRow, int64, error) {
	apply := func(q *gorm.DB) *gorm.DB {
		if filters.CourseID != nil {
			q = q.Where("forum_threads.course_id = ?", *filters.CourseID)
		} else if filters.GlobalOnly {
			q = q.Where("forum_threads.course_id IS NULL")
		}
		if filters.CategoryID != nil {
			q = q.Where("forum_threads.category_id = ?", *filters.CategoryID)
		}
		return f.helpers.ApplySearch(q, filters.Search, "forum_threads.title", "forum_threads.content")
	}

	var total int64
	if err := apply(getDB(ctx, f.db, tx).Model(&models.ForumThread{})).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count threads: %w", err)
	}

	query := apply(f.threadQuery(ctx, tx)).
		Order("forum_threads.is_pinned DESC, forum_threads.updated_at DESC, forum_threads.id DESC")
	query = f.helpers.ApplyPagination(query, filters.Limit, filters.Offset)

	rows := make([]*repositories.ThreadRow, 0)
	if err := query.Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list threads: %w", err)
	}
	return rows, total, nil
}

func (f *ForumPostgreSQL) IncrementViews(ctx context.Context, tx *gorm.DB, id uint) error {
	err := getDB(ctx, f.db, tx).Model(&models.ForumThread{}).
		Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + 1")).Error
	if err != nil {
		return fmt.Errorf("failed to increment views: %w", err)
	}
	return nil
}

// TouchThread bumps last activity without changing anything else
func (f *ForumPostgreSQL) TouchThread(ctx context.Context, tx *gorm.DB, id uint, at time.Time) error {
	err := getDB(ctx, f.db, tx).Model(&models.ForumThread{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
	if err != nil {
		return fmt.Errorf("failed to touch thread: %w", err)
	}
	return nil
}

// ===== REPLIES =====

func (f *ForumPostgreSQL) CreateReply(ctx context.Context, tx *gorm.DB, reply *models.ForumReply) error {
	if err := getDB(ctx, f.db, tx).Create(reply).Error; err != nil {
		return fmt.Errorf("failed to create reply: %w", err)
	}
	return nil
}

func (f *ForumPostgreSQL) GetReply(ctx context.Context, tx *gorm.DB, id uint) (*models.ForumReply, error) {
	var reply models.ForumReply
	if err := getDB(ctx, f.db, tx).First(&reply, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get reply: %w", err)
	}
	return &reply, nil
}

// ListReplies orders the accepted solution first, then oldest first
func (f *ForumPostgreSQL) ListReplies(ctx context.Context, tx *gorm.DB, threadID uint, limit, offset int) ([]*repositories.ReplyRow, int64, error) {
	var total int64
	err := getDB(ctx, f.db, tx).Model(&models.ForumReply{}).Where("thread_id = ?", threadID).Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count replies: %w", err)
	}

	query := getDB(ctx, f.db, tx).Table("forum_replies").
		Select("forum_replies.*, "+authorNameSQL).
		Joins("LEFT JOIN users ON users.id = forum_replies.author_id").
		Where("forum_replies.thread_id = ?", threadID).
		Order("forum_replies.is_solution DESC, forum_replies.created_at ASC, forum_replies.id ASC")
	query = f.helpers.ApplyPagination(query, limit, offset)

	rows := make([]*repositories.ReplyRow, 0)
	if err := query.Scan(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list replies: %w", err)
	}
	return rows, total, nil
}

// SetSolution makes replyID the only solution of the thread
func (f *ForumPostgreSQL) SetSolution(ctx context.Context, tx *gorm.DB, threadID, replyID uint) error {
	db := getDB(ctx, f.db, tx)
	if err := db.Model(&models.ForumReply{}).
		Where("thread_id = ? AND is_solution = ?", threadID, true).
		UpdateColumn("is_solution", false).Error; err != nil {
		return fmt.Errorf("failed to clear solution: %w", err)
	}
	if err := db.Model(&models.ForumReply{}).
		Where("id = ? AND thread_id = ?", replyID, threadID).
		UpdateColumn("is_solution", true).Error; err != nil {
		return fmt.Errorf("failed to mark solution: %w", err)
	}
	return nil
}

// ===== LIKES =====

func (f *ForumPostgreSQL) ToggleThreadLike(ctx context.Context, tx *gorm.DB, userID, threadID uint) (bool, int, error) {
	return f.toggleLike(ctx, tx, &models.ForumThread{}, "thread_id", threadID,
		&models.ForumLike{UserID: userID, ThreadID: &threadID}, userID)
}

func (f *ForumPostgreSQL) ToggleReplyLike(ctx context.Context, tx *gorm.DB, userID, replyID uint) (bool, int, error) {
	return f.toggleLike(ctx, tx, &models.ForumReply{}, "reply_id", replyID,
		&models.ForumLike{UserID: userID, ReplyID: &replyID}, userID)
}

// toggleLike removes the user's like when present, otherwise inserts it. The
// counter moves only by the rows the DELETE or INSERT actually touched, so two
// racing toggles cannot drift it.
func (f *ForumPostgreSQL) toggleLike(ctx context.Context, tx *gorm.DB, target interface{}, column string, targetID uint, like *models.ForumLike, userID uint) (bool, int, error) {
	if tx == nil {
		return false, 0, fmt.Errorf("like toggle requires a transaction")
	}
	db := tx.WithContext(ctx)

	deleted := db.Where("user_id = ? AND "+column+" = ?", userID, targetID).Delete(&models.ForumLike{})
	if deleted.Error != nil {
		return false, 0, fmt.Errorf("failed to remove like: %w", deleted.Error)
	}

	liked := false
	delta := -deleted.RowsAffected
	if deleted.RowsAffected == 0 {
		inserted := db.Clauses(clause.OnConflict{DoNothing: true}).Create(like)
		if inserted.Error != nil {
			return false, 0, fmt.Errorf("failed to add like: %w", inserted.Error)
		}
		liked = true
		delta = inserted.RowsAffected
	}

	if delta != 0 {
		err := db.Model(target).Where("id = ?", targetID).
			UpdateColumn("likes_count", gorm.Expr("likes_count + ?", delta)).Error
		if err != nil {
			return false, 0, fmt.Errorf("failed to update likes count: %w", err)
		}
	}

	var count int
	if err := db.Model(target).Select("likes_count").Where("id = ?", targetID).Scan(&count).Error; err != nil {
		return false, 0, fmt.Errorf("failed to read likes count: %w", err)
	}
	return liked, count, nil
}

func (f *ForumPostgreSQL) LikedThreads(ctx context.Context, tx *gorm.DB, userID uint, threadIDs []uint) (map[uint]bool, error) {
	return f.liked(ctx, tx, userID, "thread_id", threadIDs)
}

func (f *ForumPostgreSQL) LikedReplies(ctx context.Context, tx *gorm.DB, userID uint, replyIDs []uint) (map[uint]bool, error) {
	return f.liked(ctx, tx, userID, "reply_id", replyIDs)
}

func (f *ForumPostgreSQL) liked(ctx context.Context, tx *gorm.DB, userID uint, column string, ids []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var likedIDs []uint
	err := getDB(ctx, f.db, tx).Model(&models.ForumLike{}).
		Where("user_id = ? AND "+column+" IN ?", userID, ids).
		Pluck(column, &likedIDs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load likes: %w", err)
	}
	for _, id := range likedIDs {
		result[id] = true
	}
	return result, nil
}
