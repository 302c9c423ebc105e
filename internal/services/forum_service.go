package services

import (
	"context"
	"log/slog"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

const defaultThreadLimit = 20

type forumService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	guard     Guard
}

func NewForumService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, guard Guard) ForumService {
	return &forumService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		guard:     guard,
	}
}

// ===== CATEGORIES =====

func (s *forumService) ListCategories(ctx context.Context) ([]*models.ForumCategory, error) {
	return s.repo.Forum().ListCategories(ctx, nil)
}

func (s *forumService) CreateCategory(ctx context.Context, req *CategoryCreateRequest) (*models.ForumCategory, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	category := &models.ForumCategory{
		Name:        req.Name,
		Description: req.Description,
		OrderIndex:  req.OrderIndex,
	}
	if err := s.repo.Forum().CreateCategory(ctx, nil, category); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrCategoryExists
		}
		return nil, err
	}

	s.logger.Info("Forum category created", "category_id", category.ID, "name", category.Name)
	return category, nil
}

// ===== THREADS =====

func (s *forumService) CreateThread(ctx context.Context, author Principal, req *ThreadCreateRequest) (*ThreadResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	thread := &models.ForumThread{
		CourseID:   req.CourseID,
		CategoryID: req.CategoryID,
		AuthorID:   author.UserID,
		Title:      req.Title,
		Content:    req.Content,
	}

	var row *repositories.ThreadRow
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var course *models.Course
		if req.CourseID != nil {
			var err error
			if course, err = getCourse(ctx, s.repo, tx, *req.CourseID); err != nil {
				return err
			}
		}
		if req.CategoryID != nil {
			if _, err := s.repo.Forum().GetCategory(ctx, tx, *req.CategoryID); err != nil {
				return notFound(err, ErrCategoryNotFound, *req.CategoryID, "failed to get category")
			}
		}
		if err := s.guard.Authorize(ctx, tx, author, ActionParticipateForum, course); err != nil {
			return err
		}

		if err := s.repo.Forum().CreateThread(ctx, tx, thread); err != nil {
			return err
		}
		var err error
		row, err = s.repo.Forum().GetThread(ctx, tx, thread.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Forum thread created", "thread_id", thread.ID, "author_id", author.UserID)
	return &ThreadResponse{ThreadRow: row}, nil
}

// ListThreads returns pinned threads first, then the most recently active
func (s *forumService) ListThreads(ctx context.Context, query *ThreadListQuery, viewer *Principal) (*ThreadListResponse, error) {
	if err := s.validator.Validate(query); err != nil {
		return nil, err
	}
	page, limit, offset := query.Normalize(defaultThreadLimit)

	rows, total, err := s.repo.Forum().ListThreads(ctx, nil, repositories.ThreadFilters{
		CourseID:   query.CourseID,
		CategoryID: query.CategoryID,
		Search:     query.Search,
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		return nil, err
	}

	liked := map[uint]bool{}
	if viewer != nil && viewer.IsAuthenticated() && len(rows) > 0 {
		ids := make([]uint, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		if liked, err = s.repo.Forum().LikedThreads(ctx, nil, viewer.UserID, ids); err != nil {
			return nil, err
		}
	}

	threads := make([]*ThreadResponse, 0, len(rows))
	for _, r := range rows {
		threads = append(threads, &ThreadResponse{ThreadRow: r, IsLiked: liked[r.ID]})
	}
	return &ThreadListResponse{
		Threads:    threads,
		Pagination: newPagination(page, limit, total),
	}, nil
}

// GetThread counts a view on every read
func (s *forumService) GetThread(ctx context.Context, threadID uint, viewer *Principal) (*ThreadResponse, error) {
	if err := s.repo.Forum().IncrementViews(ctx, nil, threadID); err != nil {
		return nil, err
	}
	row, err := s.repo.Forum().GetThread(ctx, nil, threadID)
	if err != nil {
		return nil, notFound(err, ErrThreadNotFound, threadID, "failed to get thread")
	}

	resp := &ThreadResponse{ThreadRow: row}
	if viewer != nil && viewer.IsAuthenticated() {
		liked, err := s.repo.Forum().LikedThreads(ctx, nil, viewer.UserID, []uint{threadID})
		if err != nil {
			return nil, err
		}
		resp.IsLiked = liked[threadID]
	}
	return resp, nil
}

// DeleteThread is allowed to the author, the course tutor and admins
func (s *forumService) DeleteThread(ctx context.Context, threadID uint, requester Principal) error {
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		thread, err := s.repo.Forum().GetThread(ctx, tx, threadID)
		if err != nil {
			return notFound(err, ErrThreadNotFound, threadID, "failed to get thread")
		}
		if !requester.IsAdmin() && thread.AuthorID != requester.UserID {
			course, err := s.threadCourse(ctx, tx, &thread.ForumThread)
			if err != nil {
				return err
			}
			if course == nil || !course.IsOwnedBy(requester.UserID) {
				return NewPermissionError(requester.UserID, threadID, "thread", "delete",
					"only the author, the course tutor or an admin may delete this thread")
			}
		}
		return s.repo.Forum().DeleteThread(ctx, tx, threadID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Forum thread deleted", "thread_id", threadID, "deleted_by", requester.UserID)
	return nil
}

func (s *forumService) TogglePin(ctx context.Context, threadID uint, requester Principal) (*ThreadResponse, error) {
	return s.toggleFlag(ctx, threadID, requester, "is_pinned", func(t *models.ForumThread) bool { return t.IsPinned })
}

func (s *forumService) ToggleLock(ctx context.Context, threadID uint, requester Principal) (*ThreadResponse, error) {
	return s.toggleFlag(ctx, threadID, requester, "is_locked", func(t *models.ForumThread) bool { return t.IsLocked })
}

// toggleFlag flips a moderation flag without bumping the thread's activity time
func (s *forumService) toggleFlag(ctx context.Context, threadID uint, requester Principal, column string, current func(*models.ForumThread) bool) (*ThreadResponse, error) {
	var row *repositories.ThreadRow
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		thread, err := s.repo.Forum().GetThread(ctx, tx, threadID)
		if err != nil {
			return notFound(err, ErrThreadNotFound, threadID, "failed to get thread")
		}
		course, err := s.threadCourse(ctx, tx, &thread.ForumThread)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, requester, ActionModerateForum, course); err != nil {
			return err
		}

		fields := map[string]interface{}{
			column:       !current(&thread.ForumThread),
			"updated_at": thread.UpdatedAt,
		}
		if err := s.repo.Forum().UpdateThread(ctx, tx, threadID, fields); err != nil {
			return err
		}
		row, err = s.repo.Forum().GetThread(ctx, tx, threadID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Forum thread flag toggled", "thread_id", threadID, "flag", column, "by", requester.UserID)
	return &ThreadResponse{ThreadRow: row}, nil
}

// ===== REPLIES =====

func (s *forumService) CreateReply(ctx context.Context, threadID uint, author Principal, req *ReplyCreateRequest) (*ReplyResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	reply := &models.ForumReply{
		ThreadID: threadID,
		AuthorID: author.UserID,
		Content:  req.Content,
	}
	var row *repositories.ReplyRow
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		thread, err := s.repo.Forum().GetThread(ctx, tx, threadID)
		if err != nil {
			return notFound(err, ErrThreadNotFound, threadID, "failed to get thread")
		}
		if thread.IsLocked {
			return ErrThreadLocked
		}
		course, err := s.threadCourse(ctx, tx, &thread.ForumThread)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, author, ActionParticipateForum, course); err != nil {
			return err
		}

		if err := s.repo.Forum().CreateReply(ctx, tx, reply); err != nil {
			return err
		}
		if err := s.repo.Forum().TouchThread(ctx, tx, threadID, nowUTC()); err != nil {
			return err
		}
		row, err = s.replyRow(ctx, tx, reply)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Forum reply created", "reply_id", reply.ID, "thread_id", threadID)
	return &ReplyResponse{ReplyRow: row}, nil
}

// ListReplies puts the accepted solution first, then the rest oldest first
func (s *forumService) ListReplies(ctx context.Context, threadID uint, page PageQuery, viewer *Principal) (*ReplyListResponse, error) {
	if err := s.validator.Validate(&page); err != nil {
		return nil, err
	}
	if _, err := s.repo.Forum().GetThread(ctx, nil, threadID); err != nil {
		return nil, notFound(err, ErrThreadNotFound, threadID, "failed to get thread")
	}
	p, limit, offset := page.Normalize(defaultThreadLimit)

	rows, total, err := s.repo.Forum().ListReplies(ctx, nil, threadID, limit, offset)
	if err != nil {
		return nil, err
	}

	liked := map[uint]bool{}
	if viewer != nil && viewer.IsAuthenticated() && len(rows) > 0 {
		ids := make([]uint, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		if liked, err = s.repo.Forum().LikedReplies(ctx, nil, viewer.UserID, ids); err != nil {
			return nil, err
		}
	}

	replies := make([]*ReplyResponse, 0, len(rows))
	for _, r := range rows {
		replies = append(replies, &ReplyResponse{ReplyRow: r, IsLiked: liked[r.ID]})
	}
	return &ReplyListResponse{
		Replies:    replies,
		Pagination: newPagination(p, limit, total),
	}, nil
}

// MarkSolution makes this reply the thread's only solution
func (s *forumService) MarkSolution(ctx context.Context, replyID uint, requester Principal) (*ReplyResponse, error) {
	var row *repositories.ReplyRow
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		reply, err := s.repo.Forum().GetReply(ctx, tx, replyID)
		if err != nil {
			return notFound(err, ErrReplyNotFound, replyID, "failed to get reply")
		}
		thread, err := s.repo.Forum().GetThread(ctx, tx, reply.ThreadID)
		if err != nil {
			return notFound(err, ErrThreadNotFound, reply.ThreadID, "failed to get thread")
		}
		course, err := s.threadCourse(ctx, tx, &thread.ForumThread)
		if err != nil {
			return err
		}
		if err := s.guard.Authorize(ctx, tx, requester, ActionModerateForum, course); err != nil {
			return err
		}

		if err := s.repo.Forum().SetSolution(ctx, tx, reply.ThreadID, replyID); err != nil {
			return err
		}
		reply.IsSolution = true
		row, err = s.replyRow(ctx, tx, reply)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Forum reply marked as solution", "reply_id", replyID, "by", requester.UserID)
	return &ReplyResponse{ReplyRow: row}, nil
}

// ===== LIKES =====

func (s *forumService) ToggleThreadLike(ctx context.Context, threadID uint, user Principal) (*LikeResponse, error) {
	var resp LikeResponse
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		thread, err := s.repo.Forum().GetThread(ctx, tx, threadID)
		if err != nil {
			return notFound(err, ErrThreadNotFound, threadID, "failed to get thread")
		}
		if err := s.authorizeLike(ctx, tx, user, &thread.ForumThread); err != nil {
			return err
		}
		resp.Liked, resp.LikesCount, err = s.repo.Forum().ToggleThreadLike(ctx, tx, user.UserID, threadID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *forumService) ToggleReplyLike(ctx context.Context, replyID uint, user Principal) (*LikeResponse, error) {
	var resp LikeResponse
	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		reply, err := s.repo.Forum().GetReply(ctx, tx, replyID)
		if err != nil {
			return notFound(err, ErrReplyNotFound, replyID, "failed to get reply")
		}
		thread, err := s.repo.Forum().GetThread(ctx, tx, reply.ThreadID)
		if err != nil {
			return notFound(err, ErrThreadNotFound, reply.ThreadID, "failed to get thread")
		}
		if err := s.authorizeLike(ctx, tx, user, &thread.ForumThread); err != nil {
			return err
		}
		resp.Liked, resp.LikesCount, err = s.repo.Forum().ToggleReplyLike(ctx, tx, user.UserID, replyID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ===== HELPERS =====

// authorizeLike lets anyone who may post in the thread's forum like in it
func (s *forumService) authorizeLike(ctx context.Context, tx *gorm.DB, user Principal, thread *models.ForumThread) error {
	if user.IsAdmin() {
		return nil
	}
	course, err := s.threadCourse(ctx, tx, thread)
	if err != nil {
		return err
	}
	return s.guard.Authorize(ctx, tx, user, ActionParticipateForum, course)
}

// threadCourse returns nil for global threads
func (s *forumService) threadCourse(ctx context.Context, tx *gorm.DB, thread *models.ForumThread) (*models.Course, error) {
	if thread.CourseID == nil {
		return nil, nil
	}
	return getCourse(ctx, s.repo, tx, *thread.CourseID)
}

func (s *forumService) replyRow(ctx context.Context, tx *gorm.DB, reply *models.ForumReply) (*repositories.ReplyRow, error) {
	author, err := s.repo.User().GetByID(ctx, tx, reply.AuthorID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound, reply.AuthorID, "failed to get reply author")
	}
	return &repositories.ReplyRow{
		ForumReply: *reply,
		AuthorName: author.FullName(),
		AuthorRole: author.Role,
	}, nil
}
