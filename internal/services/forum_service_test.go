package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

func TestForumService_Categories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.sm.Forum().CreateCategory(ctx, &CategoryCreateRequest{Name: "General", OrderIndex: 2})
	require.NoError(t, err)
	_, err = env.sm.Forum().CreateCategory(ctx, &CategoryCreateRequest{Name: "Announcements", OrderIndex: 1})
	require.NoError(t, err)

	_, err = env.sm.Forum().CreateCategory(ctx, &CategoryCreateRequest{Name: "General"})
	assert.ErrorIs(t, err, ErrCategoryExists)

	categories, err := env.sm.Forum().ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 2)
	assert.Equal(t, "Announcements", categories[0].Name)
}

func TestForumService_ThreadParticipation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	outsider := env.user(t, "outsider@example.com", models.RoleStudent)
	course, _ := env.publishedCourse(t, tutor, "Forum Course", nil, true)
	env.enroll(t, student, tutor, course.ID)

	global, err := env.sm.Forum().CreateThread(ctx, outsider, &ThreadCreateRequest{Title: "Hello all", Content: "hi"})
	require.NoError(t, err)
	assert.Nil(t, global.CourseID)
	assert.Equal(t, models.RoleStudent, global.AuthorRole)

	_, err = env.sm.Forum().CreateThread(ctx, outsider, &ThreadCreateRequest{CourseID: &course.ID, Title: "Sneaky", Content: "x"})
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	thread, err := env.sm.Forum().CreateThread(ctx, student, &ThreadCreateRequest{CourseID: &course.ID, Title: "Question", Content: "How?"})
	require.NoError(t, err)
	assert.Equal(t, "Test student", thread.AuthorName)

	missing := uint(12345)
	_, err = env.sm.Forum().CreateThread(ctx, student, &ThreadCreateRequest{CategoryID: &missing, Title: "Lost", Content: "x"})
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	_, err = env.sm.Forum().CreateReply(ctx, thread.ID, outsider, &ReplyCreateRequest{Content: "me too"})
	assert.ErrorAs(t, err, &permErr)

	reply, err := env.sm.Forum().CreateReply(ctx, thread.ID, tutor, &ReplyCreateRequest{Content: "Like this"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleTutor, reply.AuthorRole)

	got, err := env.sm.Forum().GetThread(ctx, thread.ID, &student)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.RepliesCount)
	assert.Equal(t, 1, got.ViewsCount)

	got, err = env.sm.Forum().GetThread(ctx, thread.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, got.ViewsCount)
}

func TestForumService_ListThreadsOrdering(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin@example.com", models.RoleAdmin)
	student := env.user(t, "student@example.com", models.RoleStudent)

	older, err := env.sm.Forum().CreateThread(ctx, student, &ThreadCreateRequest{Title: "Older thread", Content: "a"})
	require.NoError(t, err)
	pinned, err := env.sm.Forum().CreateThread(ctx, student, &ThreadCreateRequest{Title: "Pinned thread", Content: "b"})
	require.NoError(t, err)
	newer, err := env.sm.Forum().CreateThread(ctx, student, &ThreadCreateRequest{Title: "Newer thread", Content: "c"})
	require.NoError(t, err)

	// spread activity so ordering does not depend on clock resolution
	base := time.Now().UTC().Add(-time.Hour)
	for i, id := range []uint{older.ID, pinned.ID, newer.ID} {
		require.NoError(t, env.repo.Forum().TouchThread(ctx, nil, id, base.Add(time.Duration(i)*time.Minute)))
	}

	_, err = env.sm.Forum().TogglePin(ctx, pinned.ID, student)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	toggled, err := env.sm.Forum().TogglePin(ctx, pinned.ID, admin)
	require.NoError(t, err)
	assert.True(t, toggled.IsPinned)

	// replying bumps the older thread above the newer one
	_, err = env.sm.Forum().CreateReply(ctx, older.ID, student, &ReplyCreateRequest{Content: "bump"})
	require.NoError(t, err)

	list, err := env.sm.Forum().ListThreads(ctx, &ThreadListQuery{}, &student)
	require.NoError(t, err)
	require.Len(t, list.Threads, 3)
	assert.Equal(t, pinned.ID, list.Threads[0].ID)
	assert.Equal(t, older.ID, list.Threads[1].ID)
	assert.Equal(t, newer.ID, list.Threads[2].ID)
	assert.Equal(t, int64(3), list.Total)

	search, err := env.sm.Forum().ListThreads(ctx, &ThreadListQuery{Search: "Newer"}, nil)
	require.NoError(t, err)
	require.Len(t, search.Threads, 1)
	assert.Equal(t, newer.ID, search.Threads[0].ID)
}

func TestForumService_LockedThreadRejectsReplies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin@example.com", models.RoleAdmin)
	student := env.user(t, "student@example.com", models.RoleStudent)

	thread, err := env.sm.Forum().CreateThread(ctx, student, &ThreadCreateRequest{Title: "Lock me", Content: "x"})
	require.NoError(t, err)

	locked, err := env.sm.Forum().ToggleLock(ctx, thread.ID, admin)
	require.NoError(t, err)
	assert.True(t, locked.IsLocked)

	_, err = env.sm.Forum().CreateReply(ctx, thread.ID, student, &ReplyCreateRequest{Content: "too late"})
	assert.ErrorIs(t, err, ErrThreadLocked)

	unlocked, err := env.sm.Forum().ToggleLock(ctx, thread.ID, admin)
	require.NoError(t, err)
	assert.False(t, unlocked.IsLocked)

	_, err = env.sm.Forum().CreateReply(ctx, thread.ID, student, &ReplyCreateRequest{Content: "made it"})
	assert.NoError(t, err)
}

func TestForumService_LikeToggle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author@example.com", models.RoleStudent)
	fan := env.user(t, "fan@example.com", models.RoleStudent)

	thread, err := env.sm.Forum().CreateThread(ctx, author, &ThreadCreateRequest{Title: "Like me", Content: "x"})
	require.NoError(t, err)
	reply, err := env.sm.Forum().CreateReply(ctx, thread.ID, author, &ReplyCreateRequest{Content: "and me"})
	require.NoError(t, err)

	liked, err := env.sm.Forum().ToggleThreadLike(ctx, thread.ID, fan)
	require.NoError(t, err)
	assert.True(t, liked.Liked)
	assert.Equal(t, 1, liked.LikesCount)

	got, err := env.sm.Forum().GetThread(ctx, thread.ID, &fan)
	require.NoError(t, err)
	assert.True(t, got.IsLiked)

	unliked, err := env.sm.Forum().ToggleThreadLike(ctx, thread.ID, fan)
	require.NoError(t, err)
	assert.False(t, unliked.Liked)
	assert.Equal(t, 0, unliked.LikesCount)

	replyLike, err := env.sm.Forum().ToggleReplyLike(ctx, reply.ID, fan)
	require.NoError(t, err)
	assert.True(t, replyLike.Liked)
	assert.Equal(t, 1, replyLike.LikesCount)

	replies, err := env.sm.Forum().ListReplies(ctx, thread.ID, PageQuery{}, &fan)
	require.NoError(t, err)
	require.Len(t, replies.Replies, 1)
	assert.True(t, replies.Replies[0].IsLiked)
	assert.Equal(t, 1, replies.Replies[0].LikesCount)

	_, err = env.sm.Forum().ToggleThreadLike(ctx, 99999, fan)
	assert.ErrorIs(t, err, ErrThreadNotFound)
}

func TestForumService_MarkSolution(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	student := env.user(t, "student@example.com", models.RoleStudent)
	course, _ := env.publishedCourse(t, tutor, "Solutions", nil, true)
	env.enroll(t, student, tutor, course.ID)

	thread, err := env.sm.Forum().CreateThread(ctx, student, &ThreadCreateRequest{CourseID: &course.ID, Title: "Help", Content: "?"})
	require.NoError(t, err)
	first, err := env.sm.Forum().CreateReply(ctx, thread.ID, student, &ReplyCreateRequest{Content: "first try"})
	require.NoError(t, err)
	second, err := env.sm.Forum().CreateReply(ctx, thread.ID, tutor, &ReplyCreateRequest{Content: "the answer"})
	require.NoError(t, err)

	_, err = env.sm.Forum().MarkSolution(ctx, first.ID, student)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	marked, err := env.sm.Forum().MarkSolution(ctx, first.ID, tutor)
	require.NoError(t, err)
	assert.True(t, marked.IsSolution)

	_, err = env.sm.Forum().MarkSolution(ctx, second.ID, tutor)
	require.NoError(t, err)

	replies, err := env.sm.Forum().ListReplies(ctx, thread.ID, PageQuery{}, nil)
	require.NoError(t, err)
	require.Len(t, replies.Replies, 2)
	assert.Equal(t, second.ID, replies.Replies[0].ID)
	assert.True(t, replies.Replies[0].IsSolution)
	assert.False(t, replies.Replies[1].IsSolution)
}

func TestForumService_DeleteThread(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tutor := env.user(t, "tutor@example.com", models.RoleTutor)
	author := env.user(t, "author@example.com", models.RoleStudent)
	other := env.user(t, "other@example.com", models.RoleStudent)
	course, _ := env.publishedCourse(t, tutor, "Moderated", nil, true)
	env.enroll(t, author, tutor, course.ID)
	env.enroll(t, other, tutor, course.ID)

	thread, err := env.sm.Forum().CreateThread(ctx, author, &ThreadCreateRequest{CourseID: &course.ID, Title: "Remove me", Content: "x"})
	require.NoError(t, err)
	_, err = env.sm.Forum().CreateReply(ctx, thread.ID, other, &ReplyCreateRequest{Content: "reply"})
	require.NoError(t, err)

	var permErr *PermissionError
	assert.ErrorAs(t, env.sm.Forum().DeleteThread(ctx, thread.ID, other), &permErr)

	require.NoError(t, env.sm.Forum().DeleteThread(ctx, thread.ID, tutor))
	_, err = env.sm.Forum().GetThread(ctx, thread.ID, nil)
	assert.ErrorIs(t, err, ErrThreadNotFound)

	var replies int64
	require.NoError(t, env.db.Model(&models.ForumReply{}).Where("thread_id = ?", thread.ID).Count(&replies).Error)
	assert.Zero(t, replies)
}
