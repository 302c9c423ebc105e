package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/learning-service/internal/testutil"
)

func TestScheduler_Jobs(t *testing.T) {
	db := testutil.NewDB(t)
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db})
	s := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	student := testutil.CreateUser(t, db, "s@example.com", models.RoleStudent)
	tutor := testutil.CreateUser(t, db, "t@example.com", models.RoleTutor)

	revokedAt := now.Add(-time.Minute)
	require.NoError(t, db.Create(&[]models.RefreshToken{
		{UserID: student.ID, Token: "live", ExpiresAt: now.Add(time.Hour)},
		{UserID: student.ID, Token: "expired", ExpiresAt: now.Add(-time.Hour)},
		{UserID: student.ID, Token: "revoked", ExpiresAt: now.Add(time.Hour), RevokedAt: &revokedAt},
	}).Error)

	purged, err := s.PurgeRefreshTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), purged)

	course := &models.Course{TutorID: tutor.ID, Title: "Go", Slug: "go", ContentType: models.ContentVideo}
	require.NoError(t, db.Create(course).Error)

	ended, open := now.Add(-time.Hour), now.Add(time.Hour)
	require.NoError(t, db.Create(&[]models.Exam{
		{CourseID: course.ID, Title: "ended", Status: models.ExamPublished, AvailableUntil: &ended},
		{CourseID: course.ID, Title: "open", Status: models.ExamPublished, AvailableUntil: &open},
		{CourseID: course.ID, Title: "draft", Status: models.ExamDraft, AvailableUntil: &ended},
	}).Error)

	closed, err := s.CloseExpiredExams(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)

	var exam models.Exam
	require.NoError(t, db.Where("title = ?", "ended").First(&exam).Error)
	assert.Equal(t, models.ExamClosed, exam.Status)
}

func TestScheduler_StartStop(t *testing.T) {
	db := testutil.NewDB(t)
	repo := postgres.NewPostgreSQLRepository(postgres.RepositoryConfig{DB: db})
	s := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
