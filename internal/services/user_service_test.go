package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/validator"
)

func TestUserService_CreateAndList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tutor, err := env.sm.User().Create(ctx, &UserCreateRequest{
		Email:     "ana@example.com",
		Password:  testPassword,
		FirstName: "Ana",
		LastName:  "Tutor",
		Role:      models.RoleTutor,
	})
	require.NoError(t, err)
	assert.True(t, tutor.IsActive)
	assert.NotEqual(t, testPassword, tutor.PasswordHash)

	_, err = env.sm.User().Create(ctx, &UserCreateRequest{
		Email:     "ana@example.com",
		Password:  testPassword,
		FirstName: "Ana",
		LastName:  "Again",
		Role:      models.RoleStudent,
	})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = env.sm.User().Create(ctx, &UserCreateRequest{
		Email:     "root@example.com",
		Password:  testPassword,
		FirstName: "Root",
		LastName:  "User",
		Role:      models.RoleAdmin,
	})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs), "admins cannot be created through the API")

	env.user(t, "student@example.com", models.RoleStudent)

	tutors, err := env.sm.User().List(ctx, &UserListQuery{Role: string(models.RoleTutor)})
	require.NoError(t, err)
	require.Len(t, tutors.Users, 1)
	assert.Equal(t, "ana@example.com", tutors.Users[0].Email)

	found, err := env.sm.User().List(ctx, &UserListQuery{Search: "student@"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), found.Total)
}

func TestUserService_Update(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	student := env.user(t, "student@example.com", models.RoleStudent)
	env.user(t, "taken@example.com", models.RoleStudent)

	bio := "Learning Go"
	updated, err := env.sm.User().Update(ctx, student.UserID, &UserUpdateRequest{Bio: &bio})
	require.NoError(t, err)
	require.NotNil(t, updated.Bio)
	assert.Equal(t, bio, *updated.Bio)

	taken := "taken@example.com"
	_, err = env.sm.User().Update(ctx, student.UserID, &UserUpdateRequest{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = env.sm.User().Update(ctx, student.UserID, &UserUpdateRequest{})
	var verrs validator.ValidationErrors
	assert.True(t, errors.As(err, &verrs))

	_, err = env.sm.User().Update(ctx, 424242, &UserUpdateRequest{Bio: &bio})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_SetStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin@example.com", models.RoleAdmin)
	student := principal(register(t, env, "student@example.com", models.RoleStudent).User)

	_, err := env.sm.User().SetStatus(ctx, admin.UserID, false, admin)
	assert.ErrorIs(t, err, ErrCannotDeactivateSelf)

	inactive, err := env.sm.User().SetStatus(ctx, student.UserID, false, admin)
	require.NoError(t, err)
	assert.False(t, inactive.IsActive)

	_, err = env.sm.Auth().Login(ctx, &LoginRequest{Email: "student@example.com", Password: testPassword})
	assert.ErrorIs(t, err, ErrAccountInactive)

	active, err := env.sm.User().SetStatus(ctx, student.UserID, true, admin)
	require.NoError(t, err)
	assert.True(t, active.IsActive)
	_, err = env.sm.Auth().Login(ctx, &LoginRequest{Email: "student@example.com", Password: testPassword})
	assert.NoError(t, err)

	require.NoError(t, env.sm.User().Delete(ctx, student.UserID, admin))
	gone, err := env.sm.User().Get(ctx, student.UserID)
	require.NoError(t, err)
	assert.False(t, gone.IsActive)

	_, err = env.sm.User().SetStatus(ctx, 9999, false, admin)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserService_Stats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin@example.com", models.RoleAdmin)
	env.user(t, "tutor@example.com", models.RoleTutor)
	first := env.user(t, "one@example.com", models.RoleStudent)
	env.user(t, "two@example.com", models.RoleStudent)

	_, err := env.sm.User().SetStatus(ctx, first.UserID, false, admin)
	require.NoError(t, err)

	stats, err := env.sm.User().Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(3), stats.Active)
	assert.Equal(t, int64(2), stats.ByRole[models.RoleStudent].Total)
	assert.Equal(t, int64(1), stats.ByRole[models.RoleStudent].Active)
}
