package casdoor

import (
	"context"
	"errors"
	"testing"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/learning-service/internal/models"
)

type fakeTokenClient struct {
	claims      *casdoorsdk.Claims
	exchangeErr error
	gotCode     string
}

func (f *fakeTokenClient) exchange(code, state string) (string, error) {
	f.gotCode = code
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return "access-token", nil
}

func (f *fakeTokenClient) parse(token string) (*casdoorsdk.Claims, error) {
	return f.claims, nil
}

func TestNewIdentityCasdoor_DisabledWithoutEndpoint(t *testing.T) {
	assert.Nil(t, NewIdentityCasdoor(CasdoorConfig{ClientID: "id"}))
	assert.NotNil(t, NewIdentityCasdoor(CasdoorConfig{Endpoint: "https://sso.example.com", ClientID: "id"}))
}

func TestIdentityCasdoor_Exchange(t *testing.T) {
	client := &fakeTokenClient{claims: &casdoorsdk.Claims{User: casdoorsdk.User{
		Id:            "c0ffee",
		Email:         "Ada@Example.com",
		DisplayName:   "Ada Lovelace",
		EmailVerified: true,
		Type:          "teacher",
	}}}
	provider := &IdentityCasdoor{client: client}

	identity, err := provider.Exchange(context.Background(), "auth-code", "state")
	require.NoError(t, err)
	assert.Equal(t, "auth-code", client.gotCode)
	assert.Equal(t, "c0ffee", identity.Subject)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, "Ada", identity.FirstName)
	assert.Equal(t, "Lovelace", identity.LastName)
	assert.True(t, identity.EmailVerified)
	assert.Equal(t, models.RoleTutor, identity.Role)

	client.exchangeErr = errors.New("bad code")
	_, err = provider.Exchange(context.Background(), "expired", "state")
	assert.ErrorContains(t, err, "bad code")
}

func TestIdentityFromClaims_Rejects(t *testing.T) {
	_, err := identityFromClaims(&casdoorsdk.Claims{User: casdoorsdk.User{Email: "a@example.com"}})
	assert.Error(t, err)

	_, err = identityFromClaims(&casdoorsdk.Claims{User: casdoorsdk.User{Id: "x"}})
	assert.Error(t, err)
}

func TestMapCasdoorRole(t *testing.T) {
	tests := []struct {
		name string
		user casdoorsdk.User
		want models.UserRole
	}{
		{name: "plain user", user: casdoorsdk.User{Type: "normal-user"}, want: models.RoleStudent},
		{name: "admin flag", user: casdoorsdk.User{IsAdmin: true}, want: models.RoleAdmin},
		{name: "instructor role", user: casdoorsdk.User{Roles: []*casdoorsdk.Role{{Name: "Instructor"}}}, want: models.RoleTutor},
		{name: "admin role beats tutor type", user: casdoorsdk.User{Type: "tutor", Roles: []*casdoorsdk.Role{nil, {Name: "administrator"}}}, want: models.RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapCasdoorRole(&tt.user))
		})
	}
}

func TestSplitDisplayName(t *testing.T) {
	first, last := splitDisplayName("  ", "ada")
	assert.Equal(t, "ada", first)
	assert.Empty(t, last)

	first, last = splitDisplayName("Grace Brewster Hopper", "")
	assert.Equal(t, "Grace", first)
	assert.Equal(t, "Brewster Hopper", last)
}
