package casdoor

import (
	"context"
	"fmt"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

func (c CasdoorConfig) Enabled() bool {
	return c.Endpoint != "" && c.ClientID != ""
}

// tokenClient is the part of the Casdoor SDK client used for code exchange
type tokenClient interface {
	exchange(code, state string) (string, error)
	parse(token string) (*casdoorsdk.Claims, error)
}

type sdkClient struct {
	client *casdoorsdk.Client
}

func (s sdkClient) exchange(code, state string) (string, error) {
	token, err := s.client.GetOAuthToken(code, state)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

func (s sdkClient) parse(token string) (*casdoorsdk.Claims, error) {
	return s.client.ParseJwtToken(token)
}

type IdentityCasdoor struct {
	client tokenClient
}

// NewIdentityCasdoor returns nil when Casdoor is not configured
func NewIdentityCasdoor(config CasdoorConfig) repositories.IdentityProvider {
	if !config.Enabled() {
		return nil
	}

	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)
	return &IdentityCasdoor{client: sdkClient{client}}
}

// Exchange trades an OAuth authorization code for the Casdoor user it identifies
func (i *IdentityCasdoor) Exchange(ctx context.Context, code, state string) (*repositories.ExternalIdentity, error) {
	accessToken, err := i.client.exchange(code, state)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange casdoor code: %w", err)
	}

	claims, err := i.client.parse(accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casdoor token: %w", err)
	}

	return identityFromClaims(claims)
}

func identityFromClaims(claims *casdoorsdk.Claims) (*repositories.ExternalIdentity, error) {
	user := claims.User
	if user.Id == "" {
		return nil, fmt.Errorf("casdoor token carries no user id")
	}
	if user.Email == "" {
		return nil, fmt.Errorf("casdoor user %s has no email", user.Id)
	}

	first, last := user.FirstName, user.LastName
	if first == "" && last == "" {
		first, last = splitDisplayName(user.DisplayName, user.Name)
	}

	return &repositories.ExternalIdentity{
		Subject:       user.Id,
		Email:         strings.ToLower(user.Email),
		FirstName:     first,
		LastName:      last,
		AvatarURL:     user.Avatar,
		EmailVerified: user.EmailVerified,
		Role:          mapCasdoorRole(&user),
	}, nil
}

func splitDisplayName(display, fallback string) (string, string) {
	display = strings.TrimSpace(display)
	if display == "" {
		display = fallback
	}
	parts := strings.SplitN(display, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// mapCasdoorRole maps the Casdoor user type, roles and admin flag to a local role
func mapCasdoorRole(user *casdoorsdk.User) models.UserRole {
	if user.IsAdmin {
		return models.RoleAdmin
	}

	candidates := []string{user.Type}
	for _, r := range user.Roles {
		if r != nil {
			candidates = append(candidates, r.Name)
		}
	}

	role := models.RoleStudent
	for _, c := range candidates {
		switch strings.ToLower(c) {
		case "admin", "administrator":
			return models.RoleAdmin
		case "tutor", "teacher", "instructor", "educator":
			role = models.RoleTutor
		}
	}
	return role
}
