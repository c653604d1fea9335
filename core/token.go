package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/netresearch/testenv/config"
)

// ErrTokenRequest is returned when the identity provider rejects the grant.
var ErrTokenRequest = errors.New("token request failed")

const tokenRequestTimeout = 10 * time.Second

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// AcquireToken performs the OAuth2 resource owner password grant against
// the token endpoint in s and returns the access token.
func AcquireToken(ctx context.Context, client *http.Client, s config.KeycloakSettings, logger Logger) (string, error) {
	if s.TokenURL == "" {
		return "", fmt.Errorf("%w: identity provider has no token endpoint", ErrTokenRequest)
	}
	if client == nil {
		client = &http.Client{Timeout: tokenRequestTimeout}
	}

	form := url.Values{
		"grant_type": {"password"},
		"client_id":  {s.ClientID},
		"username":   {s.Username},
		"password":   {s.Password},
	}
	if s.ClientSecret != "" {
		form.Set("client_secret", s.ClientSecret)
	}
	if s.Scope != "" {
		form.Set("scope", s.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: status %d: decode response: %w", ErrTokenRequest, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s %s", ErrTokenRequest, resp.StatusCode, tr.Error, tr.Description)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("%w: response carries no access token", ErrTokenRequest)
	}

	logClaims(logger, tr.AccessToken)
	return tr.AccessToken, nil
}

// logClaims logs who the token was issued to. The signature is not checked.
func logClaims(logger Logger, token string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		logger.Debugf("Access token is not a JWT: %v", err)
		return
	}
	sub, _ := claims.GetSubject()
	exp, _ := claims.GetExpirationTime()
	if exp != nil {
		logger.Debugf("Acquired access token for %q, expires %s", sub, exp.Format(time.RFC3339))
		return
	}
	logger.Debugf("Acquired access token for %q", sub)
}

// TokenPostInit returns a PostInitFunc that acquires an access token with
// the published identity provider settings and stores it in the registry.
// Without the identity provider or a configured user the token stays "".
func TokenPostInit(client *http.Client, logger Logger) PostInitFunc {
	return func(ctx context.Context, env *Published) error {
		s := env.Settings()
		if !s.Keycloak.Enabled || s.Keycloak.Username == "" {
			logger.Debugf("No identity provider user configured, skipping token")
			return nil
		}
		token, err := AcquireToken(ctx, client, s.Keycloak, logger)
		if err != nil {
			return err
		}
		return env.SetToken(token)
	}
}
