// Package cloud implements the Transport port against the reMarkable
// sync API (v3/v4), the protocol the first-party desktop apps speak.
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/logger"
)

const (
	// AuthHost serves device registration and token exchange.
	// The my.remarkable.com endpoints redirect to a dead host, so the
	// webapp production host is used instead.
	AuthHost = "https://webapp-prod.cloud.remarkable.engineering"

	deviceTokenPath = "/token/json/2/device/new"
	userTokenPath   = "/token/json/2/user/new"

	// AuthTimeout bounds registration and token exchange requests.
	AuthTimeout = 30 * time.Second

	// DeviceDesc identifies this client class to the sync service.
	DeviceDesc = "desktop-linux"
)

// RegisterDevice exchanges a one-time code from
// https://my.remarkable.com/device/desktop/connect for a device token.
// Codes are single-use; a failure usually means the code expired or was
// already consumed.
func RegisterDevice(ctx context.Context, httpClient *http.Client, code string) (*domain.Credentials, error) {
	return registerDeviceAt(ctx, httpClient, AuthHost, code)
}

func registerDeviceAt(ctx context.Context, httpClient *http.Client, authHost, code string) (*domain.Credentials, error) {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: AuthTimeout}
	}

	body, err := json.Marshal(map[string]string{
		"code":       code,
		"deviceDesc": DeviceDesc,
		"deviceID":   uuid.NewString(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authHost+deviceTokenPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("register device: %w", err)
	}
	defer resp.Body.Close()

	token, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read registration response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || len(bytes.TrimSpace(token)) == 0 {
		return nil, fmt.Errorf("registration failed (HTTP %d): code expired, already used, or mistyped: %w",
			resp.StatusCode, domain.ErrAuthInvalid)
	}

	return &domain.Credentials{DeviceToken: strings.TrimSpace(string(token))}, nil
}

// userTokenSource exchanges the long-lived device token for short-lived
// user tokens. It implements oauth2.TokenSource so the standard oauth2
// transport injects the bearer header; Invalidate forces the next Token
// call to renew.
type userTokenSource struct {
	authHost    string
	httpClient  *http.Client
	deviceToken string

	// onRenew, when set, receives each fresh user token so it can be
	// persisted next to the device token.
	onRenew func(userToken string)

	mu    sync.Mutex
	token string
}

// newUserTokenSource seeds the source with any stored user token.
func newUserTokenSource(authHost string, httpClient *http.Client, creds domain.Credentials, onRenew func(string)) *userTokenSource {
	if authHost == "" {
		authHost = AuthHost
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: AuthTimeout}
	}
	return &userTokenSource{
		authHost:    authHost,
		httpClient:  httpClient,
		deviceToken: creds.DeviceToken,
		onRenew:     onRenew,
		token:       creds.UserToken,
	}
}

// Token returns the cached user token, renewing it when absent.
func (s *userTokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" {
		return &oauth2.Token{AccessToken: s.token}, nil
	}
	if s.deviceToken == "" {
		return nil, domain.ErrAuthRequired
	}

	token, err := s.renew()
	if err != nil {
		return nil, err
	}
	s.token = token
	if s.onRenew != nil {
		s.onRenew(token)
	}
	return &oauth2.Token{AccessToken: token}, nil
}

// Invalidate drops the cached user token so the next request renews.
func (s *userTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// SetDeviceToken swaps in a new device token, e.g. after the credentials
// file was rewritten by a re-registration.
func (s *userTokenSource) SetDeviceToken(deviceToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceToken = deviceToken
	s.token = ""
}

// renew exchanges the device token for a user token (caller holds lock).
func (s *userTokenSource) renew() (string, error) {
	req, err := http.NewRequest(http.MethodPost, s.authHost+userTokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.deviceToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("renew user token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	token := strings.TrimSpace(string(body))
	if resp.StatusCode != http.StatusOK || token == "" {
		logger.Warn("user token renewal failed (HTTP %d)", resp.StatusCode)
		return "", fmt.Errorf("renew user token (HTTP %d), re-register the device: %w",
			resp.StatusCode, domain.ErrTokenRefreshFailed)
	}

	logger.Debug("user token renewed")
	return token, nil
}
