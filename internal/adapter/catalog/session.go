package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotAuthenticated marks catalog calls attempted before Authenticate
// succeeded. Authentication failure aborts the whole run: every granule
// fetch needs a valid session.
var ErrNotAuthenticated = errors.New("catalog session not authenticated")

// Session holds the credentials and bearer token for the catalog's download
// endpoints. It is constructed once by the caller and passed explicitly to
// the client — there is no process-wide authentication state.
type Session struct {
	username   string
	password   string
	tokenURL   string
	httpClient *http.Client

	token string
}

// NewSession creates an unauthenticated session. tokenURL is the endpoint
// that exchanges basic credentials for a bearer token.
func NewSession(username, password, tokenURL string, timeout time.Duration) *Session {
	return &Session{
		username:   username,
		password:   password,
		tokenURL:   tokenURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Authenticate exchanges the credentials for a token. It must be called
// before Search or Download and may be called again to refresh.
func (s *Session) Authenticate(ctx context.Context) error {
	if s.username == "" || s.password == "" {
		return errors.New("catalog: missing credentials (set EARTHDATA_USERNAME and EARTHDATA_PASSWORD)")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, nil)
	if err != nil {
		return fmt.Errorf("catalog: create token request: %w", err)
	}
	req.SetBasicAuth(s.username, s.password)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("catalog: token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("catalog: token endpoint returned status %d: %s", resp.StatusCode, body)
	}

	var tr struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return fmt.Errorf("catalog: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return errors.New("catalog: token endpoint returned an empty token")
	}
	s.token = tr.AccessToken
	return nil
}

// Authenticated reports whether a token is held.
func (s *Session) Authenticated() bool { return s.token != "" }

// authorize attaches the bearer token to an outgoing request.
func (s *Session) authorize(req *http.Request) error {
	if s.token == "" {
		return ErrNotAuthenticated
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	return nil
}
