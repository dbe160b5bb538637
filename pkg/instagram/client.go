package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"instacollector/pkg/classify"
	"instacollector/pkg/logger"
	"instacollector/pkg/ratelimit"
)

// Credentials identifies an authenticated Instagram session. Session
// establishment itself (login, challenges) is out of scope; the
// collector is handed cookies that already work.
type Credentials struct {
	Username  string
	SessionID string
	CSRFToken string
	UserAgent string
}

// ErrInvalidCredentials is returned when a session cannot be created
// from the supplied credentials.
var ErrInvalidCredentials = errors.New("session: missing session id or csrf token")

// Session is an authenticated API client shared by all sweep tasks. It
// paces every request through one rate limiter and classifies failures
// at the boundary.
type Session struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// NewSession creates a session from working credentials.
func NewSession(creds Credentials, timeout time.Duration, limiter ratelimit.Limiter, log logger.Logger) (*Session, error) {
	if creds.SessionID == "" || creds.CSRFToken == "" {
		return nil, ErrInvalidCredentials
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if limiter == nil {
		limiter = ratelimit.NewTokenBucket(60, time.Minute)
	}

	userAgent := creds.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	}

	headers := map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
		"X-CSRFToken":     creds.CSRFToken,
		"Cookie": strings.Join([]string{
			"sessionid=" + creds.SessionID,
			"csrftoken=" + creds.CSRFToken,
		}, "; "),
	}

	return &Session{
		httpClient: &http.Client{Timeout: timeout},
		headers:    headers,
		baseURL:    BaseURL,
		limiter:    limiter,
		logger:     log,
	}, nil
}

// SetBaseURL overrides the API base URL. Used by tests.
func (s *Session) SetBaseURL(base string) {
	s.baseURL = strings.TrimSuffix(base, "/")
}

// do performs a paced request with the session headers set.
func (s *Session) do(ctx context.Context, rawURL string) (*http.Response, error) {
	if !s.limiter.Allow() {
		s.limiter.Wait()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range s.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.DebugWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, err
	}

	s.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"url":      rawURL,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	return resp, nil
}

// getJSON performs a paced GET against an API path and decodes the body.
func (s *Session) getJSON(ctx context.Context, path string, target interface{}) error {
	resp, err := s.do(ctx, s.baseURL+path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		return classify.Newf(classify.KindUnclassified, "failed to parse response: %v", err)
	}

	return nil
}

// checkStatus maps HTTP status codes onto classified errors.
func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusTooManyRequests:
		return classify.WithCode(classify.KindRateLimited, code, "please wait a few minutes before you try again")
	case code == http.StatusNotFound:
		return classify.WithCode(classify.KindNotFound, code, "resource not found")
	default:
		return classify.WithCode(classify.KindUnclassified, code, fmt.Sprintf("unexpected status code: %d", code))
	}
}

// checkAPIStatus maps API-level failure envelopes onto classified
// errors. The upstream reports rate limiting and privacy violations
// with HTTP 200 and a fail status.
func checkAPIStatus(status, message string) error {
	if status != "fail" {
		return nil
	}

	lower := strings.ToLower(message)
	switch {
	case strings.HasPrefix(lower, "please wait a few minutes"):
		return classify.New(classify.KindRateLimited, message)
	case strings.Contains(lower, "not authorized to view user"), strings.Contains(lower, "private"):
		return classify.New(classify.KindAccountPrivate, message)
	default:
		return classify.New(classify.KindUnclassified, message)
	}
}

// SearchUser resolves a human-readable handle to its account payload.
func (s *Session) SearchUser(ctx context.Context, username string) (*UserPayload, error) {
	username = SanitizeUsername(username)

	var result userSearchResponse
	if err := s.getJSON(ctx, userSearchPath(username), &result); err != nil {
		return nil, fmt.Errorf("failed to search for user %q: %w", username, err)
	}

	for _, user := range result.Users {
		if strings.EqualFold(user.Username, username) {
			return user.payload(), nil
		}
	}
	if len(result.Users) > 0 {
		return result.Users[0].payload(), nil
	}

	return nil, classify.Newf(classify.KindNotFound, "no account found for %q", username)
}

// SearchLocation resolves a location query to the best matching place.
func (s *Session) SearchLocation(ctx context.Context, query string) (*Location, error) {
	var result placeSearchResponse
	if err := s.getJSON(ctx, placeSearchPath(query), &result); err != nil {
		return nil, fmt.Errorf("failed to search for location %q: %w", query, err)
	}

	if len(result.Items) == 0 {
		return nil, classify.Newf(classify.KindNotFound, "no location found for %q", query)
	}

	loc := result.Items[0].Location
	return &Location{ID: loc.PK.String(), Name: loc.Name}, nil
}

// DownloadFile fetches a media file over the network and returns its
// bytes. Non-200 responses carry their status code so the caller can
// apply the download-specific ignorable set.
func (s *Session) DownloadFile(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := s.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classify.WithCode(classify.KindUnclassified, resp.StatusCode,
			fmt.Sprintf("unexpected HTTP status code: %d", resp.StatusCode))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file data: %w", err)
	}

	return data, nil
}
