package instagram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"igclient/pkg/config"
	"igclient/pkg/cookies"
	"igclient/pkg/errors"
	"igclient/pkg/logger"
	"igclient/pkg/ratelimit"
)

// Session is an authenticated Instagram web session. It owns the HTTP
// client, the cookie jar and the session token triple, and transparently
// re-authenticates once when a request hits a login wall.
type Session struct {
	httpClient *http.Client
	store      cookies.Store
	log        logger.Logger

	appID     string
	userAgent string

	username string
	password string
	prompter ChallengePrompter
	limiter  ratelimit.Limiter

	// mu guards the token triple. The three tokens are always read and
	// written together so a request never sees a half-updated session.
	mu        sync.Mutex
	csrfToken string
	lsdToken  string
	sessionID string

	reauth singleflight.Group
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient replaces the underlying HTTP client. Used by tests to
// inject a fake transport.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Session) {
		s.httpClient = client
	}
}

// WithCredentials provides the username and password used for login and
// transparent re-authentication.
func WithCredentials(username, password string) Option {
	return func(s *Session) {
		s.username = username
		s.password = password
	}
}

// WithChallengePrompter installs a handler for login checkpoints.
func WithChallengePrompter(p ChallengePrompter) Option {
	return func(s *Session) {
		s.prompter = p
	}
}

// WithRateLimiter paces every API request through the given limiter.
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(s *Session) {
		s.limiter = l
	}
}

// NewSession creates a session from configuration and a cookie store.
// Previously saved cookies are loaded so a fresh login is only needed when
// the saved session has expired.
func NewSession(cfg *config.InstagramConfig, store cookies.Store, log logger.Logger, opts ...Option) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	s := &Session{
		httpClient: &http.Client{Jar: jar, Timeout: cfg.Timeout},
		store:      store,
		log:        log,
		appID:      cfg.AppID,
		sessionID:  cfg.SessionID,
		csrfToken:  cfg.CSRFToken,
	}

	if len(cfg.UserAgents) > 0 {
		s.userAgent = cfg.UserAgents[rand.Intn(len(cfg.UserAgents))]
	} else {
		s.userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.httpClient.Jar == nil {
		s.httpClient.Jar = jar
	}
	if s.log == nil {
		s.log = logger.GetLogger()
	}

	if s.store != nil {
		if err := s.loadCookies(); err != nil {
			s.log.WithError(err).Warn("ignoring unreadable cookie store")
		}
	}

	return s, nil
}

// Response is a fully-read HTTP response. Reading the body eagerly makes
// the single re-auth replay and body marker checks possible.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// DecodeJSON unmarshals the body, mapping parse failures to a malformed
// payload error.
func (r *Response) DecodeJSON(out interface{}) error {
	return decodeJSON(r.Body, out)
}

// HasSessionCookie reports whether the session carries a session id, either
// from configuration or from a previous login.
func (s *Session) HasSessionCookie() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID != ""
}

// Username returns the configured login username, if any.
func (s *Session) Username() string {
	return s.username
}

// CSRFToken returns the current CSRF token.
func (s *Session) CSRFToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrfToken
}

// Do executes a request with session headers. When the response is a login
// wall and credentials are available, it re-authenticates through a
// singleflight group and replays the request exactly once. Requests that
// are not safe to replay, or walls that cannot be resolved, fail with an
// auth error carrying the rejecting response so the caller can inspect it.
func (s *Session) Do(ctx context.Context, method, rawurl string, body []byte, header http.Header) (*Response, error) {
	resp, err := s.execute(ctx, method, rawurl, body, header)
	if err != nil {
		return nil, err
	}
	if !isAuthRequired(resp) {
		return resp, nil
	}

	if isReplayUnsafe(method, rawurl) {
		return resp, errors.WithCode(errors.ErrorTypeAuthRequired, resp.StatusCode,
			"session expired on a non-replayable request")
	}
	if s.username == "" || s.password == "" {
		return resp, errors.WithCode(errors.ErrorTypeAuthRequired, resp.StatusCode,
			"session expired and no credentials available")
	}

	s.log.WithField("url", rawurl).Info("session expired, re-authenticating")

	// Concurrent expirations share a single login attempt.
	_, loginErr, _ := s.reauth.Do("login", func() (interface{}, error) {
		return nil, s.Login(ctx, s.username, s.password, true)
	})
	if loginErr != nil {
		return resp, errors.Newf(errors.ErrorTypeAuthRequired, "re-authentication failed: %v", loginErr)
	}

	replayed, err := s.execute(ctx, method, rawurl, body, header)
	if err != nil {
		return nil, err
	}
	if isAuthRequired(replayed) {
		return replayed, errors.WithCode(errors.ErrorTypeAuthRequired, replayed.StatusCode,
			"still unauthorized after re-authentication")
	}
	return replayed, nil
}

// execute performs a single request attempt.
func (s *Session) execute(ctx context.Context, method, rawurl string, body []byte, header http.Header) (*Response, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawurl, reader)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeUnknown, "failed to build request: %v", err)
	}

	for key, values := range s.headers() {
		req.Header[key] = values
	}
	for key, values := range header {
		req.Header[key] = values
	}
	s.attachSessionCookie(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeNetwork, "request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeNetwork, "failed to read response: %v", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: data, Header: resp.Header}, nil
}

// headers builds the default header set from the current token triple.
func (s *Session) headers() http.Header {
	s.mu.Lock()
	csrf, lsd := s.csrfToken, s.lsdToken
	s.mu.Unlock()

	h := http.Header{}
	h.Set("User-Agent", s.userAgent)
	h.Set("Accept", "*/*")
	h.Set("X-IG-App-ID", s.appID)
	h.Set("X-Requested-With", "XMLHttpRequest")
	h.Set("Referer", BaseURL+"/")
	if csrf != "" {
		h.Set("X-CSRFToken", csrf)
	}
	if lsd != "" {
		h.Set("X-FB-LSD", lsd)
	}
	return h
}

// attachSessionCookie adds the session id cookie when the jar does not
// already carry one for the request host.
func (s *Session) attachSessionCookie(req *http.Request) {
	s.mu.Lock()
	sessionID, csrf := s.sessionID, s.csrfToken
	s.mu.Unlock()

	if sessionID == "" {
		return
	}
	for _, c := range req.Cookies() {
		if c.Name == "sessionid" {
			return
		}
	}
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: sessionID})
	if csrf != "" {
		req.AddCookie(&http.Cookie{Name: "csrftoken", Value: csrf})
	}
}

// GetJSON performs a GET and decodes the body into out.
func (s *Session) GetJSON(ctx context.Context, rawurl string, out interface{}) error {
	resp, err := s.Do(ctx, http.MethodGet, rawurl, nil, nil)
	if err != nil {
		return err
	}
	if err := classifyStatus(resp); err != nil {
		return err
	}
	return resp.DecodeJSON(out)
}

// PostForm performs a form-encoded POST.
func (s *Session) PostForm(ctx context.Context, rawurl string, form url.Values) (*Response, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.Do(ctx, http.MethodPost, rawurl, []byte(form.Encode()), header)
}

// GraphQL executes a doc_id based GraphQL query and returns the envelope.
func (s *Session) GraphQL(ctx context.Context, docID string, variables interface{}) (*GraphQLEnvelope, error) {
	vars, err := encodeJSON(variables)
	if err != nil {
		return nil, errors.Newf(errors.ErrorTypeUnknown, "failed to encode variables: %v", err)
	}

	s.mu.Lock()
	lsd := s.lsdToken
	s.mu.Unlock()

	form := url.Values{}
	form.Set("doc_id", docID)
	form.Set("variables", string(vars))
	form.Set("server_timestamps", "true")
	if lsd != "" {
		form.Set("lsd", lsd)
	}

	resp, err := s.PostForm(ctx, GraphQLURL, form)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	var envelope GraphQLEnvelope
	if err := resp.DecodeJSON(&envelope); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// WebProfile fetches the public profile info for a username.
func (s *Session) WebProfile(ctx context.Context, username string) (*UserProfile, error) {
	var wire webProfileResponse
	if err := s.GetJSON(ctx, WebProfileURL(username), &wire); err != nil {
		return nil, err
	}
	user := wire.Data.User
	if user == nil {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "user %q not found", username)
	}
	return &UserProfile{
		ID:            user.ID,
		Username:      user.Username,
		FullName:      user.FullName,
		Biography:     user.Biography,
		IsPrivate:     user.IsPrivate,
		IsVerified:    user.IsVerified,
		FollowerCount: user.EdgeFollow.Count,
		ProfilePicURL: user.ProfilePicURLHD,
		MediaCount:    user.EdgeMedia.Count,
	}, nil
}

// Stream opens a media URL for download and returns the body reader and
// content length. The caller must close the reader.
func (s *Session) Stream(ctx context.Context, rawurl, referer string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, 0, errors.Newf(errors.ErrorTypeUnknown, "failed to build request: %v", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Newf(errors.ErrorTypeNetwork, "download failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, 0, errors.WithCode(errors.ErrorTypeNotFound, resp.StatusCode, "media not found")
		}
		return nil, 0, errors.WithCode(errors.ErrorTypeServerError, resp.StatusCode,
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
	return resp.Body, resp.ContentLength, nil
}

// isAuthRequired reports whether a response is a login wall: an auth status
// code or a login_required marker anywhere in the body.
func isAuthRequired(resp *Response) bool {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return true
	}
	return bytes.Contains(resp.Body, []byte("login_required"))
}

// isReplayUnsafe reports whether replaying the request after re-auth could
// duplicate a visible side effect. Comment creation is the one write the
// API does not deduplicate server-side.
func isReplayUnsafe(method, rawurl string) bool {
	if method != http.MethodPost {
		return false
	}
	u, err := url.Parse(rawurl)
	if err != nil {
		return true
	}
	return strings.Contains(u.Path, "/comments/") && strings.Contains(u.Path, "/add/")
}

// classifyStatus maps a non-2xx status to a typed error.
func classifyStatus(resp *Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return errors.WithCode(errors.ErrorTypeNotFound, resp.StatusCode, "resource not found")
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.WithCode(errors.ErrorTypeRateLimit, resp.StatusCode, "rate limited")
	case resp.StatusCode >= 500:
		return errors.WithCode(errors.ErrorTypeServerError, resp.StatusCode,
			fmt.Sprintf("server error %d", resp.StatusCode))
	default:
		return errors.WithCode(errors.ErrorTypeUnknown, resp.StatusCode,
			fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}
}
