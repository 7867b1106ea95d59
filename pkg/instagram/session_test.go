package instagram

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igclient/pkg/config"
	"igclient/pkg/cookies"
	"igclient/pkg/errors"
	"igclient/pkg/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func textResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func testInstagramConfig() *config.InstagramConfig {
	return &config.InstagramConfig{
		AppID:      "936619743392459",
		UserAgents: []string{"test-agent"},
		Timeout:    5 * time.Second,
	}
}

func newTestSession(t *testing.T, rt http.RoundTripper, opts ...Option) *Session {
	t.Helper()
	all := append([]Option{WithHTTPClient(&http.Client{Transport: rt})}, opts...)
	s, err := NewSession(testInstagramConfig(), cookies.NewMemoryStore(), logger.NewTestLogger(), all...)
	require.NoError(t, err)
	return s
}

const (
	homepageBody  = `<html>{"lsd":"lsd-token-1"} {"csrf_token":"csrf-token-1"}</html>`
	loginOKBody   = `{"authenticated": true, "user": true, "userId": "42", "status": "ok"}`
	loginFailBody = `{"authenticated": false, "user": true, "status": "ok"}`
)

func TestDoSendsSessionHeaders(t *testing.T) {
	var captured *http.Request
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		return textResponse(200, `{"status":"ok"}`), nil
	}))

	_, err := s.Do(context.Background(), http.MethodGet, BaseURL+"/api/v1/test", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "test-agent", captured.Header.Get("User-Agent"))
	assert.Equal(t, "936619743392459", captured.Header.Get("X-IG-App-ID"))
	assert.Equal(t, "XMLHttpRequest", captured.Header.Get("X-Requested-With"))
}

func TestFetchTokens(t *testing.T) {
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return textResponse(200, homepageBody), nil
	}))

	require.NoError(t, s.FetchTokens(context.Background()))
	assert.Equal(t, "csrf-token-1", s.CSRFToken())

	s.mu.Lock()
	assert.Equal(t, "lsd-token-1", s.lsdToken)
	s.mu.Unlock()
}

func TestFetchTokensMissing(t *testing.T) {
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return textResponse(200, `<html>no tokens here</html>`), nil
	}))

	err := s.FetchTokens(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeMalformedPayload, errors.TypeOf(err))
}

// reauthTransport simulates a session that expired: the data endpoint
// rejects requests until a login has happened.
type reauthTransport struct {
	loggedIn  bool
	dataHits  int
	loginHits int
	// rejection is the response served before login.
	rejection func() *http.Response
}

func (rt *reauthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case req.URL.Path == "/" && req.Method == http.MethodGet:
		return textResponse(200, homepageBody), nil
	case strings.Contains(req.URL.Path, "/accounts/login/ajax/"):
		rt.loginHits++
		rt.loggedIn = true
		resp := textResponse(200, loginOKBody)
		resp.Header.Add("Set-Cookie", "sessionid=fresh-session; Path=/")
		resp.Header.Add("Set-Cookie", "csrftoken=fresh-csrf; Path=/")
		return resp, nil
	default:
		rt.dataHits++
		if !rt.loggedIn {
			return rt.rejection(), nil
		}
		return textResponse(200, `{"status":"ok","value":7}`), nil
	}
}

func TestDoReauthenticatesAndReplaysOnce(t *testing.T) {
	rt := &reauthTransport{rejection: func() *http.Response {
		return textResponse(401, `{"message":"login_required","status":"fail"}`)
	}}
	s := newTestSession(t, rt, WithCredentials("alice", "hunter2"))

	resp, err := s.Do(context.Background(), http.MethodGet, BaseURL+"/api/v1/data", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(resp.Body), `"value":7`)

	assert.Equal(t, 2, rt.dataHits, "original attempt plus exactly one replay")
	assert.Equal(t, 1, rt.loginHits)
	assert.True(t, s.HasSessionCookie())
}

func TestDoDetectsBodyMarkerOn200(t *testing.T) {
	rt := &reauthTransport{rejection: func() *http.Response {
		return textResponse(200, `{"message":"login_required","status":"fail"}`)
	}}
	s := newTestSession(t, rt, WithCredentials("alice", "hunter2"))

	resp, err := s.Do(context.Background(), http.MethodGet, BaseURL+"/api/v1/data", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 2, rt.dataHits)
}

func TestDoWithoutCredentialsFailsOnAuthWall(t *testing.T) {
	hits := 0
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits++
		return textResponse(403, `{"status":"fail","reason":"wall"}`), nil
	}))

	resp, err := s.Do(context.Background(), http.MethodGet, BaseURL+"/api/v1/data", nil, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthRequired, errors.TypeOf(err))
	assert.Equal(t, 1, hits, "nothing to replay with")

	// The rejecting response travels with the error.
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "wall")
}

func TestDoNeverReplaysCommentPosts(t *testing.T) {
	hits := 0
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits++
		return textResponse(403, `{"status":"fail"}`), nil
	}), WithCredentials("alice", "hunter2"))

	_, err := s.Do(context.Background(), http.MethodPost, CommentAddURL("317"), []byte("comment_text=hi"), nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthRequired, errors.TypeOf(err))
	assert.Equal(t, 1, hits, "a replayed comment would post twice")
}

func TestIsReplayUnsafe(t *testing.T) {
	assert.True(t, isReplayUnsafe(http.MethodPost, CommentAddURL("317")))
	assert.False(t, isReplayUnsafe(http.MethodGet, CommentAddURL("317")))
	assert.False(t, isReplayUnsafe(http.MethodPost, ConfigurePhotoURL))
	assert.False(t, isReplayUnsafe(http.MethodPost, GraphQLURL))
}

func TestLoginIncorrectPassword(t *testing.T) {
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == "/" {
			return textResponse(200, homepageBody), nil
		}
		return textResponse(200, loginFailBody), nil
	}))

	err := s.Login(context.Background(), "alice", "wrong", true)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthRequired, errors.TypeOf(err))
	assert.Contains(t, err.Error(), "incorrect password")
}

func TestLoginProceedsWithoutTokens(t *testing.T) {
	loginHits := 0
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path == "/" {
			// Token scraping fails; login must still be attempted.
			return textResponse(500, "boom"), nil
		}
		loginHits++
		return textResponse(200, loginOKBody), nil
	}))

	require.NoError(t, s.Login(context.Background(), "alice", "hunter2", true))
	assert.Equal(t, 1, loginHits)
}

// checkpointTransport serves a login that demands a challenge and records
// the choice and code submitted to the challenge endpoint.
type checkpointTransport struct {
	loginHits    int
	choicePosted string
	codePosted   string
}

func (ct *checkpointTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	switch {
	case req.URL.Path == "/" && req.Method == http.MethodGet:
		return textResponse(200, homepageBody), nil
	case strings.Contains(req.URL.Path, "/accounts/login/ajax/"):
		ct.loginHits++
		return textResponse(200, `{"message":"checkpoint_required","checkpoint_url":"/challenge/317/","status":"fail"}`), nil
	case strings.Contains(req.URL.Path, "/challenge/") && req.Method == http.MethodGet:
		return textResponse(200, `{"step_name":"select_verify_method","step_data":{"email":"a***@b.com"}}`), nil
	case strings.Contains(req.URL.Path, "/challenge/") && req.Method == http.MethodPost:
		body, _ := io.ReadAll(req.Body)
		form, _ := url.ParseQuery(string(body))
		if choice := form.Get("choice"); choice != "" {
			ct.choicePosted = choice
			return textResponse(200, `{"status":"ok"}`), nil
		}
		ct.codePosted = form.Get("security_code")
		resp := textResponse(200, `{"status":"ok"}`)
		resp.Header.Add("Set-Cookie", "sessionid=challenge-session; Path=/")
		return resp, nil
	default:
		return textResponse(404, ""), nil
	}
}

// scriptedPrompter answers the checkpoint prompts with fixed values.
type scriptedPrompter struct {
	choice, code string
	stepData     map[string]interface{}
}

func (p *scriptedPrompter) SelectVerifyMethod(stepData map[string]interface{}) (string, error) {
	p.stepData = stepData
	return p.choice, nil
}

func (p *scriptedPrompter) EnterSecurityCode() (string, error) {
	return p.code, nil
}

func TestLoginResolvesCheckpoint(t *testing.T) {
	ct := &checkpointTransport{}
	prompter := &scriptedPrompter{choice: "1", code: "123456"}
	s := newTestSession(t, ct, WithChallengePrompter(prompter))

	require.NoError(t, s.Login(context.Background(), "alice", "hunter2", true))

	assert.Equal(t, "1", ct.choicePosted)
	assert.Equal(t, "123456", ct.codePosted)
	assert.Equal(t, "a***@b.com", prompter.stepData["email"])
	assert.Equal(t, 1, ct.loginHits, "solving the challenge completes the login")
	assert.True(t, s.HasSessionCookie())
}

func TestLoginCheckpointCodeRejected(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		switch {
		case req.URL.Path == "/" && req.Method == http.MethodGet:
			return textResponse(200, homepageBody), nil
		case strings.Contains(req.URL.Path, "/accounts/login/ajax/"):
			return textResponse(200, `{"message":"checkpoint_required","checkpoint_url":"/challenge/317/","status":"fail"}`), nil
		case req.Method == http.MethodGet:
			return textResponse(200, `{"step_name":"select_verify_method","step_data":{}}`), nil
		default:
			return textResponse(400, `{"status":"fail"}`), nil
		}
	})
	s := newTestSession(t, rt, WithChallengePrompter(&scriptedPrompter{choice: "0", code: "000000"}))

	err := s.Login(context.Background(), "alice", "hunter2", true)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthRequired, errors.TypeOf(err))
}

func TestLoginCheckpointWithoutPrompter(t *testing.T) {
	ct := &checkpointTransport{}
	s := newTestSession(t, ct)

	err := s.Login(context.Background(), "alice", "hunter2", true)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeAuthRequired, errors.TypeOf(err))
	assert.Empty(t, ct.choicePosted)
}

func TestLoginPersistsCookies(t *testing.T) {
	store := cookies.NewMemoryStore()
	rt := &reauthTransport{rejection: func() *http.Response {
		return textResponse(401, `{}`)
	}}
	s, err := NewSession(testInstagramConfig(), store, logger.NewTestLogger(),
		WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	require.NoError(t, s.Login(context.Background(), "alice", "hunter2", true))
	assert.True(t, s.HasSessionCookie())

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "fresh-session", saved["sessionid"])
	assert.Equal(t, "fresh-csrf", saved["csrftoken"])
}

func TestNewSessionLoadsSavedCookies(t *testing.T) {
	store := cookies.NewMemoryStore()
	require.NoError(t, store.Save(map[string]string{
		"sessionid": "saved-session",
		"csrftoken": "saved-csrf",
	}))

	s, err := NewSession(testInstagramConfig(), store, logger.NewTestLogger(),
		WithHTTPClient(&http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return textResponse(200, `{"status":"ok"}`), nil
		})}))
	require.NoError(t, err)

	assert.True(t, s.HasSessionCookie())
	assert.Equal(t, "saved-csrf", s.CSRFToken())
}

func TestGetJSONClassifiesStatus(t *testing.T) {
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return textResponse(404, `{"status":"fail"}`), nil
	}))

	var out map[string]interface{}
	err := s.GetJSON(context.Background(), BaseURL+"/api/v1/missing", &out)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))
}

func TestGetJSONRateLimit(t *testing.T) {
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return textResponse(429, `{}`), nil
	}))

	var out map[string]interface{}
	err := s.GetJSON(context.Background(), BaseURL+"/api/v1/x", &out)
	assert.Equal(t, errors.ErrorTypeRateLimit, errors.TypeOf(err))
}

func TestGraphQLSendsDocIDAndVariables(t *testing.T) {
	var form string
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		form = string(body)
		return textResponse(200, `{"data": {"thing": 1}, "status": "ok"}`), nil
	}))

	envelope, err := s.GraphQL(context.Background(), "12345", map[string]interface{}{"shortcode": "ABC"})
	require.NoError(t, err)
	assert.Contains(t, form, "doc_id=12345")
	assert.Contains(t, form, "shortcode")
	assert.JSONEq(t, `{"thing": 1}`, string(envelope.Data))
}

func TestStreamErrors(t *testing.T) {
	s := newTestSession(t, roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return textResponse(404, ""), nil
	}))

	_, _, err := s.Stream(context.Background(), "https://cdn/a.jpg", "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeNotFound, errors.TypeOf(err))
}
