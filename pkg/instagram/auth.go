package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"igclient/pkg/errors"
)

var (
	lsdTokenRegex  = regexp.MustCompile(`"lsd":"(.*?)"`)
	csrfTokenRegex = regexp.MustCompile(`"csrf_token":"(.*?)"`)
)

// ChallengePrompter collects the human input a login checkpoint needs: the
// verification method to use and the code the platform sent. Returning an
// error from either call aborts the login.
type ChallengePrompter interface {
	SelectVerifyMethod(stepData map[string]interface{}) (string, error)
	EnterSecurityCode() (string, error)
}

// FetchTokens loads the Instagram homepage and scrapes the lsd and csrf
// tokens embedded in it. Both tokens are updated together under the lock.
func (s *Session) FetchTokens(ctx context.Context) error {
	resp, err := s.execute(ctx, http.MethodGet, BaseURL+"/", nil, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return errors.WithCode(errors.ErrorTypeNetwork, resp.StatusCode,
			fmt.Sprintf("homepage returned status %d", resp.StatusCode))
	}

	lsd := firstSubmatch(lsdTokenRegex, resp.Body)
	csrf := firstSubmatch(csrfTokenRegex, resp.Body)
	if lsd == "" && csrf == "" {
		return errors.New(errors.ErrorTypeMalformedPayload, "no tokens found on homepage")
	}

	s.mu.Lock()
	if lsd != "" {
		s.lsdToken = lsd
	}
	if csrf != "" {
		s.csrfToken = csrf
	}
	s.mu.Unlock()

	s.log.DebugWithFields("scraped session tokens", map[string]interface{}{
		"lsd_found":  lsd != "",
		"csrf_found": csrf != "",
	})
	return nil
}

// Login authenticates with username and password. When force is false and a
// session cookie already exists, the saved session is reused as-is.
func (s *Session) Login(ctx context.Context, username, password string, force bool) error {
	if username == "" || password == "" {
		return errors.New(errors.ErrorTypeAuthRequired, "username and password required")
	}
	if !force && s.HasSessionCookie() {
		s.log.WithField("username", username).Debug("reusing saved session")
		return nil
	}

	s.username = username
	s.password = password

	// Token scraping is best effort; the credential POST proceeds without
	// tokens when the homepage yields none.
	if err := s.FetchTokens(ctx); err != nil {
		s.log.WithError(err).Warn("proceeding without scraped tokens")
	}

	loginResp, err := s.doLogin(ctx, username, password)
	if err != nil {
		return err
	}

	switch {
	case loginResp.CheckpointURL != "":
		if s.prompter == nil {
			return errors.Newf(errors.ErrorTypeAuthRequired,
				"login checkpoint required: %s", loginResp.CheckpointURL)
		}
		if err := s.handleCheckpoint(ctx, loginResp.CheckpointURL); err != nil {
			return err
		}
	case !loginResp.Authenticated:
		if loginResp.User {
			return errors.New(errors.ErrorTypeAuthRequired, "incorrect password")
		}
		return errors.New(errors.ErrorTypeAuthRequired, "login failed: unknown user")
	}

	s.adoptJarCookies()
	if err := s.persistCookies(); err != nil {
		s.log.WithError(err).Warn("failed to save session cookies")
	}

	s.log.WithField("username", username).Info("logged in")
	return nil
}

// doLogin performs a single login POST.
func (s *Session) doLogin(ctx context.Context, username, password string) (*LoginResponse, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("enc_password", encPassword(password, time.Now()))
	form.Set("optIntoOneTap", "false")
	form.Set("queryParams", "{}")
	form.Set("trustedDeviceRecords", "{}")

	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.execute(ctx, http.MethodPost, LoginURL, []byte(form.Encode()), header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, errors.WithCode(errors.ErrorTypeRateLimit, resp.StatusCode, "login rate limited")
	}

	var loginResp LoginResponse
	if err := resp.DecodeJSON(&loginResp); err != nil {
		return nil, err
	}
	return &loginResp, nil
}

// handleCheckpoint drives the checkpoint exchange: read the challenge
// state, submit the chosen verification method, then submit the code the
// platform delivered. Cookies set along the way stay in the jar and are
// adopted by the caller on success.
func (s *Session) handleCheckpoint(ctx context.Context, checkpointURL string) error {
	checkpoint := BaseURL + checkpointURL

	resp, err := s.execute(ctx, http.MethodGet, checkpoint, nil, nil)
	if err != nil {
		return err
	}

	var step struct {
		StepName string                 `json:"step_name"`
		StepData map[string]interface{} `json:"step_data"`
	}
	if err := resp.DecodeJSON(&step); err != nil {
		return err
	}
	if step.StepName != "select_verify_method" {
		return errors.Newf(errors.ErrorTypeAuthRequired, "unsupported checkpoint step %q", step.StepName)
	}

	choice, err := s.prompter.SelectVerifyMethod(step.StepData)
	if err != nil {
		return errors.Newf(errors.ErrorTypeAuthRequired, "checkpoint not resolved: %v", err)
	}
	if _, err := s.postCheckpointForm(ctx, checkpoint, url.Values{"choice": {choice}}); err != nil {
		return err
	}

	code, err := s.prompter.EnterSecurityCode()
	if err != nil {
		return errors.Newf(errors.ErrorTypeAuthRequired, "checkpoint not resolved: %v", err)
	}
	resp, err = s.postCheckpointForm(ctx, checkpoint, url.Values{"security_code": {code}})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK || !bytes.Contains(bytes.ToLower(resp.Body), []byte("ok")) {
		return errors.WithCode(errors.ErrorTypeAuthRequired, resp.StatusCode, "checkpoint code rejected")
	}

	s.log.Info("checkpoint solved")
	return nil
}

func (s *Session) postCheckpointForm(ctx context.Context, rawurl string, form url.Values) (*Response, error) {
	header := http.Header{}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.execute(ctx, http.MethodPost, rawurl, []byte(form.Encode()), header)
}

// encPassword formats a password for the web login endpoint. The zero
// version marker means the password travels unencrypted over TLS.
func encPassword(password string, now time.Time) string {
	return fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:0:%d:%s", now.Unix(), password)
}

// adoptJarCookies promotes the sessionid and csrftoken cookies set by the
// login response into the token triple.
func (s *Session) adoptJarCookies() {
	base, err := url.Parse(BaseURL)
	if err != nil || s.httpClient.Jar == nil {
		return
	}

	var sessionID, csrf string
	for _, c := range s.httpClient.Jar.Cookies(base) {
		switch c.Name {
		case "sessionid":
			sessionID = c.Value
		case "csrftoken":
			csrf = c.Value
		}
	}

	s.mu.Lock()
	if sessionID != "" {
		s.sessionID = sessionID
	}
	if csrf != "" {
		s.csrfToken = csrf
	}
	s.mu.Unlock()
}

// loadCookies seeds the jar and token triple from the cookie store.
func (s *Session) loadCookies() error {
	saved, err := s.store.Load()
	if err != nil {
		return err
	}
	if len(saved) == 0 {
		return nil
	}

	base, err := url.Parse(BaseURL)
	if err != nil {
		return err
	}
	jarCookies := make([]*http.Cookie, 0, len(saved))
	for name, value := range saved {
		jarCookies = append(jarCookies, &http.Cookie{Name: name, Value: value})
	}
	s.httpClient.Jar.SetCookies(base, jarCookies)

	s.mu.Lock()
	if s.sessionID == "" {
		s.sessionID = saved["sessionid"]
	}
	if s.csrfToken == "" {
		s.csrfToken = saved["csrftoken"]
	}
	s.mu.Unlock()
	return nil
}

// persistCookies writes the jar's cookies for the base domain to the store.
func (s *Session) persistCookies() error {
	if s.store == nil || s.httpClient.Jar == nil {
		return nil
	}
	base, err := url.Parse(BaseURL)
	if err != nil {
		return err
	}

	saved := make(map[string]string)
	for _, c := range s.httpClient.Jar.Cookies(base) {
		saved[c.Name] = c.Value
	}

	s.mu.Lock()
	if s.sessionID != "" {
		saved["sessionid"] = s.sessionID
	}
	if s.csrfToken != "" {
		saved["csrftoken"] = s.csrfToken
	}
	s.mu.Unlock()

	if len(saved) == 0 {
		return nil
	}
	return s.store.Save(saved)
}

func firstSubmatch(re *regexp.Regexp, data []byte) string {
	matches := re.FindSubmatch(data)
	if len(matches) < 2 {
		return ""
	}
	return string(matches[1])
}

// decodeJSON unmarshals data, mapping failures to a malformed payload error.
func decodeJSON(data []byte, out interface{}) error {
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Newf(errors.ErrorTypeMalformedPayload, "failed to parse response: %v", err)
	}
	return nil
}

func encodeJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
