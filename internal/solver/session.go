package solver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"lingbot/pkg/logx"
)

const (
	defaultBaseURL   = "https://instaling.pl"
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:106.0) Gecko/20100101 Firefox/106.0"

	pathLogin      = "/teacher.php?page=teacherActions"
	pathMain       = "/learning/dispatcher.php"
	pathLogout     = "/wyloguj_ucznia.php"
	pathApp        = "/ling2/html_app/app.php"
	pathInitSess   = "/ling2/server/actions/init_session.php"
	pathNextWord   = "/ling2/server/actions/generate_next_word.php"
	pathSaveAnswer = "/ling2/server/actions/save_answer.php"
)

var (
	ErrLogin          = errors.New("failed to log in")
	ErrSessionExpired = errors.New("session expired or logged out")

	versionRegex = regexp.MustCompile(`updateParams\((?:['"\w]+,\s*){3}['"](\w+)['"]\)`)
)

type SessionConfig struct {
	BaseURL   string // empty means production
	Username  string
	Password  string
	UserAgent string

	Timeout   time.Duration // per-request; default 10s
	Retries   int           // default 10
	RetryWait time.Duration // default 2.5s
}

// Session is one authenticated learning session against the quiz site.
// It is not safe for concurrent use; each profile run owns exactly one.
type Session struct {
	cfg  SessionConfig
	http *http.Client
	base *url.URL
	log  logx.Logger

	userID  string
	version string
}

func NewSession(cfg SessionConfig, log logx.Logger) (*Session, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 10
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 2500 * time.Millisecond
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:  cfg,
		base: base,
		log:  log,
		http: &http.Client{Jar: jar, Timeout: cfg.Timeout},
	}, nil
}

// UserID returns the numeric site user id, or 0 before a successful login.
func (s *Session) UserID() int64 {
	id, _ := strconv.ParseInt(s.userID, 10, 64)
	return id
}

// Login posts the credential form and resolves the student id from the
// redirect target. It also fetches the app version token required by the
// answer endpoint.
func (s *Session) Login(ctx context.Context) error {
	form := url.Values{
		"action":       {"login"},
		"from":         {""},
		"log_email":    {s.cfg.Username},
		"log_password": {s.cfg.Password},
	}
	resp, err := s.postForm(ctx, pathLogin, form)
	if err != nil {
		return err
	}
	defer drain(resp)

	final := resp.Request.URL
	if final.Path != pathMain {
		return ErrLogin
	}
	s.userID = final.Query().Get("student_id")
	if s.userID == "" {
		return ErrLogin
	}
	return s.fetchAppVersion(ctx)
}

// Logout ends the session server-side. Errors are irrelevant at this point.
func (s *Session) Logout(ctx context.Context) {
	req, err := s.newRequest(ctx, http.MethodGet, pathLogout, nil)
	if err != nil {
		return
	}
	resp, err := s.http.Do(req)
	if err == nil {
		drain(resp)
	}
}

func (s *Session) fetchAppVersion(ctx context.Context) error {
	req, err := s.newRequest(ctx, http.MethodGet, pathApp+"?child_id="+url.QueryEscape(s.userID), nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	drain(resp)
	if err != nil {
		return err
	}
	m := versionRegex.FindSubmatch(body)
	if m == nil {
		return errors.New("could not find version id in app code")
	}
	s.version = string(m[1])
	return nil
}

// SessionStatus reports whether today's learning session is already in progress.
func (s *Session) SessionStatus(ctx context.Context) (inProgress bool, err error) {
	form := url.Values{
		"child_id": {s.userID},
		"repeat":   {""},
		"start":    {""},
		"end":      {""},
	}
	var data struct {
		IsNew int    `json:"is_new"`
		ID    string `json:"id"`
	}
	if err := s.postJSON(ctx, pathInitSess, form, &data); err != nil {
		return false, err
	}
	return data.IsNew == 0, nil
}

// NextWord fetches the next prompt, or nil when the session is finished.
func (s *Session) NextWord(ctx context.Context) (*Word, error) {
	form := url.Values{
		"child_id": {s.userID},
		"date":     {strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}
	var data nextWordPayload
	if err := s.postJSON(ctx, pathNextWord, form, &data); err != nil {
		return nil, err
	}
	if data.ID == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(data.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("next word: bad id %q", data.ID)
	}
	return &Word{
		ID:           id,
		UsageExample: data.UsageExample,
		Translations: data.Translations,
		Type:         data.Type,
	}, nil
}

// SubmitAnswer sends the user's answer (possibly empty) and returns the
// graded result, or nil if the session ended.
func (s *Session) SubmitAnswer(ctx context.Context, wordID int64, answer string) (*Word, error) {
	form := url.Values{
		"child_id": {s.userID},
		"word_id":  {strconv.FormatInt(wordID, 10)},
		"answer":   {answer},
		"version":  {s.version},
	}
	var data answerPayload
	if err := s.postJSON(ctx, pathSaveAnswer, form, &data); err != nil {
		return nil, err
	}
	if data.ID == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(data.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("submit answer: bad id %q", data.ID)
	}
	grade := Grade(data.Grade)
	return &Word{
		ID:           id,
		Word:         data.Word,
		ShownAnswer:  data.AnswerShow,
		UsageExample: data.UsageExample,
		Translations: data.Translations,
		Grade:        &grade,
	}, nil
}

type nextWordPayload struct {
	ID           string `json:"id"`
	UsageExample string `json:"usage_example"`
	Translations string `json:"translations"`
	Type         string `json:"type"`
}

type answerPayload struct {
	ID           string `json:"id"`
	Word         string `json:"word"`
	AnswerShow   string `json:"answershow"`
	UsageExample string `json:"usage_example"`
	Translations string `json:"translations"`
	Grade        int    `json:"grade"`
}

// postJSON posts a form and decodes a JSON body, retrying empty responses,
// 405s and server errors with a fixed wait (the site does this routinely).
func (s *Session) postJSON(ctx context.Context, path string, form url.Values, out any) error {
	var lastErr error
	for attempt := 0; attempt < s.cfg.Retries; attempt++ {
		resp, err := s.postForm(ctx, path, form)
		if err != nil {
			return err
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		drain(resp)
		if err != nil {
			return err
		}

		retryable := resp.StatusCode >= 500 ||
			resp.StatusCode == http.StatusMethodNotAllowed ||
			(resp.StatusCode < 300 && len(body) == 0)
		if retryable {
			s.log.Warn("retryable response from quiz endpoint",
				logx.String("path", path), logx.Int("status", resp.StatusCode), logx.Int("body_len", len(body)))
			lastErr = fmt.Errorf("%s: status %d, %d body bytes", path, resp.StatusCode, len(body))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.RetryWait):
			}
			continue
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("%s: unexpected status %s", path, resp.Status)
		}
		return json.Unmarshal(body, out)
	}
	return fmt.Errorf("retries exhausted: %w", lastErr)
}

func (s *Session) postForm(ctx context.Context, path string, form url.Values) (*http.Response, error) {
	req, err := s.newRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	// The site signals an expired session by bouncing requests to the
	// logout page.
	if resp.Request.URL.Path == pathLogout {
		drain(resp)
		return nil, ErrSessionExpired
	}
	return resp, nil
}

func (s *Session) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u, err := s.base.Parse(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	return req, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
