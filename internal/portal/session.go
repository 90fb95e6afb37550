// Package portal keeps an authenticated session with the UCAM student portal.
package portal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"gradewatch/internal/components/assert"
	"gradewatch/internal/components/retry"
	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/watcherr"
	"gradewatch/lib/htmlutil"
	"gradewatch/lib/restyutil"
	"gradewatch/lib/textutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	report_session_login  = "session.login"
	report_session_fetch  = "session.fetch"
	report_session_relog  = "session.relogin"
	report_session_mmi    = "session.mmi"
	report_session_create = "session.create"
)

const (
	LoginPath         = "/Security/Login.aspx"
	CourseHistoryPath = "/Student/StudentCourseHistory.aspx"

	fieldUserName = "ctl00$logMain$UserName"
	fieldPassword = "ctl00$logMain$Password"
	fieldButton   = "ctl00$logMain$Button1"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var errNotLoggedIn = errors.New("landing page does not look logged in")

var (
	tracer   = otel.Tracer("gradewatch.internal.portal")
	mmiRegex = regexp.MustCompile(`mmi=([a-zA-Z0-9]+)`)
)

type Options struct {
	BaseURL  string
	UserID   string
	Password string
	// CoursePath defaults to CourseHistoryPath.
	CoursePath string
	// Timeout applies to every request, defaults to 10s.
	Timeout time.Duration
	// RequestsPerSecond paces every request, defaults to 2.
	RequestsPerSecond float64
	// CloudflareBypass wraps the transport for portals behind cloudflare.
	CloudflareBypass bool
	// Retry bounds login attempts, defaults to retry.Default.
	Retry retry.Policy
	// Dump receives every exchange with the password masked, nil disables it.
	Dump restyutil.Output
}

// Session is a cookie-backed portal session. It logs in again on its own when
// the portal stops accepting it, callers only ever ask for pages.
type Session struct {
	http *resty.Client
	opts Options
	tel  telemetry.API

	mu  sync.Mutex
	mmi string
}

func NewSession(opts Options, tel telemetry.API) (*Session, error) {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.BaseURL)

	tel = telemetry.NewScopedAPI("portal", tel)

	if opts.CoursePath == "" {
		opts.CoursePath = CourseHistoryPath
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Retry.Attempts < 1 {
		opts.Retry = retry.Default
	}

	baseUrl, err := url.Parse(opts.BaseURL)
	if err != nil {
		tel.ReportBroken(report_session_create, fmt.Errorf("parse base url: %w", err))
		return nil, watcherr.Wrap(watcherr.ErrConfig, "portal.new-session", err)
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/"))
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(
		resty.FlexibleRedirectPolicy(10),
		resty.DomainCheckRedirectPolicy(baseUrl.Hostname()),
	)
	client.SetTimeout(opts.Timeout)

	burst := int(opts.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	redact := []string{}
	if opts.Password != "" {
		redact = append(redact, opts.Password, url.QueryEscape(opts.Password))
	}
	telemetry.InstrumentResty(client, tel, redact...)
	restyutil.DumpResponses(client, opts.Dump, redact...)

	return &Session{
		http: client,
		opts: opts,
		tel:  tel,
	}, nil
}

// MMI returns the navigation parameter captured at the last login, it may be empty.
func (s *Session) MMI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mmi
}

// Login performs the ASP.NET login handshake, retrying per the session's
// retry policy. Exhausted retries return an ErrLoginFailure.
func (s *Session) Login(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	err := s.opts.Retry.Do(ctx, s.loginOnce, func(attempt int, err error) {
		s.tel.ReportWarning(report_session_login, fmt.Errorf("attempt %d: %w", attempt, err))
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "login failed")
		s.tel.ReportBroken(report_session_login, err)
		return watcherr.Wrap(watcherr.ErrLoginFailure, "portal.login", err)
	}
	s.tel.ReportDebug("logged in", "mmi", s.MMI())
	return nil
}

func (s *Session) loginOnce(ctx context.Context) error {
	res, err := s.http.R().
		SetContext(ctx).
		Get(LoginPath)
	if err != nil {
		return watcherr.Wrap(watcherr.ErrTransientNetwork, "portal.login", fmt.Errorf("login page request: %w", err))
	}
	if res.StatusCode() != http.StatusOK {
		return statusError("portal.login", res)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return watcherr.Wrap(watcherr.ErrTransientNetwork, "portal.login", fmt.Errorf("parse login page: %w", err))
	}

	form := htmlutil.HiddenInputs(ctx, doc.Selection)
	form[fieldUserName] = s.opts.UserID
	form[fieldPassword] = s.opts.Password
	form[fieldButton] = "Sign In"

	res, err = s.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(LoginPath)
	if err != nil {
		return watcherr.Wrap(watcherr.ErrTransientNetwork, "portal.login", fmt.Errorf("submit login form: %w", err))
	}
	if res.StatusCode() != http.StatusOK {
		return statusError("portal.login", res)
	}

	body := res.Body()
	if groups := mmiRegex.FindSubmatch(body); len(groups) == 2 {
		s.mu.Lock()
		s.mmi = string(groups[1])
		s.mu.Unlock()
	} else {
		s.tel.ReportWarning(report_session_mmi, "landing page has no mmi parameter, using the previous one", s.MMI() != "")
	}

	landing, err := goquery.NewDocumentFromReader(bytes.NewBuffer(body))
	if err != nil {
		return watcherr.Wrap(watcherr.ErrTransientNetwork, "portal.login", fmt.Errorf("parse landing page: %w", err))
	}
	stillOnLogin := landing.Find(fmt.Sprintf(`input[name="%s"]`, fieldPassword)).Length() > 0
	if stillOnLogin || !textutil.ContainsAny(string(body), "dashboard", "logout", "course") {
		// the portal answers rejected credentials with 200 and the same form
		return errNotLoggedIn
	}
	return nil
}

func statusError(op string, res *resty.Response) error {
	return watcherr.New(watcherr.ErrTransientNetwork, op, "unexpected status %d from %s", res.StatusCode(), res.Request.URL)
}

func (s *Session) courseRequest(ctx context.Context) *resty.Request {
	req := s.http.R().SetContext(ctx)
	if mmi := s.MMI(); mmi != "" {
		req.SetQueryParam("mmi", mmi)
	}
	return req
}

func finalURL(res *resty.Response) string {
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		return res.RawResponse.Request.URL.String()
	}
	return res.Request.URL
}

// probe requests the course page and reports whether the session was accepted.
// The body is only meaningful when valid is true.
func (s *Session) probe(ctx context.Context) (body string, valid bool) {
	res, err := s.courseRequest(ctx).Get(s.opts.CoursePath)
	if err != nil {
		s.tel.ReportDebug("session probe failed", "err", err)
		return "", false
	}
	if res.StatusCode() == http.StatusNotFound {
		return "", false
	}
	if strings.Contains(strings.ToLower(finalURL(res)), "login") {
		return "", false
	}
	if res.StatusCode() != http.StatusOK {
		return "", false
	}
	return string(res.Body()), true
}

// IsValid reports whether the portal still accepts the session.
func (s *Session) IsValid(ctx context.Context) bool {
	ctx, span := tracer.Start(ctx, "IsValid")
	defer span.End()

	_, valid := s.probe(ctx)
	span.SetAttributes(attribute.Bool("valid", valid))
	return valid
}

// Fetch returns the course page, logging in again first when the session has
// expired. A failed re-login is an ErrSessionExpired wrapping the ErrLoginFailure.
func (s *Session) Fetch(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()

	body, valid := s.probe(ctx)
	if valid {
		return body, nil
	}

	s.tel.ReportDebug("session invalid, logging in again")
	err := s.Login(ctx)
	if err != nil {
		s.tel.ReportBroken(report_session_relog, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "relogin failed")
		return "", watcherr.Wrap(watcherr.ErrSessionExpired, "portal.fetch", err)
	}

	res, err := s.courseRequest(ctx).Get(s.opts.CoursePath)
	if err != nil {
		s.tel.ReportWarning(report_session_fetch, err)
		span.RecordError(err)
		return "", watcherr.Wrap(watcherr.ErrTransientNetwork, "portal.fetch", err)
	}
	switch {
	case res.StatusCode() == http.StatusNotFound,
		strings.Contains(strings.ToLower(finalURL(res)), "login"):
		return "", watcherr.New(watcherr.ErrSessionExpired, "portal.fetch", "course page rejected a fresh session")
	case res.StatusCode() != http.StatusOK:
		s.tel.ReportWarning(report_session_fetch, "unexpected status", res.StatusCode())
		return "", statusError("portal.fetch", res)
	}
	return string(res.Body()), nil
}
