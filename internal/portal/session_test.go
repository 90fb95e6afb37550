package portal

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gradewatch/internal/components/retry"
	"gradewatch/internal/components/telemetry"
	"gradewatch/internal/watcherr"

	"github.com/stretchr/testify/require"
)

const loginPage = `<html><body><form method="post" action="./Login.aspx">
<input type="hidden" name="__VIEWSTATE" value="vs-token" />
<input type="hidden" name="__EVENTVALIDATION" value="ev-token" />
<input name="ctl00$logMain$UserName" type="text" />
<input name="ctl00$logMain$Password" type="password" />
<input type="submit" name="ctl00$logMain$Button1" value="Sign In" />
</form></body></html>`

const landingPage = `<html><body>
<a href="../Student/StudentCourseHistory.aspx?mmi=abc123">Course History</a>
<a href="../Security/Logout.aspx">Logout</a>
</body></html>`

const coursePage = `<html><body><table id="ctl00_MainContainer_gvRegisteredCourse">
<tr><th>Course ID</th><th>Course Name</th></tr>
<tr><td>CSE101</td><td>Intro</td></tr>
</table></body></html>`

// fakePortal mimics the ASP.NET login flow: hidden fields must be echoed back
// and the course page redirects to the login page without a live session.
type fakePortal struct {
	mu       sync.Mutex
	password string
	sessions map[string]bool
	logins   int
	next     int
	lastForm map[string]string
}

func newFakePortal(password string) (*fakePortal, *httptest.Server) {
	f := &fakePortal{password: password, sessions: map[string]bool{}}
	mux := http.NewServeMux()
	mux.HandleFunc(LoginPath, f.handleLogin)
	mux.HandleFunc(CourseHistoryPath, f.handleCourses)
	return f, httptest.NewServer(mux)
}

func (f *fakePortal) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Method == http.MethodGet {
		fmt.Fprint(w, loginPage)
		return
	}
	_ = r.ParseForm()
	f.logins++
	f.lastForm = map[string]string{}
	for k := range r.PostForm {
		f.lastForm[k] = r.PostForm.Get(k)
	}
	if r.PostForm.Get("__VIEWSTATE") != "vs-token" ||
		r.PostForm.Get("ctl00$logMain$UserName") != "011201001" ||
		r.PostForm.Get("ctl00$logMain$Password") != f.password {
		fmt.Fprint(w, loginPage)
		return
	}
	f.next++
	id := fmt.Sprintf("session-%d", f.next)
	f.sessions[id] = true
	http.SetCookie(w, &http.Cookie{Name: "ASP.NET_SessionId", Value: id, Path: "/"})
	fmt.Fprint(w, landingPage)
}

func (f *fakePortal) handleCourses(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	cookie, err := r.Cookie("ASP.NET_SessionId")
	if err != nil || !f.sessions[cookie.Value] || r.URL.Query().Get("mmi") != "abc123" {
		http.Redirect(w, r, LoginPath+"?ReturnUrl=%2fStudent", http.StatusFound)
		return
	}
	fmt.Fprint(w, coursePage)
}

func (f *fakePortal) expireAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = map[string]bool{}
}

func (f *fakePortal) setPassword(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.password = p
}

func (f *fakePortal) formValue(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm[key]
}

func (f *fakePortal) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func newTestSession(t *testing.T, baseUrl, password string) (*Session, *telemetry.RecordingAPI) {
	tel := &telemetry.RecordingAPI{}
	s, err := NewSession(Options{
		BaseURL:           baseUrl,
		UserID:            "011201001",
		Password:          password,
		RequestsPerSecond: 1000,
		Retry:             retry.Policy{Attempts: 2, Delay: time.Millisecond},
	}, tel)
	require.NoError(t, err)
	return s, tel
}

func TestLoginExtractsMMI(t *testing.T) {
	fake, srv := newFakePortal("secret")
	defer srv.Close()

	s, _ := newTestSession(t, srv.URL, "secret")
	ctx := context.Background()

	require.False(t, s.IsValid(ctx))
	require.NoError(t, s.Login(ctx))
	require.Equal(t, "abc123", s.MMI())
	require.True(t, s.IsValid(ctx))

	require.Equal(t, "ev-token", fake.formValue("__EVENTVALIDATION"))
	require.Equal(t, "Sign In", fake.formValue("ctl00$logMain$Button1"))
}

func TestFetchReloginIsTransparent(t *testing.T) {
	fake, srv := newFakePortal("secret")
	defer srv.Close()

	s, _ := newTestSession(t, srv.URL, "secret")
	ctx := context.Background()
	require.NoError(t, s.Login(ctx))

	page, err := s.Fetch(ctx)
	require.NoError(t, err)
	require.Contains(t, page, "CSE101")
	require.Equal(t, 1, fake.loginCount())

	fake.expireAll()
	page, err = s.Fetch(ctx)
	require.NoError(t, err)
	require.Contains(t, page, "CSE101")
	require.Equal(t, 2, fake.loginCount())
}

func TestFetchWithoutPriorLogin(t *testing.T) {
	fake, srv := newFakePortal("secret")
	defer srv.Close()

	s, _ := newTestSession(t, srv.URL, "secret")
	page, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Contains(t, page, "ctl00_MainContainer_gvRegisteredCourse")
	require.Equal(t, 1, fake.loginCount())
}

func TestLoginFailureAfterRetries(t *testing.T) {
	fake, srv := newFakePortal("secret")
	defer srv.Close()

	s, tel := newTestSession(t, srv.URL, "wrong")
	err := s.Login(context.Background())
	require.ErrorIs(t, err, watcherr.ErrLoginFailure)
	require.Equal(t, 2, fake.loginCount())
	require.Len(t, tel.Find("warning", report_session_login), 1)
	require.Len(t, tel.Find("broken", report_session_login), 1)
}

func TestFetchReloginFailureIsSessionExpired(t *testing.T) {
	fake, srv := newFakePortal("secret")
	defer srv.Close()

	s, _ := newTestSession(t, srv.URL, "secret")
	ctx := context.Background()
	require.NoError(t, s.Login(ctx))

	fake.expireAll()
	fake.setPassword("rotated")

	_, err := s.Fetch(ctx)
	require.ErrorIs(t, err, watcherr.ErrSessionExpired)
	require.ErrorIs(t, err, watcherr.ErrLoginFailure)
}

func TestFetchTransientNetwork(t *testing.T) {
	_, srv := newFakePortal("secret")
	s, _ := newTestSession(t, srv.URL, "secret")
	require.NoError(t, s.Login(context.Background()))
	srv.Close()

	_, err := s.Fetch(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, watcherr.ErrSessionExpired)
	require.ErrorIs(t, err, watcherr.ErrTransientNetwork)
}
