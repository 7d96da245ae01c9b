package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmonitor/pkg/config"
	errs "igmonitor/pkg/errors"
	"igmonitor/pkg/extract"
	"igmonitor/pkg/logger"
)

func versionServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json/version" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func configFor(t *testing.T, endpoint string) *config.Config {
	t.Helper()
	u, err := url.Parse(endpoint)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Browser.Scheme = u.Scheme
	cfg.Browser.Host = u.Hostname()
	cfg.Browser.Port = port
	cfg.Browser.LaunchIfUnavailable = false
	cfg.Browser.ConnectTimeout = 2 * time.Second
	return cfg
}

func TestDiscover(t *testing.T) {
	srv := versionServer(t, http.StatusOK, `{
		"Browser": "Chrome/124.0.6367.91",
		"Protocol-Version": "1.3",
		"webSocketDebuggerUrl": "ws://127.0.0.1:9222/devtools/browser/abc"
	}`)

	info, err := Discover(context.Background(), srv.URL+"/", nil, logger.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, "Chrome/124.0.6367.91", info.Browser)
	assert.Equal(t, "1.3", info.ProtocolVersion)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", info.WebSocketDebuggerURL)
}

func TestDiscoverFailures(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name     string
		endpoint string
		contains string
	}{
		{"unreachable", closedURL, "discover browser"},
		{"bad status", versionServer(t, http.StatusInternalServerError, "").URL, "status 500"},
		{"bad json", versionServer(t, http.StatusOK, "<html>").URL, "failed to parse JSON"},
		{"no websocket url", versionServer(t, http.StatusOK, `{"Browser":"x"}`).URL, "no webSocketDebuggerUrl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.NewTestLogger()
			_, err := Discover(context.Background(), tt.endpoint, nil, log)
			require.Error(t, err)
			assert.True(t, errs.IsFatal(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestDiscoverLogsBodyPreview(t *testing.T) {
	srv := versionServer(t, http.StatusOK, strings.Repeat("x", 500))
	log := logger.NewTestLogger()

	_, err := Discover(context.Background(), srv.URL, nil, log)
	require.Error(t, err)

	warns := log.GetMessagesByLevel("WARN")
	require.Len(t, warns, 1)
	preview, _ := warns[0].Fields["body_preview"].(string)
	assert.Len(t, preview, 203)
}

func TestConnectWithoutLaunchFails(t *testing.T) {
	closed := httptest.NewServer(http.NotFoundHandler())
	cfg := configFor(t, closed.URL)
	closed.Close()

	b := New(cfg, WithLogger(logger.NewNopLogger()))
	err := b.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.False(t, b.Launched())
	assert.Nil(t, b.Version())
}

func TestConnectBadWebsocketFails(t *testing.T) {
	srv := versionServer(t, http.StatusOK, `{"webSocketDebuggerUrl": "ws://127.0.0.1:1/devtools/browser/none"}`)
	cfg := configFor(t, srv.URL)

	b := New(cfg, WithLogger(logger.NewNopLogger()))
	defer b.Close()

	err := b.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.Contains(t, err.Error(), "attach browser")
}

func TestOpenBeforeConnect(t *testing.T) {
	b := New(config.DefaultConfig(), WithLogger(logger.NewNopLogger()))

	page, err := b.Open(context.Background(), "https://www.instagram.com/nasa/", KindProfile)
	assert.Nil(t, page)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.True(t, errs.IsFatal(err))
	assert.NoError(t, b.Close())
}

func TestEndpoint(t *testing.T) {
	b := New(config.DefaultConfig())
	assert.Equal(t, "http://localhost:9222", b.Endpoint())
}

func TestClassify(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	live := context.Background()

	err := classify(live, expired, context.DeadlineExceeded, "https://x/p/1", false)
	assert.Equal(t, errs.ErrorTypePageTimeout, errs.TypeOf(err))

	err = classify(live, live, errors.New("net::ERR_CONNECTION_RESET"), "https://x/p/1", false)
	assert.Equal(t, errs.ErrorTypeNavigation, errs.TypeOf(err))
	assert.Contains(t, err.Error(), "https://x/p/1")

	cancelled, stop := context.WithCancel(context.Background())
	stop()
	err = classify(cancelled, cancelled, errors.New("anything"), "https://x/p/1", true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClassifyLostBrowserIsFatal(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	err := classify(context.Background(), expired, context.DeadlineExceeded, "https://x/p/1", true)
	assert.Equal(t, errs.ErrorTypeConnection, errs.TypeOf(err))
	assert.True(t, errs.IsFatal(err))
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDisconnected(t *testing.T) {
	assert.False(t, disconnected(context.Background()))
	assert.Nil(t, lostConnection(context.Background()))

	gone, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, disconnected(gone))
}

func TestOpenAfterBrowserWentAway(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Instagram.NavigationAttempts = 3
	b := New(cfg, WithLogger(logger.NewNopLogger()))

	tab, cancel := context.WithCancel(context.Background())
	cancel()
	b.tab = tab

	start := time.Now()
	page, err := b.Open(context.Background(), "https://www.instagram.com/p/AAA/", KindPost)
	assert.Nil(t, page)
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.ErrorIs(t, err, ErrConnectionLost)
	assert.Less(t, time.Since(start), time.Second, "a lost browser must not be retried")
}

func TestKeepScrolling(t *testing.T) {
	tests := []struct {
		name               string
		prev, count, limit int
		want               bool
	}{
		{"first step", -1, 0, 12, true},
		{"grid growing", 12, 24, 50, true},
		{"limit reached", 12, 50, 50, false},
		{"past limit", -1, 60, 50, false},
		{"stopped growing", 24, 24, 50, false},
		{"no limit keeps going while growing", 24, 36, 0, true},
		{"no limit stops when flat", 36, 36, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, keepScrolling(tt.prev, tt.count, tt.limit))
		})
	}
}

func TestPageDocument(t *testing.T) {
	p := &Page{URL: "https://x/nasa/", HTML: `<html><body><a href="/p/AAA/">post</a></body></html>`}
	doc, err := p.Document()
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("a").Length())
}

func TestConsentScript(t *testing.T) {
	script := consentScript(extract.ConsentButtonLabels)
	assert.Contains(t, script, `["Only allow essential","Allow all","Accept all","Accept"]`)
	assert.True(t, strings.HasPrefix(script, "(() =>"))
}

func TestKillCommand(t *testing.T) {
	bin, args := killCommand("linux", "brave")
	assert.Equal(t, "pkill", bin)
	assert.Equal(t, []string{"-f", "brave"}, args)

	bin, args = killCommand("windows", "brave")
	assert.Equal(t, "taskkill", bin)
	assert.Equal(t, []string{"/f", "/im", "brave.exe"}, args)

	_, args = killCommand("windows", "Chrome.EXE")
	assert.Equal(t, "Chrome.EXE", args[2])
}

func TestProcessName(t *testing.T) {
	assert.Equal(t, "", processName(""))
	assert.Equal(t, "brave-browser", processName("/usr/bin/brave-browser"))
	assert.Equal(t, "chrome", processName("chrome"))
}

func TestLaunchOptions(t *testing.T) {
	cfg := config.DefaultConfig().Browser
	base := len(launchOptions(cfg))

	cfg.ExecPath = "/usr/bin/chromium"
	cfg.UserDataDir = t.TempDir()
	assert.Equal(t, base+2, len(launchOptions(cfg)))
}
