package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	errs "igmonitor/pkg/errors"
	"igmonitor/pkg/logger"
)

// VersionInfo is the payload of the DevTools /json/version endpoint
type VersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion      string `json:"Protocol-Version"`
	UserAgent            string `json:"User-Agent"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

const discoveryTimeout = 5 * time.Second

// Discover asks the remote-debugging endpoint for its browser websocket URL.
// Every failure is a connection error.
func Discover(ctx context.Context, endpoint string, client *http.Client, log logger.Logger) (*VersionInfo, error) {
	if client == nil {
		client = &http.Client{Timeout: discoveryTimeout}
	}
	if log == nil {
		log = logger.GetLogger()
	}

	url := strings.TrimRight(endpoint, "/") + "/json/version"
	fail := func(err error) error {
		return errs.New(errs.ErrorTypeConnection, "discover browser", err).WithURL(url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fail(fmt.Errorf("failed to create request: %w", err))
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.DebugWithFields("DevTools endpoint unreachable", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		return nil, fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fail(fmt.Errorf("endpoint returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fail(fmt.Errorf("failed to read response body: %w", err))
	}

	var info VersionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}
		log.WarnWithFields("failed to parse DevTools version response", map[string]interface{}{
			"url":          url,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return nil, fail(fmt.Errorf("failed to parse JSON: %w", err))
	}
	if info.WebSocketDebuggerURL == "" {
		return nil, fail(fmt.Errorf("response has no webSocketDebuggerUrl"))
	}

	log.DebugWithFields("DevTools endpoint found", map[string]interface{}{
		"url":         url,
		"browser":     info.Browser,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return &info, nil
}
