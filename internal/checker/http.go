package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jiin/lookout/internal/models"
)

// maxHTTPTimeout is a hard ceiling so a slow endpoint cannot stall the
// whole check round.
const maxHTTPTimeout = 3 * time.Second

// contentPeekBytes caps how much of a response body is read when
// matching expected content.
const contentPeekBytes = 200

// HTTPChecker probes a web endpoint. It uses HEAD unless expected
// content is configured, in which case it issues a GET and inspects the
// first bytes of the body.
type HTTPChecker struct {
	name    string
	url     string
	params  models.HTTPParams
	headers map[string]string
	client  *http.Client
}

func NewHTTPChecker(t models.Target, timeout time.Duration) *HTTPChecker {
	if timeout > maxHTTPTimeout {
		timeout = maxHTTPTimeout
	}

	var params models.HTTPParams
	if t.HTTP != nil {
		params = *t.HTTP
	}

	return &HTTPChecker{
		name:    t.Name,
		url:     buildURL(t.Host, params),
		params:  params,
		headers: params.Headers,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DisableKeepAlives: true,
			},
			// Redirect statuses are part of the expected-code set, so
			// report them instead of following.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// buildURL infers https for port 443 and any port ending in 443
// (8443, 9443 and friends).
func buildURL(host string, params models.HTTPParams) string {
	port := params.Port
	if port <= 0 {
		port = 80
	}

	scheme := "http"
	if strings.HasSuffix(strconv.Itoa(port), "443") {
		scheme = "https"
	}

	endpoint := params.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}

	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s%s", scheme, host, endpoint)
	}
	return fmt.Sprintf("%s://%s:%d%s", scheme, host, port, endpoint)
}

func (c *HTTPChecker) Name() string {
	return c.name
}

func (c *HTTPChecker) URL() string {
	return c.url
}

func (c *HTTPChecker) Check(ctx context.Context) *models.CheckResult {
	method := http.MethodHead
	if c.params.ExpectedContent != "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url, nil)
	if err != nil {
		return failure(fmt.Sprintf("Invalid URL: %v", err), 0)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return failure(classifyNetErr(err), latency)
	}
	defer resp.Body.Close()

	result := &models.CheckResult{
		LatencyMs:  latency.Milliseconds(),
		StatusCode: resp.StatusCode,
		Details:    map[string]any{"url": c.url, "status_code": resp.StatusCode},
	}

	if !statusExpected(resp.StatusCode, c.params.ExpectedCodes()) {
		result.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		return result
	}

	if c.params.ExpectedContent != "" {
		peek, err := io.ReadAll(io.LimitReader(resp.Body, contentPeekBytes))
		if err != nil {
			result.Message = fmt.Sprintf("Read failed: %v", err)
			return result
		}
		if !strings.Contains(string(peek), c.params.ExpectedContent) {
			result.Message = fmt.Sprintf("Content mismatch (expected %q)", c.params.ExpectedContent)
			return result
		}
	}

	result.Healthy = true
	result.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	return result
}

func statusExpected(code int, expected []int) bool {
	for _, e := range expected {
		if code == e {
			return true
		}
	}
	return false
}
