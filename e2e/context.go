// Package e2e drives a running rollcall server through its HTTP API.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext holds the HTTP client and per-scenario state shared by steps.
type TestContext struct {
	BaseURL    string
	StaffToken string
	client     *http.Client

	lastStatus int
	lastBody   []byte
	values     map[string]string
}

func NewTestContext(baseURL, staffToken string) *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		StaffToken: staffToken,
		client:     &http.Client{Timeout: 10 * time.Second},
		values:     make(map[string]string),
	}
}

// Reset clears scenario state.
func (tc *TestContext) Reset() {
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.values = make(map[string]string)
}

func (tc *TestContext) do(ctx context.Context, method, path string, body any, staff bool) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, tc.BaseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "rollcall-e2e")
	if staff && tc.StaffToken != "" {
		req.Header.Set("X-Staff-Token", tc.StaffToken)
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GET(ctx context.Context, path string, staff bool) error {
	return tc.do(ctx, http.MethodGet, path, nil, staff)
}

func (tc *TestContext) POST(ctx context.Context, path string, body any, staff bool) error {
	return tc.do(ctx, http.MethodPost, path, body, staff)
}

func (tc *TestContext) PUT(ctx context.Context, path string, body any, staff bool) error {
	return tc.do(ctx, http.MethodPut, path, body, staff)
}

func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }

func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

// GetResponseField walks a dotted path through the last JSON body.
func (tc *TestContext) GetResponseField(path string) (any, error) {
	var cur any
	if err := json.Unmarshal(tc.lastBody, &cur); err != nil {
		return nil, fmt.Errorf("decode response: %w (body %q)", err, tc.lastBody)
	}
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: not an object", path)
		}
		if cur, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %q missing in %s", path, tc.lastBody)
		}
	}
	return cur, nil
}

func (tc *TestContext) Remember(key, value string) { tc.values[key] = value }

func (tc *TestContext) Recall(key string) string { return tc.values[key] }
