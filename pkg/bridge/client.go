package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/anandukch/localtoolbox/pkg/errmodel"
	"github.com/anandukch/localtoolbox/pkg/setup"
	"github.com/anandukch/localtoolbox/pkg/tool"
)

// Client is a thin HTTP client for the bridge API, for UI-side consumers and
// tests. Errors from the daemon decode back into *errmodel.Error, so callers
// keep the tool-failure/infra-error distinction.
type Client struct {
	base string
	hc   *http.Client
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// NewClient creates a client for a bridge at base, e.g. "http://127.0.0.1:8080".
func NewClient(base string, opts ...ClientOption) *Client {
	c := &Client{base: base, hc: http.DefaultClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tools lists the registered tools.
func (c *Client) Tools(ctx context.Context) ([]ToolInfo, error) {
	var out struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := c.get(ctx, "/api/tools", &out); err != nil {
		return nil, err
	}
	return out.Tools, nil
}

// Invoke runs a tool and returns its result. A success=false result is
// returned without error; infra failures come back as *errmodel.Error.
func (c *Client) Invoke(ctx context.Context, toolID string, params map[string]any) (tool.Result, error) {
	body, err := json.Marshal(map[string]any{"parameters": params})
	if err != nil {
		return tool.Result{}, fmt.Errorf("encode parameters: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.base+"/api/tools/"+url.PathEscape(toolID)+"/invoke", bytes.NewReader(body))
	if err != nil {
		return tool.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return tool.Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return tool.Result{}, decodeEnvelope(resp)
	}
	var res tool.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return tool.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

// Setup fetches the environment probe status.
func (c *Client) Setup(ctx context.Context) (setup.Status, error) {
	var st setup.Status
	if err := c.get(ctx, "/api/setup", &st); err != nil {
		return setup.Status{}, err
	}
	return st, nil
}

// History lists recent invocation records, optionally filtered by tool.
func (c *Client) History(ctx context.Context, toolID string, limit int) ([]HistoryView, error) {
	path := "/api/history"
	q := url.Values{}
	if toolID != "" {
		q.Set("tool", toolID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Records []HistoryView `json:"records"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeEnvelope(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeEnvelope turns a non-200 response back into a compact error.
func decodeEnvelope(resp *http.Response) error {
	var env struct {
		Error *errmodel.Error `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil && env.Error != nil {
		return env.Error
	}
	return errmodel.System("http_status", fmt.Sprintf("bridge returned status %d", resp.StatusCode), nil, nil)
}
