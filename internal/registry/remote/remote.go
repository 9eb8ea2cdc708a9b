// Package remote implements registry.Store over HTTP: the client the
// Storage Node uses to announce itself at startup, and the Client
// Session uses to resolve endpoints.
package remote

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/registry"
)

// Client is an HTTP client implementing registry.Store against a single
// Directory Registry endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ registry.Store = (*Client)(nil)

// New returns a Client talking to the registry at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, dfserr.NewTransportError(err.Error())
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dfserr.NewTransportError(err.Error())
	}
	return resp, nil
}

func (c *Client) Lookup(ctx context.Context, filePath string) (registry.Endpoint, error) {
	resp, err := c.do(ctx, http.MethodGet, filePath, nil, "")
	if err != nil {
		return registry.Endpoint{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return registry.Endpoint{}, dfserr.NewNotFoundError(filePath)
	}
	body, _ := io.ReadAll(resp.Body)
	return registry.ParseEndpoint(strings.TrimSpace(string(body)))
}

func (c *Client) List(ctx context.Context) ([]registry.DirEntry, error) {
	resp, err := c.do(ctx, http.MethodGet, "/", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var out []registry.DirEntry
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		ep, err := registry.ParseEndpoint(parts[1])
		if err != nil {
			continue
		}
		out = append(out, registry.DirEntry{Directory: parts[0], Endpoint: ep})
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, dir string, ep registry.Endpoint) error {
	form := url.Values{"srv": {ep.String()}}
	resp, err := c.do(ctx, http.MethodPost, dir, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return dfserr.NewBadRequestError("register " + dir)
	}
	return nil
}

func (c *Client) RegisterBatch(ctx context.Context, dirs []string, ep registry.Endpoint) error {
	form := url.Values{
		"srv":  {ep.String()},
		"dirs": {strings.Join(dirs, "\n")},
	}
	resp, err := c.do(ctx, http.MethodPost, "/", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return dfserr.NewBadRequestError("register batch")
	}
	return nil
}

func (c *Client) Deregister(ctx context.Context, dir string, ep registry.Endpoint) error {
	form := url.Values{"srv": {ep.String()}}
	resp, err := c.do(ctx, http.MethodDelete, dir, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (c *Client) Close() error { return nil }
