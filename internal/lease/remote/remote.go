// Package remote implements lease.Manager over HTTP, the client the
// Storage Node uses to delegate lease validation to the Lease Manager
// process (the node trusts the Lease Manager's verdict outright) and the
// basis of pkg/dfsclient's own lease calls.
package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/lease"
)

// Client is an HTTP client implementing lease.Manager against a single
// Lease Manager endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

var _ lease.Manager = (*Client)(nil)

// New returns a Client talking to the Lease Manager at baseURL (e.g.
// "http://host:port").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewWithTimeout is like New but overrides the per-request deadline.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	c := New(baseURL)
	c.httpClient.Timeout = timeout
	return c
}

func (c *Client) url(path string) string {
	return c.baseURL + path
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
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

func (c *Client) Check(ctx context.Context, path string, id *lease.ID) error {
	target := path
	if id != nil {
		target += "?lock_id=" + strconv.FormatUint(uint64(*id), 10)
	}
	resp, err := c.do(ctx, http.MethodGet, target, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	return dfserr.NewConflictError(path)
}

func (c *Client) Grant(ctx context.Context, path string) (lease.ID, error) {
	resp, err := c.do(ctx, http.MethodPost, path, nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return 0, dfserr.NewUnauthorizedError(path)
	}
	id, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, dfserr.NewTransportError("malformed lease id in response: " + err.Error())
	}
	return lease.ID(id), nil
}

func (c *Client) GrantBatch(ctx context.Context, paths []string) (map[string]lease.ID, error) {
	body := strings.NewReader(strings.Join(paths, "\n"))
	resp, err := c.do(ctx, http.MethodPost, "/", body, "text/plain")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, dfserr.NewUnauthorizedError("batch grant")
	}

	out := make(map[string]lease.ID)
	for _, line := range strings.Split(strings.TrimSpace(string(respBody)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, dfserr.NewTransportError("malformed batch response: " + err.Error())
		}
		out[parts[0]] = lease.ID(id)
	}
	return out, nil
}

func (c *Client) Revoke(ctx context.Context, path string, id lease.ID) error {
	target := path + "?lock_id=" + strconv.FormatUint(uint64(id), 10)
	resp, err := c.do(ctx, http.MethodDelete, target, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Revoke is idempotent by contract; any non-transport response is treated as success.
	return nil
}

func (c *Client) RevokeBatch(ctx context.Context, paths []string, ids []lease.ID) error {
	if len(paths) != len(ids) {
		return dfserr.NewBadRequestError("filepaths and lock_ids must have equal length")
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = strconv.FormatUint(uint64(id), 10)
	}
	form := url.Values{
		"filepaths": {strings.Join(paths, "\n")},
		"lock_ids":  {strings.Join(idStrs, "\n")},
	}
	resp, err := c.do(ctx, http.MethodDelete, "/", strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (c *Client) Dump(ctx context.Context) ([]lease.Record, error) {
	resp, err := c.do(ctx, http.MethodGet, "/", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, dfserr.NewTransportError(fmt.Sprintf("unexpected status %d", resp.StatusCode))
	}

	var out []lease.Record
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		ts := strings.SplitN(parts[1], ",", 2)
		if len(ts) != 2 {
			continue
		}
		granted, err1 := time.Parse(time.RFC3339Nano, ts[0])
		lastUsed, err2 := time.Parse(time.RFC3339Nano, ts[1])
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, lease.Record{Path: parts[0], GrantedAt: granted, LastUsedAt: lastUsed})
	}
	return out, nil
}

func (c *Client) Close() error { return nil }
