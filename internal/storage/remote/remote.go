// Package remote implements an HTTP client against a single Storage Node,
// the transport pkg/dfsclient uses for the body-transfer leg of an open
// handle.
package remote

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/dfs/internal/dfserr"
	"github.com/marmos91/dfs/internal/lease"
)

// Client is an HTTP client implementing the Storage Node's GET/HEAD/PUT/
// DELETE verb table against a single endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client talking to the storage node at baseURL (e.g.
// "http://host:port").
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithTimeout is like New but overrides the per-request deadline.
func NewWithTimeout(baseURL string, timeout time.Duration) *Client {
	c := New(baseURL)
	c.httpClient.Timeout = timeout
	return c
}

func (c *Client) target(path string, leaseID *lease.ID) string {
	url := c.baseURL + path
	if leaseID != nil {
		url += "?lock_id=" + strconv.FormatUint(uint64(*leaseID), 10)
	}
	return url
}

func (c *Client) do(ctx context.Context, method, path string, leaseID *lease.ID, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.target(path, leaseID), body)
	if err != nil {
		return nil, dfserr.NewTransportError(err.Error())
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, dfserr.NewTransportError(err.Error())
	}
	return resp, nil
}

// errorForStatus maps a non-200 status onto the client-side error kinds.
func errorForStatus(path string, status int) error {
	switch status {
	case http.StatusNoContent:
		return dfserr.NewNoContentError(path)
	case http.StatusUnauthorized:
		return dfserr.NewUnauthorizedError(path)
	case http.StatusNotAcceptable:
		return dfserr.NewNotAcceptableError(path)
	default:
		return dfserr.NewTransportError("unexpected status " + strconv.Itoa(status))
	}
}

// Get fetches path's full contents. leaseID may be nil for an
// unauthenticated read. Returns the body, the server's Last-Modified
// token, and a *dfserr.Error of Code NoContent/Unauthorized/NotAcceptable
// on failure.
func (c *Client) Get(ctx context.Context, path string, leaseID *lease.ID) ([]byte, string, error) {
	resp, err := c.do(ctx, http.MethodGet, path, leaseID, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", errorForStatus(path, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", dfserr.NewTransportError(err.Error())
	}
	return data, resp.Header.Get("Last-Modified"), nil
}

// Head returns path's current Last-Modified token without transferring
// its body, the cache-validation primitive.
func (c *Client) Head(ctx context.Context, path string, leaseID *lease.ID) (string, error) {
	resp, err := c.do(ctx, http.MethodHead, path, leaseID, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errorForStatus(path, resp.StatusCode)
	}
	return resp.Header.Get("Last-Modified"), nil
}

// Put uploads body as path's complete new content, returning the new
// Last-Modified token.
func (c *Client) Put(ctx context.Context, path string, body io.Reader, leaseID *lease.ID) (string, error) {
	resp, err := c.do(ctx, http.MethodPut, path, leaseID, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errorForStatus(path, resp.StatusCode)
	}
	return resp.Header.Get("Last-Modified"), nil
}

// Delete removes path.
func (c *Client) Delete(ctx context.Context, path string, leaseID *lease.ID) error {
	resp, err := c.do(ctx, http.MethodDelete, path, leaseID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorForStatus(path, resp.StatusCode)
	}
	return nil
}
