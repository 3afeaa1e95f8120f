package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"

	"github.com/tidwall/gjson"
	"github.com/uparkt/parkadmin/internal/common/apperrors"
)

// HTTPError represents an error response from the server with HTTP status code and message.
// 401 and 403 match apperrors.ErrUnauthorized, every other status matches
// apperrors.ErrTransport.
type HTTPError struct {
	StatusCode int    // HTTP status code of the error
	Message    string // Error message or response body
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	return e.Message
}

// Unauthorized reports whether the status is 401 or 403.
func (e *HTTPError) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case error(apperrors.ErrUnauthorized):
		return e.Unauthorized()
	case error(apperrors.ErrTransport):
		return !e.Unauthorized()
	}
	return false
}

func newHTTPError(status int, body []byte) *HTTPError {
	msg := gjson.GetBytes(body, "message").String()
	if msg == "" {
		msg = gjson.GetBytes(body, "error").String()
	}
	if msg == "" {
		if status == http.StatusNotFound {
			msg = "server doesn't implement this endpoint"
		} else {
			msg = fmt.Sprintf("%d %s", status, http.StatusText(status))
		}
	}
	return &HTTPError{StatusCode: status, Message: msg}
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	var ae apperrors.Error
	if errors.As(err, &ae) {
		return ae.StatusCode()
	}
	return 0
}

// Client sends requests to one API origin under a fixed path prefix.
type Client struct {
	name    string
	baseURL *url.URL
	prefix  string
	doer    Doer
}

// NewClient creates a client for baseURL. Every request path is joined to prefix.
func NewClient(name, baseURL, prefix string, doer Doer) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil, apperrors.ErrInvalidConfig.Msg("invalid server URL: " + baseURL)
	}
	return &Client{
		name:    name,
		baseURL: u,
		prefix:  prefix,
		doer:    doer,
	}, nil
}

// Name returns the client name used in logs and metrics.
func (c *Client) Name() string {
	return c.name
}

// RequestOptions contains options for making HTTP requests.
type RequestOptions struct {
	Method      string            // HTTP method (GET, POST, PUT, DELETE)
	Path        string            // API endpoint path below the prefix
	QueryParams map[string]string // Optional query parameters
	Body        []byte            // Optional request body
	ContentType string            // Defaults to application/json when Body is set
}

// URL renders the absolute URL for opts.
func (c *Client) URL(opts RequestOptions) string {
	u := *c.baseURL
	u.Path = path.Join("/", u.Path, c.prefix, opts.Path)
	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// DoRequest makes an HTTP request with the given options and returns the response
// body. Responses with status >= 400 are returned as *HTTPError.
func (c *Client) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error) {
	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, opts.Method, c.URL(opts), body)
	if err != nil {
		return nil, apperrors.ErrTransport.MsgErr("failed to create request", err)
	}
	if opts.Body != nil {
		ct := opts.ContentType
		if ct == "" {
			ct = "application/json"
		}
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.doer.Do(req)
	if err != nil {
		var ae apperrors.Error
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, apperrors.ErrTransport.MsgErr("request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.ErrTransport.MsgErr("failed to read response body", err)
	}
	if resp.StatusCode >= 400 {
		return nil, newHTTPError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string, query map[string]string) ([]byte, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodGet,
		Path:        path,
		QueryParams: query,
	})
}

// Post issues a POST request with a JSON body. A nil body sends "{}".
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	if body == nil {
		body = []byte("{}")
	}
	return c.DoRequest(ctx, RequestOptions{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method: http.MethodPut,
		Path:   path,
		Body:   body,
	})
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) ([]byte, error) {
	return c.DoRequest(ctx, RequestOptions{
		Method: http.MethodDelete,
		Path:   path,
	})
}

// File is one part of a multipart upload.
type File struct {
	Name string
	Data []byte
}

// Upload posts files as a multipart form, every file under the same field name.
func (c *Client) Upload(ctx context.Context, path, field string, files []File) ([]byte, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile(field, f.Name)
		if err != nil {
			return nil, apperrors.ErrTransport.MsgErr("failed to build upload", err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, apperrors.ErrTransport.MsgErr("failed to build upload", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, apperrors.ErrTransport.MsgErr("failed to build upload", err)
	}
	return c.DoRequest(ctx, RequestOptions{
		Method:      http.MethodPost,
		Path:        path,
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
	})
}
