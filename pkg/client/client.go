// Package client is the Go client of a vlogclip server, used by the vlogclip
// CLI. Its requests and results are the server's own wire types from
// internal/appcore and internal/dto, so it is only importable from inside
// this module.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"vlogclip/internal/appcore"
	"vlogclip/internal/dto"
	"vlogclip/internal/response"
	apperrors "vlogclip/pkg/errors"
	"vlogclip/pkg/util"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
)

// Client talks to a vlogclip server over its HTTP API.
type Client struct {
	http    *resty.Client
	baseURL string
	dialer  *websocket.Dialer
}

type Option func(*Client)

// WithTimeout bounds every request. Synchronous generate calls can take
// minutes, so there is no timeout by default.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc).SetBaseURL(c.baseURL).SetHeader("Accept", "application/json")
	}
}

func WithProxy(proxy string) Option {
	return func(c *Client) {
		if proxy != "" {
			c.http.SetProxy(proxy)
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	c := &Client{
		http:    resty.New().SetBaseURL(baseURL).SetHeader("Accept", "application/json"),
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate runs one video and waits for its clips.
func (c *Client) Generate(ctx context.Context, req dto.GenerateReq) (*dto.GenerateRes, error) {
	var out dto.GenerateRes
	if err := c.do(ctx, http.MethodPost, "/api/generate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateBatch runs a batch and waits for the report.
func (c *Client) GenerateBatch(ctx context.Context, req dto.GenerateBatchReq) (*dto.GenerateBatchRes, error) {
	var out dto.GenerateBatchRes
	if err := c.do(ctx, http.MethodPost, "/api/generate/batch", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartJob submits a job and returns without waiting for it.
func (c *Client) StartJob(ctx context.Context, req dto.StartJobReq) (*dto.StartJobRes, error) {
	var out dto.StartJobRes
	if err := c.do(ctx, http.MethodPost, "/api/jobs", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetJob(ctx context.Context, jobID string) (*dto.JobRes, error) {
	var out dto.JobRes
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(jobID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelJob(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodDelete, "/api/jobs/"+url.PathEscape(jobID), nil, nil)
}

// Progress returns the snapshot of jobID, or of the latest job when jobID is empty.
func (c *Client) Progress(ctx context.Context, jobID string) (appcore.Snapshot, error) {
	var snap appcore.Snapshot
	path := "/api/progress"
	if jobID != "" {
		path += "?jobId=" + url.QueryEscape(jobID)
	}
	err := c.do(ctx, http.MethodGet, path, nil, &snap)
	return snap, err
}

func (c *Client) LastClips(ctx context.Context, limit int) (*dto.LastClipsRes, error) {
	var out dto.LastClipsRes
	path := "/api/last-clips"
	if limit > 0 {
		path += fmt.Sprintf("?limit=%d", limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Health(ctx context.Context) (*dto.HealthRes, error) {
	var out dto.HealthRes
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download saves the named clip into dir and returns the written path.
func (c *Client) Download(ctx context.Context, name, dir string) (string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/api/download/" + url.PathEscape(name))
	if err != nil {
		return "", transportError(ctx, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(body, 64<<10))
		return "", decodeError(resp.StatusCode(), raw)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to create download dir", err)
	}
	dest := filepath.Join(dir, util.SanitizeFilename(filepath.Base(name)))
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to create clip file", err)
	}
	if _, err = io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", transportError(ctx, err)
	}
	if err = f.Close(); err != nil {
		os.Remove(tmp)
		return "", apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to write clip file", err)
	}
	if err = os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", apperrors.Wrap(apperrors.CodeFileWriteError, "Failed to write clip file", err)
	}
	return dest, nil
}

// Stream follows a job over its websocket and calls fn for every snapshot
// until the server closes the stream after the terminal one.
func (c *Client) Stream(ctx context.Context, jobID string, fn func(appcore.Snapshot)) error {
	wsURL, err := c.websocketURL("/api/jobs/" + url.PathEscape(jobID) + "/ws")
	if err != nil {
		return err
	}
	conn, resp, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && resp.StatusCode >= http.StatusBadRequest {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
			resp.Body.Close()
			return decodeError(resp.StatusCode, raw)
		}
		return transportError(ctx, err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var snap appcore.Snapshot
		if err := conn.ReadJSON(&snap); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return transportError(ctx, err)
		}
		fn(snap)
	}
}

func (c *Client) websocketURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeInvalidParams, "Invalid server address", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx).SetError(&response.ErrorBody{})
	if body != nil {
		req.SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return transportError(ctx, err)
	}
	if !resp.IsError() {
		return nil
	}
	if eb, ok := resp.Error().(*response.ErrorBody); ok && eb.Code != 0 {
		return apperrors.WrapWithDetail(eb.Code, eb.Error, eb.Detail, nil)
	}
	return decodeError(resp.StatusCode(), resp.Body())
}

// decodeError rebuilds the server's AppError from an error body, or a
// generic one from the status when the body is not ours.
func decodeError(status int, raw []byte) error {
	var eb response.ErrorBody
	if err := json.Unmarshal(raw, &eb); err == nil && eb.Code != 0 {
		return apperrors.WrapWithDetail(eb.Code, eb.Error, eb.Detail, nil)
	}
	code := apperrors.CodeUnknown
	switch status {
	case http.StatusNotFound:
		code = apperrors.CodeNotFound
	case http.StatusConflict:
		code = apperrors.CodeBusy
	case http.StatusBadRequest:
		code = apperrors.CodeInvalidParams
	}
	return apperrors.WrapWithDetail(code, http.StatusText(status), strings.TrimSpace(string(raw)), nil)
}

func transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return apperrors.Wrap(apperrors.CodeCancelled, "Request cancelled", ctx.Err())
	}
	return apperrors.Wrap(apperrors.CodeUnknown, "Request failed", err)
}
