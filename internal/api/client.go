package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "FSTORE_HTTP_TIMEOUT"
	userIDEnvKey       = "FSTORE_USER"
	adminTokenEnvKey   = "FSTORE_ADMIN_TOKEN"

	userIDHeader = "X-User-Id"
)

// Client is a simple HTTP client for the fstore API.
type Client struct {
	baseURL    string
	http       *http.Client
	stream     *http.Client
	userID     string
	adminToken string
}

// NewClient creates a new API client. The caller identity and admin token
// default to FSTORE_USER and FSTORE_ADMIN_TOKEN.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
		// uploads and downloads may run for as long as the payload needs
		stream:     &http.Client{},
		userID:     strings.TrimSpace(os.Getenv(userIDEnvKey)),
		adminToken: strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
	}
}

// WithUserID returns a copy of c acting as userID. Empty means anonymous.
func (c *Client) WithUserID(userID string) *Client {
	clone := *c
	clone.userID = strings.TrimSpace(userID)
	return &clone
}

// WithAdminToken returns a copy of c presenting token on admin routes.
func (c *Client) WithAdminToken(token string) *Client {
	clone := *c
	clone.adminToken = strings.TrimSpace(token)
	return &clone
}

// UserID reports the identity the client sends.
func (c *Client) UserID() string {
	return c.userID
}

// Health checks whether the API server is reachable.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, nil, &resp)
	return resp, err
}

// UploadRequest carries upload metadata sent alongside the content.
type UploadRequest struct {
	Filename    string
	ContentType string
	Visibility  string
	Tags        []string
}

// Upload streams content as a multipart form without buffering it.
func (c *Client) Upload(ctx context.Context, req UploadRequest, content io.Reader) (FileResponse, error) {
	var resp FileResponse
	query := url.Values{}
	if req.Visibility != "" {
		query.Set("visibility", req.Visibility)
	}
	for _, tag := range req.Tags {
		query.Add("tags", tag)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, req, content))
	}()

	endpoint := c.baseURL + "/v1/files/upload"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, pr)
	if err != nil {
		pr.Close()
		return resp, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())
	c.setUserHeader(httpReq)

	httpResp, err := c.stream.Do(httpReq)
	if err != nil {
		pr.Close()
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func writeUploadForm(mw *multipart.Writer, req UploadRequest, content io.Reader) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
		"name":     "file",
		"filename": req.Filename,
	}))
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

// ListQuery selects one listing page. Zero values use server defaults.
type ListQuery struct {
	Visibility string
	Tag        string
	SortBy     string
	Direction  string
	Page       int
	Size       int
}

func (q ListQuery) values() url.Values {
	values := url.Values{}
	if q.Visibility != "" {
		values.Set("visibility", q.Visibility)
	}
	if q.Tag != "" {
		values.Set("tag", q.Tag)
	}
	if q.SortBy != "" {
		values.Set("sortBy", q.SortBy)
	}
	if q.Direction != "" {
		values.Set("direction", q.Direction)
	}
	if q.Page > 0 {
		values.Set("page", strconv.Itoa(q.Page))
	}
	if q.Size > 0 {
		values.Set("size", strconv.Itoa(q.Size))
	}
	return values
}

func (c *Client) List(ctx context.Context, query ListQuery) (ListResponse, error) {
	var resp ListResponse
	err := c.do(ctx, http.MethodGet, "/v1/files", query.values(), nil, &resp)
	return resp, err
}

func (c *Client) ListPublic(ctx context.Context) ([]FileResponse, error) {
	var resp []FileResponse
	err := c.do(ctx, http.MethodGet, "/v1/files/public", nil, nil, &resp)
	return resp, err
}

func (c *Client) Rename(ctx context.Context, id, filename string) (FileResponse, error) {
	var resp FileResponse
	err := c.do(ctx, http.MethodPatch, "/v1/files/"+url.PathEscape(id)+"/rename", nil, RenameRequest{Filename: filename}, &resp)
	return resp, err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/files/"+url.PathEscape(id), nil, nil, nil)
}

// Download is an open download stream. Callers must close Body.
type Download struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
	SizeBytes   int64
}

// Download resolves a public token to its content stream.
func (c *Client) Download(ctx context.Context, token string) (*Download, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/files/download/"+url.PathEscape(token), nil)
	if err != nil {
		return nil, err
	}
	c.setUserHeader(httpReq)

	httpResp, err := c.stream.Do(httpReq)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode >= 400 {
		defer httpResp.Body.Close()
		return nil, decodeError(httpResp)
	}

	download := &Download{
		Body:        httpResp.Body,
		ContentType: httpResp.Header.Get("Content-Type"),
		SizeBytes:   httpResp.ContentLength,
	}
	if _, params, err := mime.ParseMediaType(httpResp.Header.Get("Content-Disposition")); err == nil {
		download.Filename = params["filename"]
	}
	return download, nil
}

// GC triggers blob garbage collection. Non-dry runs require confirm.
func (c *Client) GC(ctx context.Context, req GCRequest, confirm bool) (GCResponse, error) {
	var resp GCResponse
	payload, err := json.Marshal(req)
	if err != nil {
		return resp, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/admin/gc", bytes.NewReader(payload))
	if err != nil {
		return resp, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if confirm {
		httpReq.Header.Set("X-Confirm", "true")
	}
	c.setAdminHeader(httpReq)
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setUserHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setUserHeader(req *http.Request) {
	if c.userID == "" || req == nil {
		return
	}
	req.Header.Set(userIDHeader, c.userID)
}

func (c *Client) setAdminHeader(req *http.Request) {
	if c.adminToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.adminToken)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
