// Package disk is a client for the Yandex.Disk REST API, limited to
// the surface the bot consumes.
package disk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	statusCreated  = http.StatusCreated
	statusConflict = http.StatusConflict
)

type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	baseURL    string
}

func NewClient(log *slog.Logger, baseURL string) *Client {
	return &Client{
		log:        log.With(slog.String("service", "disk")),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// CreateFolder creates every segment of a slash-delimited path in
// order, parent first. A conflict means the segment already exists and
// iteration continues. The returned code is the last segment's status.
func (c *Client) CreateFolder(ctx context.Context, accessToken, path string) (int, error) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return statusConflict, nil
	}

	lastStatus := 0
	current := ""
	for _, segment := range segments {
		if current == "" {
			current = segment
		} else {
			current = current + "/" + segment
		}
		status, err := c.putFolder(ctx, accessToken, current)
		if err != nil {
			return 0, err
		}
		lastStatus = status
	}
	return lastStatus, nil
}

func (c *Client) putFolder(ctx context.Context, accessToken, path string) (int, error) {
	query := url.Values{"path": {path}}
	resp, err := c.do(ctx, accessToken, http.MethodPut, "/resources", query)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case statusCreated, statusConflict:
		return resp.StatusCode, nil
	default:
		return 0, decodeError(resp)
	}
}

// UploadFromURL asks the API to transfer sourceURL into path
// asynchronously and returns the operation handle to poll.
func (c *Client) UploadFromURL(ctx context.Context, accessToken, path, sourceURL string) (Link, error) {
	query := url.Values{"path": {path}, "url": {sourceURL}}
	resp, err := c.do(ctx, accessToken, http.MethodPost, "/resources/upload", query)
	if err != nil {
		return Link{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return Link{}, decodeError(resp)
	}
	var link Link
	if err := json.NewDecoder(resp.Body).Decode(&link); err != nil {
		return Link{}, fmt.Errorf("decode upload link: %w", err)
	}
	return link, nil
}

// CheckOperation polls an operation handle returned by UploadFromURL.
func (c *Client) CheckOperation(ctx context.Context, accessToken string, link Link) (OperationStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link.Href, nil)
	if err != nil {
		return "", fmt.Errorf("build operation request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("check operation: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}
	var body struct {
		Status OperationStatus `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode operation status: %w", err)
	}
	return body.Status, nil
}

func (c *Client) Publish(ctx context.Context, accessToken, path string) error {
	return c.simplePut(ctx, accessToken, "/resources/publish", path)
}

func (c *Client) Unpublish(ctx context.Context, accessToken, path string) error {
	return c.simplePut(ctx, accessToken, "/resources/unpublish", path)
}

func (c *Client) simplePut(ctx context.Context, accessToken, endpoint, path string) error {
	query := url.Values{"path": {path}}
	resp, err := c.do(ctx, accessToken, http.MethodPut, endpoint, query)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// ResourceInfo fetches metadata of a stored item. previewSize may be
// empty; fields trims the response when non-empty.
func (c *Client) ResourceInfo(ctx context.Context, accessToken, path string, fields []string, previewSize string) (Resource, error) {
	query := url.Values{"path": {path}}
	if len(fields) > 0 {
		query.Set("fields", strings.Join(fields, ","))
	}
	if previewSize != "" {
		query.Set("preview_size", previewSize)
	}
	resp, err := c.do(ctx, accessToken, http.MethodGet, "/resources", query)
	if err != nil {
		return Resource{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Resource{}, decodeError(resp)
	}
	var res Resource
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Resource{}, fmt.Errorf("decode resource: %w", err)
	}
	return res, nil
}

// QuotaInfo returns the account space report.
func (c *Client) QuotaInfo(ctx context.Context, accessToken string) (Quota, error) {
	resp, err := c.do(ctx, accessToken, http.MethodGet, "", nil)
	if err != nil {
		return Quota{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quota{}, decodeError(resp)
	}
	var quota Quota
	if err := json.NewDecoder(resp.Body).Decode(&quota); err != nil {
		return Quota{}, fmt.Errorf("decode quota: %w", err)
	}
	return quota, nil
}

func (c *Client) do(ctx context.Context, accessToken, method, endpoint string, query url.Values) (*http.Response, error) {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}
	if apiErr.Message == "" && apiErr.Code == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func splitPath(path string) []string {
	var out []string
	for _, segment := range strings.Split(path, "/") {
		if strings.TrimSpace(segment) != "" {
			out = append(out, segment)
		}
	}
	return out
}
