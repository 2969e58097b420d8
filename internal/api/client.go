// Package api is the REST client for the transfer backend: authentication,
// bucket file operations, transfer jobs and stored AWS credentials.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/s3transfer/transferctl/internal/config"
	"github.com/s3transfer/transferctl/internal/constants"
	"github.com/s3transfer/transferctl/internal/http"
	"github.com/s3transfer/transferctl/internal/logging"
	"github.com/s3transfer/transferctl/internal/ratelimit"
)

// TokenSource supplies the bearer token for each request. An empty token
// sends no Authorization header.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

// Token returns the token itself.
func (s StaticToken) Token() string { return string(s) }

// retryLogger implements the retryablehttp.LeveledLogger interface on top of
// the zerolog wrapper.
type retryLogger struct {
	logger *logging.Logger
}

func (l *retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg("retry: " + msg)
}

func (l *retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg("retry: " + msg)
}

// Option customises a Client.
type Option func(*Client)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.Component("api")
		}
	}
}

// WithTokenSource sets where the bearer token comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithRateLimiter replaces the default API rate limiter.
func WithRateLimiter(rl *ratelimit.RateLimiter) Option {
	return func(c *Client) {
		if rl != nil {
			c.limiter = rl
		}
	}
}

// Client represents the transfer backend API client
type Client struct {
	httpClient     *nethttp.Client
	downloadClient *nethttp.Client
	config         *config.Config
	baseURL        string
	tokens         TokenSource
	limiter        *ratelimit.RateLimiter
	logger         *logging.Logger
}

// NewClient creates a new API client
func NewClient(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.APIBaseURL) == "" {
		return nil, fmt.Errorf("API base URL is empty: set api_base_url in the config file or pass --api-url")
	}

	c := &Client{
		config:  cfg,
		baseURL: strings.TrimSuffix(cfg.APIBaseURL, "/"),
		limiter: ratelimit.NewAPIRateLimiter(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// Configure HTTP client with proxy support
	httpClient, err := http.ConfigureHTTPClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure HTTP client: %w", err)
	}
	c.httpClient = c.wrapRetry(httpClient)

	// Downloads stream without an overall deadline.
	streamClient, err := http.CreateOptimizedClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure download client: %w", err)
	}
	c.downloadClient = c.wrapRetry(streamClient)

	return c, nil
}

func (c *Client) wrapRetry(hc *nethttp.Client) *nethttp.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = hc
	retryClient.RetryMax = c.config.MaxRetries
	retryClient.RetryWaitMin = constants.RetryInitialDelay
	retryClient.RetryWaitMax = constants.RetryMaxDelay
	retryClient.Logger = &retryLogger{logger: c.logger}
	// Hand the last response back untouched so non-2xx statuses surface as
	// StatusError instead of a generic "giving up" error.
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	return retryClient.StandardClient()
}

// GetConfig returns the configuration used by this API client
func (c *Client) GetConfig() *config.Config {
	return c.config
}

// BaseURL returns the normalized backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doRequest performs an HTTP request with authentication and rate limiting
func (c *Client) doRequest(ctx context.Context, hc *nethttp.Client, method, path, contentType string, body []byte) (*nethttp.Response, error) {
	// Wait for rate limiter to allow request
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter cancelled: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := nethttp.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Debug().
			Str("method", method).
			Str("path", path).
			Str("request_id", requestID).
			Str("class", http.ErrorTypeName(http.ClassifyError(err))).
			Err(err).
			Msg("API call failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("API call")

	if resp.StatusCode == nethttp.StatusTooManyRequests {
		c.logger.Warn().
			Str("path", path).
			Str("retry_after", resp.Header.Get("Retry-After")).
			Msg("throttled by backend")
	}

	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in interface{}) (*nethttp.Response, error) {
	var body []byte
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = data
		contentType = "application/json"
	}
	return c.doRequest(ctx, c.httpClient, method, path, contentType, body)
}

// checkStatus turns a non-2xx response into a StatusError, draining and
// logging the body. The caller still closes resp.Body.
func (c *Client) checkStatus(op string, resp *nethttp.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*maxErrorBody))
	se := newStatusError(op, resp.StatusCode, body)
	c.logger.Warn().
		Str("op", op).
		Int("status", se.StatusCode).
		Str("body", se.Body).
		Bool("unauthorized", errors.Is(se, ErrUnauthorized)).
		Msg("request rejected by backend")
	return se
}

// readText accepts either a JSON string or a raw text body.
func readText(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal([]byte(text), &s); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		return s, nil
	}
	return text, nil
}

func bucketPath(bucket string) string {
	return "/s3/" + url.PathEscape(bucket)
}

// Login authenticates and returns the issued bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	resp, err := c.doJSON(ctx, nethttp.MethodPost, "/auth/login", LoginRequest{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkStatus("login", resp); err != nil {
		return "", err
	}

	var out LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return out.Token, nil
}

// ListFiles returns the object keys in bucket. An empty slice is returned for
// an empty bucket; the backend does not distinguish it from a new one.
func (c *Client) ListFiles(ctx context.Context, bucket string) ([]string, error) {
	resp, err := c.doJSON(ctx, nethttp.MethodGet, bucketPath(bucket)+"/files", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus("list files", resp); err != nil {
		return nil, err
	}

	var files []string
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("failed to decode file list: %w", err)
	}
	if files == nil {
		files = []string{}
	}
	return files, nil
}

// Upload sends content as a multipart "file" part named filename. key, when
// non-empty, overrides the object key. Returns the backend confirmation.
func (c *Client) Upload(ctx context.Context, bucket, filename string, content io.Reader, key string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("failed to read upload content: %w", err)
	}
	if key != "" {
		if err := mw.WriteField("key", key); err != nil {
			return "", fmt.Errorf("failed to write key field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	resp, err := c.doRequest(ctx, c.httpClient, nethttp.MethodPost, bucketPath(bucket)+"/upload", mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkStatus("upload", resp); err != nil {
		return "", err
	}
	return readText(resp.Body)
}

// Download streams the object at key into w and returns the byte count.
func (c *Client) Download(ctx context.Context, bucket, key string, w io.Writer) (int64, error) {
	resp, err := c.doRequest(ctx, c.downloadClient, nethttp.MethodGet, bucketPath(bucket)+"/download/"+url.PathEscape(key), "", nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus("download", resp); err != nil {
		return 0, err
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download interrupted after %d bytes: %w", n, err)
	}
	return n, nil
}

// SubmitTransfer asks the backend to copy fileKey from source to destination
// and returns the job id.
func (c *Client) SubmitTransfer(ctx context.Context, source, destination, fileKey string) (string, error) {
	req := TransferRequest{SourceBucket: source, DestinationBucket: destination, FileKey: fileKey}
	resp, err := c.doJSON(ctx, nethttp.MethodPost, "/transfer", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkStatus("submit transfer", resp); err != nil {
		return "", err
	}

	id, err := readText(resp.Body)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("submit transfer returned an empty job id")
	}
	return id, nil
}

// TransferStatus returns the raw job status (COMPLETED, FAILED, or anything
// else while running).
func (c *Client) TransferStatus(ctx context.Context, jobID string) (string, error) {
	resp, err := c.doJSON(ctx, nethttp.MethodGet, "/transfer/"+url.PathEscape(jobID)+"/status", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkStatus("transfer status", resp); err != nil {
		return "", err
	}
	return readText(resp.Body)
}

// SaveCredentials stores an AWS credential set on the backend.
func (c *Client) SaveCredentials(ctx context.Context, cred AWSCredential) (string, error) {
	resp, err := c.doJSON(ctx, nethttp.MethodPost, "/admin/aws", cred)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkStatus("save credentials", resp); err != nil {
		return "", err
	}
	return readText(resp.Body)
}

// ListCredentials returns the stored credential sets without secrets.
func (c *Client) ListCredentials(ctx context.Context) ([]StoredCredential, error) {
	resp, err := c.doJSON(ctx, nethttp.MethodGet, "/admin/aws", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkStatus("list credentials", resp); err != nil {
		return nil, err
	}

	var creds []StoredCredential
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return creds, nil
}
