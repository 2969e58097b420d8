// Package awscheck verifies AWS credentials locally before they are stored on
// the transfer backend, by listing the buckets they can see.
package awscheck

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/s3transfer/transferctl/internal/api"
	"github.com/s3transfer/transferctl/internal/constants"
	"github.com/s3transfer/transferctl/internal/http"
	"github.com/s3transfer/transferctl/internal/logging"
)

var (
	// ErrMissingField is returned for a blank credential field; nothing is sent.
	ErrMissingField = errors.New("missing credential field")

	// ErrInvalidCredentials means AWS rejected the key pair.
	ErrInvalidCredentials = errors.New("AWS rejected the credentials")
)

// Options configures Verify.
type Options struct {
	// HTTPClient carries proxy settings. Defaults to the SDK client.
	HTTPClient *nethttp.Client

	// Endpoint overrides the S3 endpoint (S3-compatible stores, tests).
	// Path-style addressing is used when set.
	Endpoint string

	// MaxAttempts bounds retries of network and 5xx failures. Zero means one attempt.
	MaxAttempts int

	Logger *logging.Logger
}

// Result lists what the credentials can see.
type Result struct {
	Region  string
	Buckets []string
}

func checkFields(cred api.AWSCredential) error {
	fields := []struct{ name, value string }{
		{"account name", cred.AccountName},
		{"access key", cred.AccessKey},
		{"secret key", cred.SecretKey},
		{"region", cred.Region},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}
	return nil
}

// Verify calls ListBuckets with cred's static key pair.
func Verify(ctx context.Context, cred api.AWSCredential, opts Options) (*Result, error) {
	if err := checkFields(cred); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Component("awscheck")

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cred.Region),
		config.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(
			cred.AccessKey,
			cred.SecretKey,
			"",
		)),
		// Retries are handled by ExecuteWithRetry below.
		config.WithRetryMaxAttempts(1),
	}
	if opts.HTTPClient != nil {
		loadOpts = append(loadOpts, config.WithHTTPClient(opts.HTTPClient))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	retryCfg := http.DefaultRetryConfig()
	if opts.MaxAttempts > 1 {
		retryCfg.MaxAttempts = opts.MaxAttempts
	}
	retryCfg.OnRetry = func(attempt int, err error, errType http.ErrorType) {
		logger.Warn().
			Int("attempt", attempt).
			Str("class", http.ErrorTypeName(errType)).
			Err(err).
			Msg("ListBuckets failed, retrying")
	}

	var out *s3.ListBucketsOutput
	err = http.ExecuteWithRetry(ctx, retryCfg, func() error {
		var callErr error
		out, callErr = client.ListBuckets(ctx, &s3.ListBucketsInput{})
		return callErr
	})
	if err != nil {
		if status := responseStatus(err); status == nethttp.StatusForbidden || status == nethttp.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, fmt.Errorf("ListBuckets failed: %w", err)
	}

	res := &Result{Region: cred.Region}
	for _, b := range out.Buckets {
		res.Buckets = append(res.Buckets, aws.ToString(b.Name))
	}
	logger.Debug().Int("buckets", len(res.Buckets)).Str("account", cred.AccountName).Msg("credentials verified")
	return res, nil
}

func responseStatus(err error) int {
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode()
	}
	return 0
}

// RetryAttempts maps the configured one-shot retry count to attempts.
func RetryAttempts(maxRetries int) int {
	if maxRetries < 0 {
		return 1
	}
	if maxRetries > constants.MaxMaxRetries {
		maxRetries = constants.MaxMaxRetries
	}
	return maxRetries + 1
}
