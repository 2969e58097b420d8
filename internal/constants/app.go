// Package constants holds timing, capacity and transport defaults shared
// across transferctl packages.
package constants

import (
	"time"
)

// Transfer job polling
const (
	// TransferPollInterval - fixed period between status requests for an active job (2 seconds)
	TransferPollInterval = 2 * time.Second

	// TransferStatusCompleted is the backend status that ends a job successfully.
	TransferStatusCompleted = "COMPLETED"

	// TransferStatusFailed is the backend status that ends a job with an error.
	TransferStatusFailed = "FAILED"
)

// Notification display
const (
	// NotificationDisplayDuration - how long a notification stays visible before auto-dismiss (4 seconds)
	NotificationDisplayDuration = 4 * time.Second
)

// Upload progress estimation
//
// The backend reports no upload progress, so the client shows a synthetic
// estimate: +10% every 200ms, capped at 90% until the request resolves.
const (
	// UploadEstimateTick - period of the synthetic progress ticker (200ms)
	UploadEstimateTick = 200 * time.Millisecond

	// UploadEstimateStep - percent added per tick
	UploadEstimateStep = 10

	// UploadEstimateCeiling - highest percent shown while the request is outstanding
	UploadEstimateCeiling = 90

	// UploadEstimateResetDelay - how long 100% stays on screen after success (1 second)
	UploadEstimateResetDelay = 1 * time.Second
)

// Bucket recency cache
const (
	// RecentBucketsCapacity - maximum number of remembered bucket names
	RecentBucketsCapacity = 5

	// RecentBucketsKey - key-value store key holding the recency list
	RecentBucketsKey = "recentBuckets"

	// TokenKey - key-value store key holding the bearer token
	TokenKey = "token"
)

// DefaultRecentBuckets is returned on first run, before any bucket was recorded.
var DefaultRecentBuckets = []string{"my-documents", "backup-files", "project-assets"}

// Event bus configuration
const (
	// EventBusDefaultBuffer - default buffer size for event channels
	EventBusDefaultBuffer = 256

	// EventBusMaxBuffer - maximum buffer size for event channels
	EventBusMaxBuffer = 4096
)

// HTTP Client Timeouts
const (
	// HTTPIdleConnTimeout - how long to keep idle connections open (90 seconds)
	HTTPIdleConnTimeout = 90 * time.Second

	// HTTPTLSHandshakeTimeout - timeout for TLS handshake (30 seconds)
	HTTPTLSHandshakeTimeout = 30 * time.Second

	// HTTPExpectContinueTimeout - timeout for 100-continue response (1 second)
	HTTPExpectContinueTimeout = 1 * time.Second

	// HTTPDialTimeout - timeout for establishing connection (30 seconds)
	HTTPDialTimeout = 30 * time.Second

	// HTTPDialKeepAlive - keep-alive period for dialer (30 seconds)
	HTTPDialKeepAlive = 30 * time.Second

	// HTTPRequestTimeout - default per-request timeout for one-shot API calls (5 minutes)
	// Uploads and downloads of large files can take a while.
	HTTPRequestTimeout = 5 * time.Minute
)

// API request rate limiting
const (
	// APIRatePerSec - sustained request rate towards the transfer backend
	APIRatePerSec = 10.0

	// APIBurstCapacity - burst allowance before the sustained rate applies
	APIBurstCapacity = 50.0
)

// Retry configuration
const (
	// DefaultMaxRetries - one-shot API calls are not retried unless configured
	DefaultMaxRetries = 0

	// MaxMaxRetries - upper bound accepted from config/flags
	MaxMaxRetries = 10

	// RetryInitialDelay - initial delay before first retry (200ms)
	RetryInitialDelay = 200 * time.Millisecond

	// RetryMaxDelay - maximum delay between retries (15s)
	RetryMaxDelay = 15 * time.Second
)

// Server defaults
const (
	// DefaultAPIBaseURL - where the transfer backend listens in a default deployment
	DefaultAPIBaseURL = "http://localhost:8080/api"

	// AppDirName - directory under the user config dir for config, state and logs
	AppDirName = "transferctl"
)
