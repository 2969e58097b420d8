package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/s3transfer/transferctl/internal/config"
	"github.com/s3transfer/transferctl/internal/constants"
)

// CreateOptimizedClient creates the client used for file payloads (upload
// bodies and download streams). It starts from ConfigureHTTPClient so the same
// proxy settings apply, then removes the overall timeout and enables HTTP/2.
// Per-operation deadlines come from the request context instead.
//
// Set DISABLE_HTTP2=true to force HTTP/1.1.
func CreateOptimizedClient(cfg *config.Config) (*nethttp.Client, error) {
	var baseClient *nethttp.Client
	var err error

	if cfg != nil {
		baseClient, err = ConfigureHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		baseClient = &nethttp.Client{Transport: newTransport()}
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM wraps the transport in a negotiator; leave it as is.
		baseClient.Timeout = 0
		return baseClient, nil
	}

	tr.IdleConnTimeout = constants.HTTPIdleConnTimeout
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	if os.Getenv("DISABLE_HTTP2") == "true" || proxyActive(cfg) {
		// Proxies often break HTTP/2 multiplexing mid-stream.
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}

func proxyActive(cfg *config.Config) bool {
	envProxy := os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
		os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	if cfg == nil {
		return envProxy
	}
	switch cfg.ProxyMode {
	case config.ProxyModeNone, "":
		return false
	case config.ProxyModeSystem:
		return envProxy
	default:
		return true
	}
}
