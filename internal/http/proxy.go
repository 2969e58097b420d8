// Package http builds the HTTP clients used to reach the transfer backend:
// proxy modes, connection tuning and transport error classification.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"
	"time"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http/httpproxy"

	"github.com/s3transfer/transferctl/internal/config"
	"github.com/s3transfer/transferctl/internal/constants"
)

// ConfigureHTTPClient configures an HTTP client with proxy settings
func ConfigureHTTPClient(cfg *config.Config) (*nethttp.Client, error) {
	transport := newTransport()
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = constants.HTTPRequestTimeout
	}

	switch strings.ToLower(cfg.ProxyMode) {
	case config.ProxyModeNone, "":
		transport.Proxy = nil

	case config.ProxyModeSystem:
		transport.Proxy = nethttp.ProxyFromEnvironment

	case config.ProxyModeNTLM, config.ProxyModeBasic:
		// Incomplete saved config: fall back to a direct connection so the
		// operator can still run `config init` to fix it.
		if cfg.ProxyHost == "" {
			log.Warn().Str("mode", cfg.ProxyMode).Msg("proxy host is missing, falling back to no-proxy mode")
			transport.Proxy = nil
			return &nethttp.Client{Transport: transport, Timeout: timeout}, nil
		}

		transport.Proxy = proxyFuncWithBypass(buildProxyURL(cfg), cfg.NoProxy)

		var rt nethttp.RoundTripper = transport
		if strings.ToLower(cfg.ProxyMode) == config.ProxyModeNTLM {
			rt = ntlmssp.Negotiator{RoundTripper: transport}
		} else if cfg.ProxyUser != "" && cfg.ProxyPassword == "" {
			log.Warn().Msg("proxy user configured but password missing, proxy auth disabled until password is set")
		}

		client := &nethttp.Client{Transport: rt, Timeout: timeout}

		if cfg.ProxyWarmup && cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
			if err := warmupProxy(client, cfg); err != nil {
				return nil, fmt.Errorf("proxy warmup failed: %w", err)
			}
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", cfg.ProxyMode)
	}

	return &nethttp.Client{Transport: transport, Timeout: timeout}, nil
}

func newTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(cfg *config.Config) *url.URL {
	port := cfg.ProxyPort
	if port == 0 {
		port = 8080
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(cfg.ProxyHost, fmt.Sprintf("%d", port)),
	}

	// Only embed credentials if both user AND password are provided.
	// An empty password in the URL makes some proxies reject the request.
	if cfg.ProxyUser != "" && cfg.ProxyPassword != "" {
		proxyURL.User = url.UserPassword(cfg.ProxyUser, cfg.ProxyPassword)
	}

	return proxyURL
}

// warmupProxy performs one request through the proxy so NTLM negotiation
// happens before the first real call.
func warmupProxy(client *nethttp.Client, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodHead, cfg.APIBaseURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("warmup request returned server error: %d", resp.StatusCode)
	}

	return nil
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			log.Debug().Str("host", req.URL.Host).Msg("proxy bypass, direct connection")
		} else {
			log.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("proxied")
		}
		return result, err
	}
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided. Used by the CLI to decide whether to prompt.
func NeedsProxyPassword(cfg *config.Config) bool {
	mode := strings.ToLower(cfg.ProxyMode)
	if mode != config.ProxyModeBasic && mode != config.ProxyModeNTLM {
		return false
	}
	return cfg.ProxyUser != "" && cfg.ProxyPassword == ""
}
