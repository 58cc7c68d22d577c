package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/WangYihang/subprobe/pkg/domain/service"
)

// ErrResponseTooLarge is returned when a body exceeds the configured maximum
var ErrResponseTooLarge = errors.New("response body exceeds size limit")

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// Fetcher implements service.HTTPFetcher
type Fetcher struct {
	client          *http.Client
	maxResponseSize int64
	userAgent       string
}

// Config holds HTTP fetcher configuration
type Config struct {
	Timeout time.Duration
	// MaxResponseSize caps the body; 0 disables the cap
	MaxResponseSize int64
	// UserAgent is sent on every request; empty picks a browser agent per request
	UserAgent string
}

// NewFetcher creates a new HTTP fetcher
func NewFetcher(config Config) *Fetcher {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: config.Timeout,
		}).DialContext,
		TLSHandshakeTimeout:   config.Timeout,
		ResponseHeaderTimeout: config.Timeout,
		DisableKeepAlives:     true,
	}

	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		maxResponseSize: config.MaxResponseSize,
		userAgent:       config.UserAgent,
	}
}

func (f *Fetcher) agent() string {
	if f.userAgent != "" {
		return f.userAgent
	}
	return defaultUserAgents[rand.Intn(len(defaultUserAgents))]
}

// Fetch implements service.HTTPFetcher
func (f *Fetcher) Fetch(ctx context.Context, url string) (*service.HTTPResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.agent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	headers := make(map[string]string)
	for key, values := range resp.Header {
		headers[key] = strings.Join(values, ", ")
	}

	result := &service.HTTPResponse{
		URL:        url,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    headers,
	}

	var reader io.Reader = resp.Body
	if f.maxResponseSize > 0 {
		// One extra byte distinguishes "exactly at the limit" from "over it"
		reader = io.LimitReader(resp.Body, f.maxResponseSize+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return result, err
	}
	if f.maxResponseSize > 0 && int64(len(body)) > f.maxResponseSize {
		return result, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, f.maxResponseSize)
	}

	result.Body = body
	result.ContentLength = len(body)
	return result, nil
}
