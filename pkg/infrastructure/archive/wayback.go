package archive

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"strconv"
	"unicode/utf8"

	"github.com/WangYihang/subprobe/pkg/domain/entity"
	"github.com/WangYihang/subprobe/pkg/domain/service"
	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/net/html/charset"
)

// DefaultEndpoint is the Wayback Machine CDX search API
const DefaultEndpoint = "http://web.archive.org/cdx/search/cdx"

// Config holds Wayback source configuration
type Config struct {
	// Endpoint is the CDX search URL; DefaultEndpoint when empty
	Endpoint string
	// Limit caps the number of CDX rows requested; 0 means no limit
	Limit int
}

// Wayback implements service.ArchiveSource over the CDX API
type Wayback struct {
	endpoint   string
	limit      int
	fetcher    service.HTTPFetcher
	normalizer service.HostnameNormalizer
}

// NewWayback creates a Wayback archive source
func NewWayback(config Config, fetcher service.HTTPFetcher, normalizer service.HostnameNormalizer) *Wayback {
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Wayback{
		endpoint:   endpoint,
		limit:      config.Limit,
		fetcher:    fetcher,
		normalizer: normalizer,
	}
}

// QueryURL builds the CDX query for every capture under apex
func (w *Wayback) QueryURL(apex entity.ApexDomain) string {
	params := url.Values{}
	params.Set("url", "*."+apex.String())
	params.Set("output", "json")
	params.Set("fl", "original")
	params.Set("collapse", "urlkey")
	if w.limit > 0 {
		params.Set("limit", strconv.Itoa(w.limit))
	}
	return w.endpoint + "?" + params.Encode()
}

// Fetch implements service.ArchiveSource.
// Exactly one request is made; there are no retries.
func (w *Wayback) Fetch(ctx context.Context, apex entity.ApexDomain) (mapset.Set[entity.Hostname], error) {
	resp, err := w.fetcher.Fetch(ctx, w.QueryURL(apex))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entity.ErrArchiveUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", entity.ErrArchiveUnavailable, resp.StatusCode)
	}

	body, err := decodeBody(resp.Body, resp.Headers["Content-Type"])
	if err != nil {
		return nil, err
	}

	return Extract(ParseRecords(body), apex, w.normalizer), nil
}

// decodeBody converts body to a UTF-8 string using the declared charset
func decodeBody(body []byte, contentType string) (string, error) {
	if contentType != "" {
		if _, params, err := mime.ParseMediaType(contentType); err == nil {
			if label := params["charset"]; label != "" {
				enc, name := charset.Lookup(label)
				if enc == nil {
					return "", fmt.Errorf("%w: unknown charset %q", entity.ErrArchiveParse, label)
				}
				if name != "utf-8" {
					decoded, err := enc.NewDecoder().Bytes(body)
					if err != nil {
						return "", fmt.Errorf("%w: %v", entity.ErrArchiveParse, err)
					}
					body = decoded
				}
			}
		}
	}

	if !utf8.Valid(body) {
		return "", fmt.Errorf("%w: invalid UTF-8", entity.ErrArchiveParse)
	}
	if bytes.IndexByte(body, 0) >= 0 {
		return "", fmt.Errorf("%w: binary content", entity.ErrArchiveParse)
	}
	return string(body), nil
}
