// Package usgs downloads basin and flowline data for USGS gauge sites from
// the Network Linked Data Index (NLDI) service.
package usgs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/nadi-hydro/nadi/internal/state"
)

// DefaultBaseURL is the public NLDI endpoint.
const DefaultBaseURL = "https://labs.waterdata.usgs.gov/api/nldi"

// ErrUnknownKind is returned for an unrecognised data kind.
var ErrUnknownKind = errors.New("unknown data kind")

// Kind is a type of NLDI data for a site.
type Kind string

// Data kinds.
const (
	Upstream    Kind = "upstream"
	Downstream  Kind = "downstream"
	Tributaries Kind = "tributaries"
	Basin       Kind = "basin"
)

// Kinds lists every kind in display order.
var Kinds = []Kind{Upstream, Downstream, Tributaries, Basin}

// ParseKind parses a kind name or its single letter alias (u/d/t/b).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "u", "upstream":
		return Upstream, nil
	case "d", "downstream":
		return Downstream, nil
	case "t", "tributaries", "tributories":
		return Tributaries, nil
	case "b", "basin":
		return Basin, nil
	}
	return "", fmt.Errorf("%w: %q (use u/d/t/b)", ErrUnknownKind, s)
}

// Path returns the NLDI path segment of the kind.
func (k Kind) Path() string {
	switch k {
	case Upstream:
		return "navigate/UM"
	case Downstream:
		return "navigate/DM"
	case Tributaries:
		return "navigate/UT"
	default:
		return "basin"
	}
}

// FileName returns the output file name for a site.
func (k Kind) FileName(site string) string {
	p := k.Path()
	return fmt.Sprintf("%s_%s.json", site, p[strings.LastIndex(p, "/")+1:])
}

// Store records downloads. *state.SQLiteStore satisfies it.
type Store interface {
	GetDownload(ctx context.Context, siteNo, kind string) (*state.Download, error)
	RecordDownload(ctx context.Context, d *state.Download) error
}

// Client downloads NLDI data.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Retries     uint64
	Concurrency int
	Force       bool
	Store       Store
	Logger      *slog.Logger

	backoff time.Duration
}

// NewClient returns a client with default settings.
func NewClient() *Client {
	return &Client{
		BaseURL:     DefaultBaseURL,
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
		Retries:     3,
		Concurrency: 4,
		backoff:     500 * time.Millisecond,
	}
}

// URL returns the NLDI URL for a site and kind.
func (c *Client) URL(site string, kind Kind) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return fmt.Sprintf("%s/linked-data/nwissite/USGS-%s/%s?f=json", base, url.PathEscape(site), kind.Path())
}

// Result describes one requested file.
type Result struct {
	Site    string `json:"site"`
	Kind    Kind   `json:"kind"`
	Path    string `json:"path"`
	Bytes   int64  `json:"bytes"`
	Skipped bool   `json:"skipped"`
}

// Download fetches every kind for every site into dir. Results are in
// site-major order regardless of completion order.
func (c *Client) Download(ctx context.Context, sites []string, kinds []Kind, dir string) ([]Result, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	results := make([]Result, len(sites)*len(kinds))
	g, ctx := errgroup.WithContext(ctx)
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}

	for i, site := range sites {
		for j, kind := range kinds {
			idx := i*len(kinds) + j
			g.Go(func() error {
				res, err := c.fetch(ctx, site, kind, dir, logger)
				if err != nil {
					return fmt.Errorf("site %s (%s): %w", site, kind, err)
				}
				results[idx] = res
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) fetch(ctx context.Context, site string, kind Kind, dir string, logger *slog.Logger) (Result, error) {
	path := filepath.Join(dir, kind.FileName(site))
	res := Result{Site: site, Kind: kind, Path: path}

	if !c.Force && c.Store != nil {
		rec, err := c.Store.GetDownload(ctx, site, string(kind))
		if err != nil && !errors.Is(err, state.ErrNotFound) {
			return res, err
		}
		if rec != nil && rec.Path == path {
			if info, err := os.Stat(path); err == nil {
				logger.Debug("skipping recorded download", "site", site, "kind", kind, "path", path)
				res.Bytes = info.Size()
				res.Skipped = true
				return res, nil
			}
		}
	}

	body, err := c.get(ctx, c.URL(site, kind), logger)
	if err != nil {
		return res, err
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return res, fmt.Errorf("failed to write %s: %w", path, err)
	}
	res.Bytes = int64(len(body))
	logger.Info("downloaded", "site", site, "kind", kind, "path", path, "bytes", res.Bytes)

	if c.Store != nil {
		if err := c.Store.RecordDownload(ctx, &state.Download{
			SiteNo: site,
			Kind:   string(kind),
			Path:   path,
			Bytes:  res.Bytes,
		}); err != nil {
			return res, err
		}
	}
	return res, nil
}

// get performs a GET, retrying transport errors and 5xx responses.
func (c *Client) get(ctx context.Context, u string, logger *slog.Logger) ([]byte, error) {
	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	base := c.backoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(c.Retries, retry.NewExponential(base))

	var body []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			logger.Debug("request failed, retrying", "url", u, "error", err)
			return retry.RetryableError(err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("failed to read response: %w", err))
		}
		switch {
		case resp.StatusCode >= 500:
			logger.Debug("server error, retrying", "url", u, "status", resp.StatusCode)
			return retry.RetryableError(fmt.Errorf("GET %s: %s", u, resp.Status))
		case resp.StatusCode >= 300:
			return fmt.Errorf("GET %s: %s", u, resp.Status)
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
