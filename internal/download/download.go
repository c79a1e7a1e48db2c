// Package download implements the network side of the archive cache: an
// HTTP GET that streams an archive body into the cache, and an optional
// detached-signature check run before the archive is published.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"

	"github.com/tsukumogami/embeddb/internal/config"
	"github.com/tsukumogami/embeddb/internal/httputil"
	"github.com/tsukumogami/embeddb/internal/log"
	"github.com/tsukumogami/embeddb/internal/progress"
)

// StatusError reports a non-200 response from the origin.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %s", log.SanitizeURL(e.URL), e.Status)
}

// NotFound reports whether the origin has no such archive, which usually
// means the distribution is not published for this platform.
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// HTTPDownloader fetches archives over HTTP(S). It satisfies
// store.Downloader.
type HTTPDownloader struct {
	client    *http.Client
	allowHTTP bool
	progress  *os.File
	logger    log.Logger
}

// Option configures an HTTPDownloader.
type Option func(*HTTPDownloader)

// WithClient replaces the HTTP client.
func WithClient(c *http.Client) Option {
	return func(d *HTTPDownloader) { d.client = c }
}

// WithAllowHTTP permits plain http URLs, for explicitly configured mirrors.
func WithAllowHTTP(allow bool) Option {
	return func(d *HTTPDownloader) { d.allowHTTP = allow }
}

// WithProgress draws a progress line on f while downloading, if f is a
// terminal.
func WithProgress(f *os.File) Option {
	return func(d *HTTPDownloader) { d.progress = f }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(d *HTTPDownloader) { d.logger = l }
}

// NewHTTPDownloader returns a downloader using a hardened client bounded by
// the configured download timeout.
func NewHTTPDownloader(opts ...Option) *HTTPDownloader {
	d := &HTTPDownloader{}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = httputil.NewClient(httputil.ClientOptions{
			Timeout:   config.GetDownloadTimeout(),
			AllowHTTP: d.allowHTTP,
		})
	}
	d.logger = log.For(d.logger, "download")
	return d
}

// Download streams the body at url into w. Errors returned by w are
// passed through unchanged so the caller can tell them apart from network
// failures.
func (d *HTTPDownloader) Download(ctx context.Context, url string, w io.Writer) error {
	if err := httputil.CheckURL(url, d.allowHTTP); err != nil {
		return err
	}

	resp, err := d.get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	d.logger.Debug("downloading", "url", log.SanitizeURL(url), "size", resp.ContentLength)

	dst := w
	if progress.IsTerminal(d.progress) {
		pw := progress.NewWriter(w, path.Base(resp.Request.URL.Path), resp.ContentLength, d.progress)
		defer pw.Finish()
		dst = pw
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", log.SanitizeURL(url), err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return fmt.Errorf("short download of %s: got %d of %d bytes", log.SanitizeURL(url), n, resp.ContentLength)
	}
	return nil
}

func (d *HTTPDownloader) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// Archives are already compressed; the cache must see the served bytes.
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", log.SanitizeURL(url), err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		resp.Body.Close()
		return nil, fmt.Errorf("refusing content-encoded response (%s) for %s", enc, log.SanitizeURL(url))
	}
	return resp, nil
}

// fetchSmall reads a small resource such as a signature, capped at limit
// bytes.
func (d *HTTPDownloader) fetchSmall(ctx context.Context, url string, limit int64) ([]byte, error) {
	if err := httputil.CheckURL(url, d.allowHTTP); err != nil {
		return nil, err
	}
	resp, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", log.SanitizeURL(url), err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s exceeds %d bytes", log.SanitizeURL(url), limit)
	}
	return data, nil
}
