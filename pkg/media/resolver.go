// Package media turns waypoint media references into playable local files.
// Local paths pass through untouched; remote URLs are fetched into a cache
// directory with retry and per-host backoff. The engine never learns how a
// URL was signed; an expired or unreachable URL is simply unavailable.
package media

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnavailable is returned when a media reference cannot be resolved to a
// playable file (missing local file, unreachable remote, expired URL).
var ErrUnavailable = errors.New("media unavailable")

// Resolver resolves a media reference to a local file path.
type Resolver interface {
	Resolve(ctx context.Context, mediaRef string) (string, error)
}

// CacheResolver implements Resolver with an on-disk download cache.
type CacheResolver struct {
	httpClient *http.Client
	cacheDir   string
	retries    int
	backoff    *HostBackoff
}

// NewCacheResolver creates a resolver caching downloads under cacheDir.
func NewCacheResolver(cacheDir string, retries int, backoff *HostBackoff) *CacheResolver {
	if retries < 1 {
		retries = 1
	}
	return &CacheResolver{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		cacheDir:   cacheDir,
		retries:    retries,
		backoff:    backoff,
	}
}

// SetTimeout overrides the per-request HTTP timeout.
func (r *CacheResolver) SetTimeout(d time.Duration) {
	if d > 0 {
		r.httpClient.Timeout = d
	}
}

// Resolve returns a local file path for the reference, downloading and
// caching remote URLs as needed.
func (r *CacheResolver) Resolve(ctx context.Context, mediaRef string) (string, error) {
	if mediaRef == "" {
		return "", fmt.Errorf("%w: empty media ref", ErrUnavailable)
	}

	if !isRemote(mediaRef) {
		if _, err := os.Stat(mediaRef); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return mediaRef, nil
	}

	cached := r.cachePath(mediaRef)
	if _, err := os.Stat(cached); err == nil {
		slog.Debug("Media: cache hit", "path", cached)
		return cached, nil
	}

	if err := r.download(ctx, mediaRef, cached); err != nil {
		return "", err
	}
	return cached, nil
}

func (r *CacheResolver) download(ctx context.Context, rawURL, dest string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid url: %v", ErrUnavailable, err)
	}
	host := parsed.Host

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create media cache dir: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= r.retries; attempt++ {
		if r.backoff != nil {
			if err := r.backoff.Wait(ctx, host); err != nil {
				return err
			}
		}

		lastErr = r.fetchOnce(ctx, rawURL, dest)
		if lastErr == nil {
			if r.backoff != nil {
				r.backoff.RecordSuccess(host)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.backoff != nil {
			r.backoff.RecordFailure(host)
		}
		slog.Warn("Media: download failed", "url", rawURL, "attempt", attempt, "error", lastErr)
	}

	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (r *CacheResolver) fetchOnce(ctx context.Context, rawURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	// Write to a temp file first so a partial download never looks cached.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, dest)
}

// cachePath derives a stable cache filename from the URL, keeping the
// extension so the audio decoder can pick a format.
func (r *CacheResolver) cachePath(rawURL string) string {
	sum := sha1.Sum([]byte(rawURL))
	ext := path.Ext(strippedPath(rawURL))
	if ext == "" || len(ext) > 5 {
		ext = ".mp3"
	}
	return filepath.Join(r.cacheDir, hex.EncodeToString(sum[:])+ext)
}

func strippedPath(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Path
	}
	return rawURL
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
