// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package downloads

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/gamarr/gamarr/internal/buildinfo"
	"github.com/gamarr/gamarr/internal/models"
)

// DownloadError carries the HTTP status of a failed transfer so retry logic
// can distinguish transient from permanent failures.
type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("download %s failed with status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("download %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Permanent reports whether retrying cannot help.
func (e *DownloadError) Permanent() bool {
	switch e.StatusCode {
	case http.StatusNotFound, http.StatusGone, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// progressThrottle bounds how often progress callbacks fire.
const progressThrottle = 500 * time.Millisecond

// progressWriter tracks transfer progress and invokes onProgress at most
// once per throttle window. Speed is averaged over the whole transfer; the
// hosts these files come from burst too much for instantaneous rates to
// mean anything.
type progressWriter struct {
	total      int64
	downloaded int64
	started    time.Time
	lastEmit   time.Time
	onProgress func(models.DownloadProgress)
}

func newProgressWriter(total int64, onProgress func(models.DownloadProgress)) *progressWriter {
	return &progressWriter{
		total:      total,
		started:    time.Now(),
		onProgress: onProgress,
	}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	w.downloaded += int64(len(p))

	if w.onProgress != nil && time.Since(w.lastEmit) >= progressThrottle {
		w.lastEmit = time.Now()
		w.onProgress(w.snapshot())
	}
	return len(p), nil
}

func (w *progressWriter) snapshot() models.DownloadProgress {
	progress := models.DownloadProgress{
		DownloadedBytes: w.downloaded,
		TotalBytes:      w.total,
	}

	elapsed := time.Since(w.started).Seconds()
	if elapsed > 0 {
		progress.SpeedBytesPerSecond = int64(float64(w.downloaded) / elapsed)
	}
	if w.total > 0 {
		progress.Percentage = 100 * float64(w.downloaded) / float64(w.total)
		if progress.SpeedBytesPerSecond > 0 {
			progress.ETASeconds = (w.total - w.downloaded) / progress.SpeedBytesPerSecond
		}
	}
	return progress
}

// transfer streams sourceURL into destDir via a .partial file, renaming on
// success. The host's Content-Disposition filename wins over fallbackName.
// The partial file is removed on any failure so retries start clean.
func (o *Orchestrator) transfer(ctx context.Context, sourceURL, destDir, fallbackName string, onProgress func(models.DownloadProgress)) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return 0, "", errors.Wrap(err, "failed to build download request")
	}
	// File hosts routinely reject non-browser user agents.
	req.Header.Set("User-Agent", buildinfo.BrowserUserAgent)

	resp, err := o.client.Do(req)
	if err != nil {
		return 0, "", &DownloadError{URL: sourceURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, "", &DownloadError{URL: sourceURL, StatusCode: resp.StatusCode}
	}

	filename := filenameFromHeader(resp.Header.Get("Content-Disposition"))
	if filename == "" {
		filename = fallbackName
	}
	destPath := filepath.Join(destDir, filename)

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return 0, filename, errors.Wrap(err, "failed to create destination directory")
	}

	partial := destPath + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return 0, filename, errors.Wrap(err, "failed to create partial file")
	}

	pw := newProgressWriter(resp.ContentLength, onProgress)
	written, err := io.Copy(io.MultiWriter(f, pw), resp.Body)
	closeErr := f.Close()

	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(partial)
		if ctx.Err() != nil {
			return written, filename, ctx.Err()
		}
		return written, filename, &DownloadError{URL: sourceURL, Err: err}
	}

	if err := os.Rename(partial, destPath); err != nil {
		os.Remove(partial)
		return written, filename, errors.Wrap(err, "failed to finalize download")
	}
	return written, filename, nil
}

// filenameFor derives the on-disk filename from the source URL, falling
// back to a sanitized candidate title.
func filenameFor(sourceURL, title string) string {
	if u, err := url.Parse(sourceURL); err == nil {
		if name := path.Base(u.Path); name != "" && name != "." && name != "/" {
			if decoded, err := url.PathUnescape(name); err == nil {
				name = decoded
			}
			return sanitizeFilename(name)
		}
	}
	return sanitizeFilename(title) + ".bin"
}

// filenameFromHeader honors Content-Disposition when the host sends one.
func filenameFromHeader(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return sanitizeFilename(params["filename"])
}

func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}
