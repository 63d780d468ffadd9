package fileutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/lepinkainen/bookshelf/internal/errors"
)

// HTTPDoer is the subset of *http.Client used for downloads.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// CoverStatus is the outcome of a cover download.
type CoverStatus int

const (
	// CoverSkipped means there was no URL or the file already existed.
	CoverSkipped CoverStatus = iota
	// CoverStored means a new file was written.
	CoverStored
	// CoverFailed means the download failed; Err holds the reason.
	CoverFailed
)

func (s CoverStatus) String() string {
	switch s {
	case CoverStored:
		return "stored"
	case CoverFailed:
		return "failed"
	default:
		return "skipped"
	}
}

// CoverDownloadOptions holds options for downloading cover images.
type CoverDownloadOptions struct {
	// URL is the source URL of the cover image
	URL string
	// OutputDir is the covers directory
	OutputDir string
	// ISBN keys the cover file: <OutputDir>/<ISBN>.jpg
	ISBN string
	// MaxWidth downscales wider images when > 0; 0 keeps the original bytes
	MaxWidth int
	// Client overrides the default HTTP client
	Client HTTPDoer
}

// CoverDownloadResult holds the result of a cover download operation.
type CoverDownloadResult struct {
	Status    CoverStatus
	LocalPath string
	Err       error
}

// CoverPath returns the deterministic cover location for isbn.
func CoverPath(dir, isbn string) string {
	return filepath.Join(dir, isbn+".jpg")
}

var defaultCoverClient = &http.Client{Timeout: 30 * time.Second}

// DownloadCover stores the image at opts.URL as <OutputDir>/<ISBN>.jpg.
// It never returns an error: failures are reported through the result so a
// batch can keep going. Existing files are never re-downloaded.
func DownloadCover(ctx context.Context, opts CoverDownloadOptions) CoverDownloadResult {
	localPath := CoverPath(opts.OutputDir, opts.ISBN)
	result := CoverDownloadResult{Status: CoverSkipped, LocalPath: localPath}

	if opts.URL == "" {
		slog.Warn("No cover URL", "isbn", opts.ISBN)
		return result
	}

	if FileExists(localPath) {
		slog.Debug("Cover already exists, skipping download", "path", localPath)
		return result
	}

	if err := download(ctx, opts, localPath); err != nil {
		result.Status = CoverFailed
		result.Err = err
		return result
	}

	slog.Info("Downloaded cover", "isbn", opts.ISBN, "path", localPath)
	result.Status = CoverStored
	return result
}

func download(ctx context.Context, opts CoverDownloadOptions, localPath string) error {
	client := opts.Client
	if client == nil {
		client = defaultCoverClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, opts.URL, nil)
	if err != nil {
		return errors.Transport("cover download", opts.ISBN, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return errors.Transport("cover download", opts.ISBN, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.TransportStatus("cover download", opts.ISBN, resp.StatusCode)
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create covers directory: %w", err)
	}

	// The temp name keeps the .jpg suffix so imaging picks the right encoder.
	tmp, err := os.CreateTemp(opts.OutputDir, "."+opts.ISBN+".*.jpg")
	if err != nil {
		return fmt.Errorf("failed to create cover file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if opts.MaxWidth > 0 {
		_ = tmp.Close()
		if err := saveResized(resp.Body, tmpPath, opts.MaxWidth); err != nil {
			return errors.Parse("cover decode", opts.ISBN, err)
		}
	} else {
		_, copyErr := io.Copy(tmp, resp.Body)
		closeErr := tmp.Close()
		if copyErr != nil {
			return errors.Transport("cover download", opts.ISBN, copyErr)
		}
		if closeErr != nil {
			return fmt.Errorf("failed to write cover file: %w", closeErr)
		}
	}

	return os.Rename(tmpPath, localPath)
}

func saveResized(r io.Reader, path string, maxWidth int) error {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return err
	}

	if img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}

	return imaging.Save(img, path, imaging.JPEGQuality(85))
}
