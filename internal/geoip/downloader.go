// Package geoip resolves the country of game servers from a MaxMind GeoLite2 database.
package geoip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// downloadTimeout bounds a single database download.
const downloadTimeout = 2 * time.Minute

// EnsureDB checks if the GeoIP database exists at path and is younger than maxAge.
// If the file is missing or outdated, a new copy is downloaded from url.
func EnsureDB(ctx context.Context, path, url string, maxAge time.Duration) error {
	info, err := os.Stat(path)
	switch {
	case err == nil:
		if time.Since(info.ModTime()) < maxAge {
			log.Info().Str("path", path).Msg("GeoIP database is up to date")
			return nil
		}
		log.Info().Str("path", path).Msg("GeoIP database is outdated, updating...")
	case os.IsNotExist(err):
		log.Info().Str("path", path).Msg("GeoIP database missing, downloading...")
	default:
		return err
	}

	return downloadFile(ctx, path, url)
}

// downloadFile writes url to path through a temporary file in the same directory.
func downloadFile(ctx context.Context, path, url string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download GeoIP database: unexpected status %d", resp.StatusCode)
	}

	out, err := os.CreateTemp(filepath.Dir(path), ".geoip-*")
	if err != nil {
		return err
	}
	tmpPath := out.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	n, err := io.Copy(out, resp.Body)
	if err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	log.Info().Str("path", path).Str("size", humanize.Bytes(uint64(n))).Msg("GeoIP database downloaded")

	return os.Rename(tmpPath, path)
}
