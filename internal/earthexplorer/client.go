// Package earthexplorer downloads raw scene archives from an
// EarthExplorer-compatible archive service using client-credentials auth.
package earthexplorer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/terrawatch/landsat-pipeline-poc/internal/properties"
)

type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient builds a client from the ARCHIVE_* environment configuration.
func NewClient(ctx context.Context) (*Client, error) {
	base := properties.ArchiveBaseURL()
	if base == "" {
		return nil, fmt.Errorf("ARCHIVE_BASE_URL is not configured")
	}
	cfg := clientcredentials.Config{
		ClientID:     properties.ArchiveClientID(),
		ClientSecret: properties.ArchiveClientSecret(),
		TokenURL:     properties.ArchiveTokenURL(),
	}
	return &Client{
		http:    cfg.Client(ctx),
		baseURL: strings.TrimRight(base, "/"),
	}, nil
}

// DownloadScene streams one scene archive into destDir and returns the
// path of the written tar.gz.
func (c *Client) DownloadScene(ctx context.Context, sceneID, destDir string) (string, error) {
	url := fmt.Sprintf("%s/scenes/%s/download", c.baseURL, sceneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting scene %s: %w", sceneID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scene %s download failed, status code: %d", sceneID, resp.StatusCode)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, sceneID+".tar.gz")
	f, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return dest, nil
}
