// Package dataverse downloads data files from a Dataverse installation.
package dataverse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
)

// ErrFileNotFound is returned when Dataverse does not serve the file.
var ErrFileNotFound = errors.New("dataverse: file not found")

// defaultFileName is used when the response names no file.
const defaultFileName = "unknown-file.tab"

// File is an open data file. The caller must close Body.
type File struct {
	Name        string
	ContentType string
	// Size is the length in bytes, or -1 when unknown.
	Size int64
	Body io.ReadCloser
}

// DisplaySize returns Size for people, e.g. "1.2 MB".
func (f *File) DisplaySize() string {
	if f.Size < 0 {
		return "unknown size"
	}
	return humanize.Bytes(uint64(f.Size))
}

// Client fetches data files.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a client whose requests time out after timeout. Zero
// means no timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

// Open starts downloading the file at fileURL.
func (c *Client) Open(ctx context.Context, fileURL string) (*File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", fileURL, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if resp.StatusCode != http.StatusOK || contentType == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("%s: status %d: %w", fileURL, resp.StatusCode, ErrFileNotFound)
	}

	return &File{
		Name:        fileName(resp.Header.Get("Content-Disposition")),
		ContentType: contentType,
		Size:        resp.ContentLength,
		Body:        resp.Body,
	}, nil
}

func fileName(disposition string) string {
	if disposition == "" {
		return defaultFileName
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return defaultFileName
	}
	return params["filename"]
}
