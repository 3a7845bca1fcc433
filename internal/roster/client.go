package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kozaktomas/facerec/internal/facematch"
)

const defaultTimeout = 15 * time.Second

// Client fetches rosters from the attendance API.
type Client struct {
	parsedURL  *url.URL
	client     *http.Client
	captureDir string
}

// NewClient creates an attendance API client for baseURL.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/api")
	if err != nil {
		return nil, fmt.Errorf("invalid roster URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid roster URL %q: scheme and host are required", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{parsedURL: parsed, client: &http.Client{Timeout: timeout}}, nil
}

// resolveURL builds a full URL from the base API URL and the given path segments.
func (c *Client) resolveURL(pathSegments ...string) string {
	return c.parsedURL.JoinPath(pathSegments...).String()
}

// Roster fetches the faces registered for an enrollment ("matricula").
func (c *Client) Roster(ctx context.Context, group string) ([]facematch.Entry, error) {
	if group == "" || group == "." || group == ".." || strings.ContainsAny(group, `/\?#`) {
		return nil, fmt.Errorf("%w: invalid group %q", ErrGroupNotFound, group)
	}
	endpoint := c.resolveURL("biometricos", "matricula", group)

	body, err := c.doGet(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	c.captureResponse("matricula_"+group, body)

	var doc document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: could not unmarshal response: %w", ErrUnavailable, err)
	}
	if err := validate(doc.Rostros); err != nil {
		return nil, err
	}
	if doc.Rostros == nil {
		doc.Rostros = []facematch.Entry{}
	}
	return doc.Rostros, nil
}

// doGet performs a GET request and returns the body of a 200 response.
func (c *Client) doGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: could not send request: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, readErrorBody(resp.Body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: request failed with status %d: %s", ErrUnavailable, resp.StatusCode, readErrorBody(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read response body: %w", ErrUnavailable, err)
	}
	return body, nil
}

// readErrorBody reads the response body for error messages.
// Returns empty string if reading fails (we're already in an error path).
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "(could not read error body)"
	}
	return string(body)
}

// SetCaptureDir enables API response capturing to the specified directory.
// Pass an empty string to disable capturing.
func (c *Client) SetCaptureDir(dir string) error {
	if dir == "" {
		c.captureDir = ""
		return nil
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("could not create capture directory: %w", err)
	}
	c.captureDir = dir
	return nil
}

// captureResponse saves the API response body to a file if capturing is enabled.
func (c *Client) captureResponse(name string, body []byte) {
	if c.captureDir == "" {
		return
	}

	filename := strings.NewReplacer("/", "_", `\`, "_").Replace(name)
	filename = fmt.Sprintf("%s_%s.json", filename, time.Now().Format("20060102_150405"))
	path := filepath.Join(c.captureDir, filename)

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err == nil {
		body = prettyJSON.Bytes()
	}

	// WriteFile error is non-critical for capturing - log and continue
	if err := os.WriteFile(path, body, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to capture response to %s: %v\n", path, err)
	}
}
