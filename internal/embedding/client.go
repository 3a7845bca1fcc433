package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/facerec/internal/imageutil"
	"golang.org/x/time/rate"
)

const (
	defaultEmbeddingURL = "http://localhost:8000"
	defaultTimeout      = 60 * time.Second
	faceEndpoint        = "/embed/face"
)

var (
	// ErrDecode is returned when the image cannot be decoded, locally or by the server.
	ErrDecode = errors.New("image could not be decoded")
	// ErrUnavailable is returned when the embedding server cannot be reached or fails.
	ErrUnavailable = errors.New("embedding server unavailable")
)

// Extractor turns image bytes into one embedding per detected face.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([][]float32, error)
}

// ClientOptions tunes the HTTP client. Zero values select defaults.
type ClientOptions struct {
	Timeout      time.Duration
	RPS          float64 // requests per second, 0 means unlimited
	MaxImageSize int     // longest side in pixels sent to the server, 0 sends originals
}

// Client computes face embeddings using the embedding server
type Client struct {
	baseURL      string
	client       *http.Client
	limiter      *rate.Limiter
	maxImageSize int
}

// NewClient creates a new embedding client
func NewClient(baseURL string, opts ClientOptions) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), max(1, int(opts.RPS)))
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		client:       &http.Client{Timeout: opts.Timeout},
		limiter:      limiter,
		maxImageSize: opts.MaxImageSize,
	}
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Extract detects faces and returns their embeddings in detection order.
func (c *Client) Extract(ctx context.Context, image []byte) ([][]float32, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, image)
	if err != nil {
		return nil, err
	}

	embeddings := make([][]float32, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		if len(face.Embedding) == 0 {
			return nil, fmt.Errorf("%w: face %d has an empty embedding", ErrUnavailable, face.FaceIndex)
		}
		embeddings = append(embeddings, face.Embedding)
	}
	return embeddings, nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, image []byte) (*FaceResponse, error) {
	prepared, err := imageutil.Prepare(image, c.maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", ctxErr)
		}
		// Wait refuses up front when the next token would arrive after the deadline.
		return nil, fmt.Errorf("waiting for rate limiter: %w: %v", context.DeadlineExceeded, err)
	}

	body, err := c.postMultipartImage(ctx, faceEndpoint, prepared)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %w", ErrUnavailable, err)
	}

	return &faceResp, nil
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
// The part carries an explicit Content-Type header based on magic byte detection.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// The server rejects images it cannot decode with a client error.
		return nil, fmt.Errorf("%w: server returned status %d: %s", ErrDecode, resp.StatusCode, string(body))
	default:
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrUnavailable, resp.StatusCode, string(body))
	}
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	// GIF: 47 49 46 38
	if data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38 {
		return "image/gif"
	}
	return "application/octet-stream"
}
