package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"math"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/rekognizer/internal/imageprocessor"
	"github.com/example/rekognizer/internal/logging"
)

// Detection is one face reported by the detector service.
type Detection struct {
	Box        [4]float64            `json:"box"` // x, y, width, height
	Confidence float64               `json:"confidence"`
	Keypoints  map[string][2]float64 `json:"keypoints,omitempty"`
}

// BoundingBox rounds the detection box to whole pixels.
func (d Detection) BoundingBox() imageprocessor.Box {
	return imageprocessor.Box{
		X:      int(math.Round(d.Box[0])),
		Y:      int(math.Round(d.Box[1])),
		Width:  int(math.Round(d.Box[2])),
		Height: int(math.Round(d.Box[3])),
	}
}

type detectResponse struct {
	Faces []Detection `json:"faces"`
}

// Client talks to an MTCNN detector exposed over HTTP.
type Client struct {
	url        string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a detector client posting images to url.
func New(url string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{url: url, httpClient: httpClient, logger: logger.Named("detector")}
}

// Detect uploads the raster as JPEG and returns every detected face.
func (c *Client) Detect(ctx context.Context, r *imageprocessor.Raster) ([]Detection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "image.jpg")
	if err != nil {
		return nil, c.fail(fmt.Errorf("create form file: %w", err))
	}
	if err := jpeg.Encode(part, r.Image(), &jpeg.Options{Quality: 95}); err != nil {
		return nil, c.fail(fmt.Errorf("encode image: %w", err))
	}
	if err := writer.Close(); err != nil {
		return nil, c.fail(fmt.Errorf("close form: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, c.fail(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, c.fail(fmt.Errorf("detector returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)))
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, c.fail(fmt.Errorf("decode response: %w", err))
	}
	return result.Faces, nil
}

// Locate returns only the bounding boxes of the detected faces.
func (c *Client) Locate(ctx context.Context, r *imageprocessor.Raster) ([]imageprocessor.Box, error) {
	detections, err := c.Detect(ctx, r)
	if err != nil {
		return nil, err
	}
	boxes := make([]imageprocessor.Box, len(detections))
	for i, d := range detections {
		boxes[i] = d.BoundingBox()
	}
	return boxes, nil
}

func (c *Client) fail(err error) error {
	wrapped := logging.NewOperationError("detector.detect", "", err)
	c.logger.Error("face detection failed", zap.Error(wrapped), zap.String("url", c.url))
	return wrapped
}
