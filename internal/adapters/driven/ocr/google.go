package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/custodia-labs/slate/internal/core/domain"
	"github.com/custodia-labs/slate/internal/core/ports/driven"
)

const (
	// visionEndpoint is the REST annotate endpoint used with API keys.
	visionEndpoint = "https://vision.googleapis.com/v1/images:annotate"

	// visionTimeout bounds each annotate call.
	visionTimeout = 60 * time.Second

	// documentTextDetection is the feature tuned for dense handwriting.
	documentTextDetection = "DOCUMENT_TEXT_DETECTION"
)

// Ensure both Google variants implement the Recogniser port.
var (
	_ driven.Recogniser = (*GoogleREST)(nil)
	_ driven.Recogniser = (*GoogleVision)(nil)
)

// GoogleREST recognises pages through the Cloud Vision REST endpoint
// authenticated by a plain API key. Rejected keys surface as
// domain.ErrAuthInvalid so the pipeline can fall back to tesseract.
type GoogleREST struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewGoogleREST constructs the API-key backend.
func NewGoogleREST(apiKey string, httpClient *http.Client) *GoogleREST {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: visionTimeout}
	}
	return &GoogleREST{apiKey: apiKey, endpoint: visionEndpoint, httpClient: httpClient}
}

// Name returns the backend identifier.
func (g *GoogleREST) Name() string { return "google" }

// Recognise sends the page to the annotate endpoint.
func (g *GoogleREST) Recognise(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(flattenOnWhite(img))
	if err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"requests": []map[string]any{{
			"image":    map[string]string{"content": base64.StdEncoding.EncodeToString(data)},
			"features": []map[string]string{{"type": documentTextDetection}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("encode annotate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.endpoint+"?key="+g.apiKey, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build annotate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("annotate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", fmt.Errorf("vision API rejected key (HTTP %d): %w", resp.StatusCode, domain.ErrAuthInvalid)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("annotate: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read annotate response: %w", err)
	}

	var parsed struct {
		Responses []struct {
			FullTextAnnotation struct {
				Text string `json:"text"`
			} `json:"fullTextAnnotation"`
		} `json:"responses"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parse annotate response: %w", err)
	}
	if len(parsed.Responses) == 0 {
		return "", nil
	}
	return strings.TrimSpace(parsed.Responses[0].FullTextAnnotation.Text), nil
}

// GoogleVision recognises pages through the Cloud Vision SDK using
// service account or ambient credentials.
type GoogleVision struct {
	service *vision.Service
}

// NewGoogleVision constructs the SDK backend. An empty credentialsFile
// uses application default credentials.
func NewGoogleVision(ctx context.Context, credentialsFile string) (*GoogleVision, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	service, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}
	return &GoogleVision{service: service}, nil
}

// Name returns the backend identifier.
func (g *GoogleVision) Name() string { return "google" }

// Recognise sends the page through the SDK's batch annotate call.
func (g *GoogleVision) Recognise(ctx context.Context, img image.Image) (string, error) {
	data, err := encodePNG(flattenOnWhite(img))
	if err != nil {
		return "", err
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: base64.StdEncoding.EncodeToString(data)},
			Features: []*vision.Feature{{Type: documentTextDetection}},
		}},
	}

	ctx, cancel := context.WithTimeout(ctx, visionTimeout)
	defer cancel()

	resp, err := g.service.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("annotate: %w", err)
	}
	if len(resp.Responses) == 0 {
		return "", nil
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("annotate: %s", r.Error.Message)
	}
	if r.FullTextAnnotation == nil {
		return "", nil
	}
	return strings.TrimSpace(r.FullTextAnnotation.Text), nil
}
