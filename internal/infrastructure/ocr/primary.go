package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labelinsight/label-insight/internal/core/domain"
)

// PrimaryClient calls the self-hosted low-latency OCR service. The service
// accepts a base64 payload and returns full lines with four-point boxes.
type PrimaryClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

func NewPrimaryClient(baseURL string, timeout time.Duration) *PrimaryClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PrimaryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		// The client timeout stays above the per-call deadline so the
		// context governs cancellation.
		httpClient: &http.Client{Timeout: timeout + 5*time.Second},
	}
}

type primaryLine struct {
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        [][2]float64 `json:"box"`
}

type primaryResponse struct {
	Lines []primaryLine `json:"lines"`
}

// Recognize runs the primary engine under its bounded timeout. Zero returned
// lines is a failure signal: the caller fails over to the secondary engine.
func (c *PrimaryClient) Recognize(ctx context.Context, imageBase64 string) ([]domain.OCRLine, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"image_base64": imageBase64})
	if err != nil {
		return nil, fmt.Errorf("marshal primary ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create primary ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("primary ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("primary ocr status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var parsed primaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode primary ocr response: %w", err)
	}
	if len(parsed.Lines) == 0 {
		return nil, errors.New("primary ocr returned zero lines")
	}

	lines := make([]domain.OCRLine, 0, len(parsed.Lines))
	for _, raw := range parsed.Lines {
		if len(raw.Box) != 4 {
			return nil, fmt.Errorf("primary ocr line %q: expected 4 box points, got %d", raw.Text, len(raw.Box))
		}
		var box [4]domain.Point
		for i, p := range raw.Box {
			box[i] = domain.Point{X: p[0], Y: p[1]}
		}
		lines = append(lines, domain.OCRLine{
			Text:       raw.Text,
			Confidence: raw.Confidence,
			Box:        box,
		})
	}
	return lines, nil
}
