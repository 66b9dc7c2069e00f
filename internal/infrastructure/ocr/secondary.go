package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// SecondaryClient calls the hosted fallback OCR service. It uploads the image
// as multipart form data and receives word-level overlay boxes grouped by
// line, which the adapter aggregates into line boxes.
type SecondaryClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewSecondaryClient(baseURL, apiKey string) *SecondaryClient {
	return &SecondaryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type secondaryWord struct {
	WordText string  `json:"WordText"`
	Left     float64 `json:"Left"`
	Top      float64 `json:"Top"`
	Width    float64 `json:"Width"`
	Height   float64 `json:"Height"`
}

type secondaryLine struct {
	LineText string          `json:"LineText"`
	Words    []secondaryWord `json:"Words"`
}

type secondaryResponse struct {
	ParsedResults []struct {
		TextOverlay struct {
			Lines []secondaryLine `json:"Lines"`
		} `json:"TextOverlay"`
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ErrorMessage          any  `json:"ErrorMessage"`
}

// secondaryResult keeps the raw overlay shape; box aggregation happens in the
// adapter so the skip-empty-line rule lives next to the failover logic.
type secondaryResult struct {
	Lines      []secondaryLine
	ParsedText string
}

func (c *SecondaryClient) Recognize(ctx context.Context, imageBase64 string) (*secondaryResult, error) {
	imageBytes, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return nil, fmt.Errorf("decode image for secondary ocr: %w", err)
	}

	var form bytes.Buffer
	writer := multipart.NewWriter(&form)
	part, err := writer.CreateFormFile("file", "label.jpg")
	if err != nil {
		return nil, fmt.Errorf("create multipart file: %w", err)
	}
	if _, err := part.Write(imageBytes); err != nil {
		return nil, fmt.Errorf("write multipart image: %w", err)
	}
	if err := writer.WriteField("isOverlayRequired", "true"); err != nil {
		return nil, fmt.Errorf("write multipart field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse/image", &form)
	if err != nil {
		return nil, fmt.Errorf("create secondary ocr request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("secondary ocr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("secondary ocr status %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var parsed secondaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode secondary ocr response: %w", err)
	}
	if parsed.IsErroredOnProcessing {
		return nil, fmt.Errorf("secondary ocr processing error: %v", parsed.ErrorMessage)
	}
	if len(parsed.ParsedResults) == 0 {
		return nil, errors.New("secondary ocr returned no results")
	}

	first := parsed.ParsedResults[0]
	return &secondaryResult{
		Lines:      first.TextOverlay.Lines,
		ParsedText: first.ParsedText,
	}, nil
}
