package gemini

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
)

// Request is one generation call, independent of which endpoint serves it.
type Request struct {
	System          string
	Prompt          string
	MaxOutputTokens int
	Temperature     float64
	JSONResponse    bool
}

// Client speaks the generative-language wire protocol to a single API host.
// The fallback chain decides which model it asks for.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
}

type wirePart struct {
	Text string `json:"text"`
}

type wireContent struct {
	Parts []wirePart `json:"parts"`
	Role  string     `json:"role,omitempty"`
}

type wireGenerationConfig struct {
	MaxOutputTokens  int     `json:"max_output_tokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"response_mime_type,omitempty"`
}

type wireRequest struct {
	Contents          []wireContent        `json:"contents"`
	SystemInstruction *wireContent         `json:"system_instruction,omitempty"`
	GenerationConfig  wireGenerationConfig `json:"generation_config"`
}

type wireResponse struct {
	Candidates []struct {
		Content struct {
			Parts []wirePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// APIError is a structured model-endpoint failure: the HTTP status plus the
// error body's code/status when one was present.
type APIError struct {
	Model      string
	StatusCode int
	Code       int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return "model api error"
	}
	if e.Message != "" {
		return fmt.Sprintf("model %s: http %d: %s (%s)", e.Model, e.StatusCode, e.Message, e.Status)
	}
	return fmt.Sprintf("model %s: http %d (%s)", e.Model, e.StatusCode, e.Status)
}

// Generate issues one call against one model. Exactly one attempt: retry
// semantics belong to the chain.
func (c *Client) Generate(ctx context.Context, model string, req Request) (string, error) {
	payload := wireRequest{
		Contents: []wireContent{{Parts: []wirePart{{Text: req.Prompt}}, Role: "user"}},
		GenerationConfig: wireGenerationConfig{
			MaxOutputTokens: req.MaxOutputTokens,
			Temperature:     req.Temperature,
		},
	}
	if req.System != "" {
		payload.SystemInstruction = &wireContent{Parts: []wirePart{{Text: req.System}}}
	}
	if req.JSONResponse {
		payload.GenerationConfig.ResponseMIMEType = "application/json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("model %s request: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", parseAPIError(model, resp)
	}

	var parsed wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode model %s response: %w", model, err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("model " + model + " returned no candidates")
	}
	return strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text), nil
}

func parseAPIError(model string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	apiErr := &APIError{
		Model:      model,
		StatusCode: resp.StatusCode,
	}

	var body struct {
		Error struct {
			Code    int    `json:"code"`
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		apiErr.Code = body.Error.Code
		apiErr.Status = body.Error.Status
		apiErr.Message = body.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
