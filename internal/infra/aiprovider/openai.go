package aiprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// OpenAI is a thin client for the OpenAI images API. No official Go SDK is
// pulled in; the surface we need is one JSON endpoint.
type OpenAI struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	log        *slog.Logger
}

func NewOpenAI(apiKey, baseURL, model string, log *slog.Logger) *OpenAI {
	return &OpenAI{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
		log: log,
	}
}

func (o *OpenAI) Name() string { return o.model }

type openaiImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type openaiImageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate calls the generations endpoint for text-only requests and the
// edits endpoint when reference images are present, so the source image
// actually conditions the output instead of being dropped.
func (o *OpenAI) Generate(ctx context.Context, req Request) ([]byte, error) {
	var httpReq *http.Request
	var err error
	if len(req.ReferenceImages) > 0 {
		httpReq, err = o.editsRequest(ctx, req)
	} else {
		httpReq, err = o.generationsRequest(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	o.log.Info("calling openai images", "model", o.model, "path", httpReq.URL.Path)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var parsed openaiImageResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("openai error: status %d", resp.StatusCode)
	}
	if len(parsed.Data) == 0 || parsed.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("no image data in openai response")
	}

	data, err := base64.StdEncoding.DecodeString(parsed.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}
	return data, nil
}

func (o *OpenAI) generationsRequest(ctx context.Context, req Request) (*http.Request, error) {
	payload := openaiImageRequest{
		Model:          o.model,
		Prompt:         req.Prompt,
		N:              1,
		Size:           sizeFor(req.AspectRatio, req.Resolution),
		ResponseFormat: "b64_json",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func (o *OpenAI) editsRequest(ctx context.Context, req Request) (*http.Request, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	for i, img := range req.ReferenceImages {
		part, err := writer.CreateFormFile("image[]", fmt.Sprintf("reference-%d.png", i))
		if err != nil {
			return nil, fmt.Errorf("build image part: %w", err)
		}
		if _, err := part.Write(img); err != nil {
			return nil, fmt.Errorf("write image part: %w", err)
		}
	}

	fields := map[string]string{
		"model":           o.model,
		"prompt":          req.Prompt,
		"n":               strconv.Itoa(1),
		"size":            sizeFor(req.AspectRatio, req.Resolution),
		"response_format": "b64_json",
	}
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/images/edits", &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())
	return httpReq, nil
}

// sizeFor maps our aspect-ratio/resolution form fields onto the fixed sizes
// the images API accepts. Resolution is advisory; the API only offers three.
func sizeFor(aspectRatio, _ string) string {
	switch aspectRatio {
	case "16:9", "3:2", "4:3":
		return "1536x1024"
	case "9:16", "2:3", "3:4":
		return "1024x1536"
	default:
		return "1024x1024"
	}
}
