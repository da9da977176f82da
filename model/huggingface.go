package model

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

	"livestock/types"
)

const (
	DefaultBaseURL = "https://api-inference.huggingface.co"
	DefaultTimeout = 60 * time.Second
)

// GenerateOptions задает параметры генерации
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Generator produces text with a named model so callers can swap to a fallback.
type Generator interface {
	Generate(ctx context.Context, modelID, prompt string, opts GenerateOptions) (string, error)
}

// HFClient talks to the Hugging Face inference API for both embeddings and text generation.
type HFClient struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	timeout        time.Duration
	client         *http.Client
}

type embeddingRequest struct {
	Inputs  string         `json:"inputs"`
	Options requestOptions `json:"options"`
}

type requestOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

type generationRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters generationParameters `json:"parameters"`
	Options    requestOptions       `json:"options"`
}

type generationParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens,omitempty"`
	Temperature    float64 `json:"temperature,omitempty"`
	TopP           float64 `json:"top_p,omitempty"`
	ReturnFullText bool    `json:"return_full_text"`
}

type generationResponse struct {
	GeneratedText string `json:"generated_text"`
}

func NewHFClient(cfg types.InferenceConfig) *HFClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &HFClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		embeddingModel: cfg.EmbeddingModel,
		timeout:        cfg.Timeout,
		client:         &http.Client{},
	}
}

func (c *HFClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, types.ErrServiceUnavailable
	}

	body, err := c.post(ctx, c.embeddingModel, embeddingRequest{
		Inputs:  text,
		Options: requestOptions{WaitForModel: true},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbeddingFailed, err)
	}

	vec, err := decodeEmbedding(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrEmbeddingFailed, err)
	}
	return vec, nil
}

func (c *HFClient) Generate(ctx context.Context, modelID, prompt string, opts GenerateOptions) (string, error) {
	if c.apiKey == "" {
		return "", types.ErrServiceUnavailable
	}

	body, err := c.post(ctx, modelID, generationRequest{
		Inputs: prompt,
		Parameters: generationParameters{
			MaxNewTokens:   opts.MaxTokens,
			Temperature:    opts.Temperature,
			TopP:           opts.TopP,
			ReturnFullText: false,
		},
		Options: requestOptions{WaitForModel: true},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", types.ErrGenerationFailed, modelID, err)
	}

	text, err := decodeGeneration(body)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", types.ErrGenerationFailed, modelID, err)
	}
	return text, nil
}

func (c *HFClient) post(ctx context.Context, modelID string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/models/"+modelID, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// decodeEmbedding accepts a flat vector or a batch of one vector.
func decodeEmbedding(body []byte) ([]float32, error) {
	var flat []float64
	if err := json.Unmarshal(body, &flat); err == nil && len(flat) > 0 {
		return toFloat32(flat), nil
	}
	var nested [][]float64
	if err := json.Unmarshal(body, &nested); err == nil && len(nested) > 0 && len(nested[0]) > 0 {
		return toFloat32(nested[0]), nil
	}
	return nil, errors.New("no embedding returned")
}

func decodeGeneration(body []byte) (string, error) {
	var list []generationResponse
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 {
		if text := strings.TrimSpace(list[0].GeneratedText); text != "" {
			return text, nil
		}
	}
	var single generationResponse
	if err := json.Unmarshal(body, &single); err == nil {
		if text := strings.TrimSpace(single.GeneratedText); text != "" {
			return text, nil
		}
	}
	return "", errors.New("empty generation")
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
