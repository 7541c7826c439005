package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"doc-chat-be/internal/apperr"
)

const geminiEmbeddingModel = "text-embedding-004"

// GeminiProvider implements Provider against the Gemini embedContent REST
// endpoint.
type GeminiProvider struct {
	ApiKey string
	Client *http.Client
}

func NewGeminiProvider(apiKey string) Provider {
	return &GeminiProvider{
		ApiKey: apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type geminiEmbeddingRequest struct {
	Model   string               `json:"model"`
	Content geminiRequestContent `json:"content"`
}

type geminiRequestContent struct {
	Parts []geminiRequestPart `json:"parts"`
}

type geminiRequestPart struct {
	Text string `json:"text"`
}

type geminiEmbeddingResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

func (p *GeminiProvider) ModelID() string {
	return "gemini/" + geminiEmbeddingModel
}

func (p *GeminiProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	geminiReq := geminiEmbeddingRequest{
		Model: geminiEmbeddingModel,
		Content: geminiRequestContent{
			Parts: []geminiRequestPart{{Text: text}},
		},
	}
	jsonBody, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1/models/%s:embedContent",
		geminiEmbeddingModel,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", p.ApiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.Client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrEmbeddingUnavailable, "gemini request failed", err)
	}
	defer res.Body.Close()

	resByte, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrEmbeddingUnavailable, "gemini response read failed", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, apperr.Newf(apperr.ErrEmbeddingUnavailable,
			"gemini embedding error, code %d, body %s", res.StatusCode, string(resByte))
	}

	var resEmbedding geminiEmbeddingResponse
	if err := json.Unmarshal(resByte, &resEmbedding); err != nil {
		return nil, apperr.Wrap(apperr.ErrEmbeddingUnavailable, "gemini response decode failed", err)
	}

	return normalizeVector(resEmbedding.Embedding.Values), nil
}
