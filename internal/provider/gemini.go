package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	geminiName         = "Gemini"
	geminiDefaultModel = "gemini-2.0-flash"
	geminiDefaultBase  = "https://generativelanguage.googleapis.com"
)

// Gemini talks to the Google generative language REST API.
type Gemini struct {
	apiKey string
	model  string
	base   string
	client *http.Client
}

func NewGemini(apiKey, model, endpoint string) *Gemini {
	if model == "" {
		model = geminiDefaultModel
	}
	base := geminiDefaultBase
	if endpoint != "" {
		base = strings.TrimRight(endpoint, "/")
	}
	return &Gemini{
		apiKey: apiKey,
		model:  model,
		base:   base,
		client: http.DefaultClient,
	}
}

func (g *Gemini) Name() string  { return geminiName }
func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Validate(ctx context.Context) error {
	url := fmt.Sprintf("%s/v1beta/models/%s?key=%s", g.base, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gemini model lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini model %q rejected: %s", g.model, resp.Status)
	}
	return nil
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	payload := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.base, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned status %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
