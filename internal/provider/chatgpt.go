package provider

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

const (
	chatGPTName         = "ChatGPT"
	chatGPTDefaultModel = "gpt-4.1-nano"
	chatGPTTTSModel     = "gpt-4o-mini-tts"
	chatGPTTTSVoice     = "coral"

	// the speech endpoint returns 24kHz mono 16-bit PCM
	chatGPTTTSSampleRate = 24000
)

// ChatGPT talks to the OpenAI API. It also declares the remote speech
// synthesis capability.
type ChatGPT struct {
	model  string
	client *openai.Client
}

func NewChatGPT(apiKey, model, endpoint string) *ChatGPT {
	if model == "" {
		model = chatGPTDefaultModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}
	return &ChatGPT{
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}
}

func (c *ChatGPT) Name() string  { return chatGPTName }
func (c *ChatGPT) Model() string { return c.model }

func (c *ChatGPT) Validate(ctx context.Context) error {
	if _, err := c.client.GetModel(ctx, c.model); err != nil {
		return fmt.Errorf("openai model %q rejected: %w", c.model, err)
	}
	return nil
}

func (c *ChatGPT) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// SynthesizeSpeech renders text through the OpenAI speech endpoint and
// returns mono float32 samples.
func (c *ChatGPT) SynthesizeSpeech(ctx context.Context, text string) ([]float32, int, error) {
	resp, err := c.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(chatGPTTTSModel),
		Input:          text,
		Voice:          openai.SpeechVoice(chatGPTTTSVoice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("openai speech: %w", err)
	}
	defer resp.Close()

	raw, err := io.ReadAll(resp)
	if err != nil {
		return nil, 0, fmt.Errorf("read openai speech: %w", err)
	}
	samples, err := pcm16ToFloat32(raw)
	if err != nil {
		return nil, 0, err
	}
	return samples, chatGPTTTSSampleRate, nil
}

func pcm16ToFloat32(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("pcm payload not aligned: %d bytes", len(raw))
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768
	}
	return samples, nil
}
