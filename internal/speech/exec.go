package speech

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// execRuntime shells out to an external inference process. One JSON request
// goes to stdin, one JSON line comes back with base64 little-endian float32
// samples.
type execRuntime struct {
	cmd        []string
	sampleRate int
	mu         sync.Mutex
}

type execRequest struct {
	Tokens     []int `json:"tokens"`
	SampleRate int   `json:"sample_rate"`
}

type execResponse struct {
	SamplesBase64 string `json:"samples_base64"`
	Length        int    `json:"length"`
}

func NewExecRuntime(command string, sampleRate int) (Runtime, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse speech command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("speech command empty")
	}
	return &execRuntime{cmd: args, sampleRate: sampleRate}, nil
}

func (e *execRuntime) Generate(ctx context.Context, tokens []int) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	payload, err := json.Marshal(execRequest{Tokens: tokens, SampleRate: e.sampleRate})
	if err != nil {
		return Result{}, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(payload)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, err
	}
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("start speech command: %w", err)
	}

	reader := bufio.NewReader(stdout)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		cmd.Wait()
		return Result{}, fmt.Errorf("read speech response: %w", err)
	}

	var resp execResponse
	if err := json.Unmarshal(bytes.TrimSpace(line), &resp); err != nil {
		cmd.Wait()
		return Result{}, fmt.Errorf("decode speech response: %w", err)
	}
	if err := cmd.Wait(); err != nil {
		return Result{}, fmt.Errorf("speech command failed: %w", err)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.SamplesBase64)
	if err != nil {
		return Result{}, fmt.Errorf("decode speech samples: %w", err)
	}
	samples, err := decodeFloat32LE(raw)
	if err != nil {
		return Result{}, err
	}
	length := resp.Length
	if length <= 0 || length > len(samples) {
		length = len(samples)
	}
	return Result{Samples: samples, Length: length}, nil
}

func (e *execRuntime) Close() {}

func decodeFloat32LE(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("sample payload not aligned: %d bytes", len(raw))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}
