package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

const streamDoneSentinel = "[DONE]"

// GenerateStream runs a streaming completion, invoking onChunk for each
// content delta as it arrives and returning the concatenated text. The
// stream ends at the [DONE] sentinel; malformed data lines are skipped,
// never fatal. The offline fallback is delivered as a single chunk.
func (c *Client) GenerateStream(ctx context.Context, prompt string, opts GenerateOpts, onChunk func(string)) (string, error) {
	if c.apiKey == "" {
		c.log.Warn("using offline fallback", zap.Error(&AuthError{Reason: "no API key configured"}))
		text := c.fallbackFor(prompt, opts)
		if onChunk != nil {
			onChunk(text)
		}
		return text, nil
	}

	req := c.buildRequest(prompt, opts, true)
	resp, err := c.do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.log.Warn("stream request failed, using offline fallback", zap.Error(err))
		text := c.fallbackFor(prompt, opts)
		if onChunk != nil {
			onChunk(text)
		}
		return text, nil
	}
	defer resp.Body.Close()

	var sb strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return sb.String(), ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == streamDoneSentinel {
			break
		}
		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Partial or garbled chunk, drop it and keep reading.
			continue
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			sb.WriteString(choice.Delta.Content)
			if onChunk != nil {
				onChunk(choice.Delta.Content)
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		c.log.Warn("stream interrupted", zap.Error(err), zap.Int("received", sb.Len()))
	}
	return sb.String(), nil
}
