// Package vision transcribes handwritten essay photos into plain text using
// the provider's multimodal mode.
package vision

import (
	"context"
	"fmt"
	"strings"

	"essay-grader/internal/llm"
)

const invalidImageMarker = "[ERROR: INVALID IMAGE]"

const transcriptionPrompt = `You are an expert in manuscript transcription.
Your task is to faithfully transcribe this essay into digital text.
RULES:
1. Keep the original paragraphs.
2. Preserve the exact punctuation and spelling (even when wrong).
3. Do NOT add any comment of your own, only the essay text.
4. If parts are illegible, infer from context or use [illegible].
5. If the image is not an essay or is blank, return only: ` + invalidImageMarker

// VisionGenerator is the slice of the provider client the transcriber needs.
type VisionGenerator interface {
	GenerateVision(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

type Transcriber struct {
	gen   VisionGenerator
	retry llm.RetryPolicy
}

func NewTranscriber(gen VisionGenerator, retry llm.RetryPolicy) *Transcriber {
	return &Transcriber{gen: gen, retry: retry}
}

// Transcribe returns the transcribed essay text, or an error when the image
// does not contain a readable essay.
func (t *Transcriber) Transcribe(ctx context.Context, image []byte, mimeType string) (string, error) {
	out, err := t.retry.Do(ctx, func() (string, error) {
		return t.gen.GenerateVision(ctx, transcriptionPrompt, image, mimeType)
	})
	if err != nil {
		return "", fmt.Errorf("transcribe photo: %w", err)
	}
	text := strings.TrimSpace(out)
	if strings.Contains(text, invalidImageMarker) {
		return "", fmt.Errorf("the submitted image does not look like a valid essay")
	}
	return text, nil
}
