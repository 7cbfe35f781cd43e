// Package summary produces model-generated digests of email bodies via
// Amazon Bedrock.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const (
	// DefaultModelID is the default Bedrock model for summarization.
	DefaultModelID = "anthropic.claude-haiku-4-5-20251001-v1:0"
	// DefaultMaxLength is the default maximum digest length in characters.
	DefaultMaxLength = 400
	// maxBodyInput is the maximum body text chars sent to the model.
	maxBodyInput = 6000
	// anthropicVersion is the required API version for Claude on Bedrock.
	anthropicVersion = "bedrock-2023-05-31"
)

// ErrEmptyBody is returned when the email has no text to summarize.
var ErrEmptyBody = errors.New("email has no body text")

// Input is the email content handed to the summarizer.
type Input struct {
	Subject string
	Sender  string
	Date    string
	Body    string
}

// Summarizer produces a digest of one email.
type Summarizer interface {
	Summarize(ctx context.Context, in Input) (string, error)
}

// BedrockInvoker abstracts Bedrock model invocation for dependency inversion.
type BedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Config holds configuration for the digest generator.
type Config struct {
	ModelID   string
	MaxLength int
}

// Digester generates email digests via Amazon Bedrock Claude models.
type Digester struct {
	client    BedrockInvoker
	modelID   string
	maxLength int
}

// NewDigester creates a new Digester.
func NewDigester(client BedrockInvoker, cfg Config) *Digester {
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = DefaultModelID
	}
	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Digester{
		client:    client,
		modelID:   modelID,
		maxLength: maxLength,
	}
}

// claudeRequest is the Claude Messages API request format for Bedrock.
type claudeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the Claude Messages API response format.
type claudeResponse struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const promptTemplate = `Summarize this email in two or three sentences.

- State who it is from and what they want or report
- Call out any deadline, amount, or requested action explicitly
- For spam, phishing, or marketing say so in the first sentence
- Output ONLY the summary. No preamble, no "This email".

Subject: %s
From: %s
Date: %s
---
%s`

// Summarize generates a digest of one email.
func (d *Digester) Summarize(ctx context.Context, in Input) (string, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return "", ErrEmptyBody
	}
	if len(body) > maxBodyInput {
		body = body[:maxBodyInput]
	}

	prompt := fmt.Sprintf(promptTemplate, in.Subject, in.Sender, in.Date, body)

	reqBody, err := json.Marshal(claudeRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        d.maxLength,
		Messages: []message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	modelID := d.modelID
	output, err := d.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId: &modelID,
		Body:    reqBody,
	})
	if err != nil {
		return "", fmt.Errorf("invoke model: %w", err)
	}

	var resp claudeResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", nil
	}

	digest := strings.TrimSpace(resp.Content[0].Text)
	return truncateAtWordBoundary(digest, d.maxLength), nil
}

// truncateAtWordBoundary truncates text to maxLen characters at a word
// boundary, appending "..." if truncated.
func truncateAtWordBoundary(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}

	cutoff := maxLen - 3
	if cutoff <= 0 {
		return text[:maxLen]
	}

	lastSpace := strings.LastIndex(text[:cutoff], " ")
	if lastSpace > 0 {
		return text[:lastSpace] + "..."
	}
	return text[:cutoff] + "..."
}
