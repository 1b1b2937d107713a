// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/helix/services/helix/datatypes"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider is the live completion backend.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates the live backend. baseURL may be empty to
// use the SDK default; non-empty values point at proxies or compatible
// servers.
func NewOpenAIProvider(apiKey, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is missing")
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}, nil
}

func (o *OpenAIProvider) Name() string { return "openai" }

// Complete performs one chat-completion attempt against the provider.
func (o *OpenAIProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: req.SystemPrompt,
	})
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	ccReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
	}
	if req.MaxOutputTokens != nil {
		ccReq.MaxCompletionTokens = *req.MaxOutputTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, ccReq)
	if err != nil {
		kind := classifyOpenAIError(err)
		slog.Warn("OpenAI call failed", "kind", kind, "error", err)
		return nil, &datatypes.UpstreamError{Kind: kind, Attempts: 1, Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &datatypes.UpstreamError{
			Kind:     datatypes.UpstreamRejected,
			Attempts: 1,
			Err:      fmt.Errorf("provider returned no choices"),
		}
	}

	result := &CompletionResult{
		Text:       resp.Choices[0].Message.Content,
		ResponseID: resp.ID,
		Model:      resp.Model,
	}
	result.Usage = &datatypes.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return result, nil
}

// classifyOpenAIError maps SDK errors onto the upstream taxonomy.
//
// Rate limits and 5xx responses are transient; 4xx responses mean the
// request itself was refused and retrying cannot help.
func classifyOpenAIError(err error) datatypes.UpstreamErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return datatypes.UpstreamTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return datatypes.UpstreamRateLimited
		case apiErr.HTTPStatusCode >= 500:
			return datatypes.UpstreamUnreachable
		default:
			return datatypes.UpstreamRejected
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.HTTPStatusCode == http.StatusTooManyRequests {
			return datatypes.UpstreamRateLimited
		}
		if reqErr.HTTPStatusCode >= 500 {
			return datatypes.UpstreamUnreachable
		}
		return datatypes.UpstreamRejected
	}

	// Network-level failure: DNS, connect refused, reset.
	return datatypes.UpstreamUnreachable
}

var _ Provider = (*OpenAIProvider)(nil)
