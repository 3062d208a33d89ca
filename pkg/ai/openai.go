package ai

import (
	"context"
	"fmt"
	"time"

	openaigo "github.com/sashabaranov/go-openai"
)

// openAIClient реализует ChatClient с использованием go-openai.
type openAIClient struct {
	client *openaigo.Client
	model  string
}

// Chat отправляет историю сообщений и объявления инструментов в Chat Completions API.
func (c *openAIClient) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: пустая история сообщений", ErrGenerationFailed)
	}

	req := openaigo.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
	}
	if opts != nil {
		req.Temperature = float32Val(opts.Temperature)
		req.MaxTokens = intVal(opts.MaxTokens)
		if len(opts.Tools) > 0 {
			req.Tools = toOpenAITools(opts.Tools)
			if opts.ToolChoice != "" {
				req.ToolChoice = opts.ToolChoice
			}
		}
	}

	startTime := time.Now()
	log.Debug().Str("model", c.model).Int("messages", len(messages)).Msg("Отправка запроса к OpenAI")

	resp, err := c.client.CreateChatCompletion(ctx, req)
	duration := time.Since(startTime)

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Str("model", c.model).Msg("Ошибка от OpenAI API")
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		aiRequestsTotal.WithLabelValues(c.model, "error_empty_response").Inc()
		return nil, fmt.Errorf("%w: получен пустой ответ", ErrGenerationFailed)
	}

	aiRequestsTotal.WithLabelValues(c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	choice := resp.Choices[0].Message
	out := &ChatResponse{
		Content:   choice.Content,
		ToolCalls: fromOpenAIToolCalls(choice.ToolCalls),
	}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = UsageInfo{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
		aiPromptTokens.WithLabelValues(c.model).Observe(float64(resp.Usage.PromptTokens))
		aiCompletionTokens.WithLabelValues(c.model).Observe(float64(resp.Usage.CompletionTokens))
	}

	log.Debug().Dur("duration", duration).Int("tool_calls", len(out.ToolCalls)).
		Int("content_len", len(out.Content)).Msg("Ответ от OpenAI API получен")
	return out, nil
}

func toOpenAIMessages(messages []Message) []openaigo.ChatCompletionMessage {
	out := make([]openaigo.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openaigo.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openaigo.ToolCall{
				ID:   tc.ID,
				Type: openaigo.ToolTypeFunction,
				Function: openaigo.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openaigo.Tool {
	out := make([]openaigo.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openaigo.Tool{
			Type: openaigo.ToolTypeFunction,
			Function: &openaigo.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func fromOpenAIToolCalls(calls []openaigo.ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(calls))
	for _, tc := range calls {
		out = append(out, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}
