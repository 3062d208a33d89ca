package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// ollamaClient реализует ChatClient с использованием ollama/api.
type ollamaClient struct {
	client  *api.Client
	model   string
	timeout time.Duration
}

// newOllamaClient создает клиент для взаимодействия с Ollama.
func newOllamaClient(cfg Config) (ChatClient, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	// api.NewClient требует URL без суффикса /v1.
	ollamaBaseURL := strings.TrimSuffix(cfg.BaseURL, "/v1")
	ollamaBaseURL = strings.TrimSuffix(ollamaBaseURL, "/")

	parsedURL, err := url.Parse(ollamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга Ollama Base URL '%s': %w", ollamaBaseURL, err)
	}

	client := api.NewClient(parsedURL, httpClient)
	log.Info().Str("base_url", ollamaBaseURL).Str("model", cfg.Model).Dur("timeout", cfg.Timeout).
		Msg("Ollama клиент создан")

	return &ollamaClient{
		client:  client,
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Chat отправляет историю сообщений в Ollama. Объявления инструментов передаются
// через JSON-перекодирование в api.Tools - формат у Ollama совместим с OpenAI.
func (c *ollamaClient) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: пустая история сообщений", ErrGenerationFailed)
	}

	req := &api.ChatRequest{
		Model:    c.model,
		Messages: toOllamaMessages(messages),
		Stream:   func(b bool) *bool { return &b }(false),
	}
	if opts != nil {
		req.Options = map[string]interface{}{}
		if opts.Temperature != nil {
			req.Options["temperature"] = *opts.Temperature
		}
		if opts.MaxTokens != nil {
			req.Options["num_predict"] = *opts.MaxTokens
		}
		if len(opts.Tools) > 0 {
			tools, err := toOllamaTools(opts.Tools)
			if err != nil {
				return nil, fmt.Errorf("%w: ошибка подготовки инструментов: %v", ErrGenerationFailed, err)
			}
			req.Tools = tools
		}
	}

	requestCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	startTime := time.Now()
	log.Debug().Str("model", c.model).Int("messages", len(messages)).Msg("Отправка запроса к Ollama")

	var resp api.ChatResponse
	err := c.client.Chat(requestCtx, req, func(r api.ChatResponse) error {
		resp = r // сохраняем последний (полный) ответ
		return nil
	})
	duration := time.Since(startTime)

	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Str("model", c.model).Msg("Ошибка от Ollama API")
		aiRequestsTotal.WithLabelValues(c.model, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	aiRequestsTotal.WithLabelValues(c.model, "success").Inc()
	aiRequestDuration.WithLabelValues(c.model).Observe(duration.Seconds())

	out := &ChatResponse{
		Content:   resp.Message.Content,
		ToolCalls: fromOllamaToolCalls(resp.Message.ToolCalls),
	}
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
		out.Usage = UsageInfo{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		}
		aiPromptTokens.WithLabelValues(c.model).Observe(float64(resp.PromptEvalCount))
		aiCompletionTokens.WithLabelValues(c.model).Observe(float64(resp.EvalCount))
	}

	log.Debug().Dur("duration", duration).Int("tool_calls", len(out.ToolCalls)).
		Int("content_len", len(out.Content)).Msg("Ответ от Ollama API получен")
	return out, nil
}

func toOllamaMessages(messages []Message) []api.Message {
	out := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		msg := api.Message{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			var args api.ToolCallFunctionArguments
			if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
				// Невалидные аргументы не должны ломать историю; передаем как есть в контенте.
				args = api.ToolCallFunctionArguments{"raw": tc.Arguments}
			}
			msg.ToolCalls = append(msg.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{Name: tc.Name, Arguments: args},
			})
		}
		out = append(out, msg)
	}
	return out
}

// toOllamaTools перекодирует объявления инструментов через JSON, чтобы не
// зависеть от внутренней структуры api.ToolFunction.
func toOllamaTools(tools []ToolDefinition) (api.Tools, error) {
	wrapped := make([]map[string]interface{}, 0, len(tools))
	for _, t := range tools {
		wrapped = append(wrapped, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			},
		})
	}
	data, err := json.Marshal(wrapped)
	if err != nil {
		return nil, err
	}
	var out api.Tools
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func fromOllamaToolCalls(calls []api.ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(calls))
	for i, tc := range calls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		out = append(out, ToolCall{
			// Ollama не присваивает id вызовам; синтезируем стабильный в пределах ответа.
			ID:        fmt.Sprintf("call_%d", i),
			Name:      tc.Function.Name,
			Arguments: string(args),
		})
	}
	return out
}
