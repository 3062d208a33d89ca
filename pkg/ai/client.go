// Package ai предоставляет клиент генеративного бэкенда с поддержкой tool calling.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openaigo "github.com/sashabaranov/go-openai"
)

var log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

// ErrGenerationFailed - ошибка при обращении к генеративному бэкенду.
var ErrGenerationFailed = errors.New("ошибка генерации текста AI")

// Роли сообщений чата. Роль "tool" используется для возврата результатов
// tool call'ов в многораундовых диалогах.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message - одно сообщение истории чата.
// У assistant-сообщения ToolCalls может быть непустым при пустом Content.
// У tool-сообщения Content - JSON-строка результата, ToolCallID - id исходного вызова.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall - запрос бэкенда на вызов инструмента.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON-строка аргументов
}

// ToolDefinition - объявление инструмента в формате JSON Schema.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ChatOptions - параметры одного вызова Chat.
type ChatOptions struct {
	Tools       []ToolDefinition
	ToolChoice  string // "auto" или пусто
	Temperature *float64
	MaxTokens   *int
}

// UsageInfo содержит информацию об использовании токенов.
type UsageInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse - ответ бэкенда: либо текст, либо запросы tool call'ов (либо и то и другое).
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     UsageInfo
}

// HasToolCalls сообщает, запросил ли бэкенд выполнение инструментов.
func (r *ChatResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// ChatClient - интерфейс генеративного бэкенда.
type ChatClient interface {
	// Chat отправляет историю сообщений (и, опционально, объявления инструментов)
	// и возвращает ответ модели. opts может быть nil.
	Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*ChatResponse, error)
}

// Config содержит конфигурацию клиента.
type Config struct {
	ClientType string // "openai" или "ollama"
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
}

// NewClient создает клиент в зависимости от конфигурации.
func NewClient(cfg Config) (ChatClient, error) {
	switch strings.ToLower(cfg.ClientType) {
	case "openai":
		openaiConfig := openaigo.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			openaiConfig.BaseURL = cfg.BaseURL
		}
		openaiConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		client := openaigo.NewClientWithConfig(openaiConfig)
		log.Info().Str("base_url", cfg.BaseURL).Str("model", cfg.Model).Dur("timeout", cfg.Timeout).
			Msg("OpenAI клиент создан")
		return &openAIClient{client: client, model: cfg.Model}, nil
	case "ollama":
		return newOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("неизвестный тип AI клиента: '%s'", cfg.ClientType)
	}
}

func float32Val(f64 *float64) float32 {
	if f64 == nil {
		return 1.0
	}
	return float32(*f64)
}

func intVal(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}
