package ai

import (
	"github.com/pkoukk/tiktoken-go"
)

// EstimateTokens оценивает количество токенов в тексте для заданной модели.
// Если токенизатор для модели недоступен, используется грубая оценка len/4.
func EstimateTokens(model, text string) int {
	tke, err := tiktoken.EncodingForModel(model)
	if err != nil {
		tke, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return len(text) / 4
		}
	}
	return len(tke.Encode(text, nil, nil))
}

// EstimateMessagesTokens оценивает суммарный размер истории сообщений.
func EstimateMessagesTokens(model string, messages []Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateTokens(model, m.Content)
	}
	return total
}
