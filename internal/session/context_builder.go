package session

import (
	"fmt"
	"strings"

	"quest-server/internal/model"
	"quest-server/pkg/ai"
)

const narratorSystemPrompt = `Ты - ведущий текстовой ролевой игры в жанре темного фэнтези.
Веди повествование от второго лица, реагируя на действия всех игроков раунда сразу.
Когда исход действия неочевиден и зависит от способностей персонажа - запрашивай
проверку соответствующим инструментом и строй повествование на ее результате.
Не решай за игроков, не убивай персонажей без проваленных проверок.
Отвечай на русском языке, 2-4 абзаца на раунд.`

// Бюджет контекста по умолчанию; история обрезается по оценке токенов,
// системный промпт и состояние мира не обрезаются никогда.
const defaultContextTokenBudget = 6000

// PromptContextBuilder - сборщик контекста генерации по умолчанию: системный
// промпт ведущего, снимок состояния мира и хвост недавних событий, усеченный
// по токен-бюджету.
type PromptContextBuilder struct {
	model       string
	tokenBudget int
}

// NewPromptContextBuilder создает сборщик с бюджетом по умолчанию.
// model используется только для оценки токенов.
func NewPromptContextBuilder(model string) *PromptContextBuilder {
	return &PromptContextBuilder{model: model, tokenBudget: defaultContextTokenBudget}
}

var _ ContextBuilder = (*PromptContextBuilder)(nil)

// Build собирает историю сообщений для генератора.
func (b *PromptContextBuilder) Build(state *model.GameState, members []model.RoomMember) []ai.Message {
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: narratorSystemPrompt},
		{Role: ai.RoleSystem, Content: b.buildWorldSnapshot(state, members)},
	}

	used := ai.EstimateMessagesTokens(b.model, messages)
	events := trimEventsToBudget(b.model, state.WorldContext.RecentEvents, b.tokenBudget-used)
	if len(events) > 0 {
		messages = append(messages, ai.Message{
			Role:    ai.RoleSystem,
			Content: "Недавние события:\n- " + strings.Join(events, "\n- "),
		})
	}
	return messages
}

// buildWorldSnapshot сериализует состояние мира: локация, флаги, устойчивые
// факты, ростер с механическими и нарративными состояниями персонажей.
func (b *PromptContextBuilder) buildWorldSnapshot(state *model.GameState, members []model.RoomMember) string {
	var sb strings.Builder

	sb.WriteString("Состояние мира.\n")
	if state.Location.Name != "" {
		sb.WriteString(fmt.Sprintf("Локация: %s", state.Location.Name))
		if state.Location.Description != "" {
			sb.WriteString(" - " + state.Location.Description)
		}
		sb.WriteString("\n")
	}
	for k, v := range state.WorldContext.Flags {
		sb.WriteString(fmt.Sprintf("%s: %s\n", k, v))
	}

	if len(state.WorldContext.WorldFacts) > 0 {
		sb.WriteString("\nИзвестные факты:\n")
		for _, fact := range state.WorldContext.WorldFacts {
			sb.WriteString("- " + fact + "\n")
		}
	}

	sb.WriteString("\nПерсонажи:\n")
	for _, m := range members {
		if m.CharacterID == "" {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s (id: %s, игрок: %s)", memberDisplayName(m), m.CharacterID, m.Username))
		if cs, ok := state.CharacterStates[m.CharacterID]; ok {
			sb.WriteString(fmt.Sprintf(", HP %d/%d", cs.CurrentHP, cs.MaxHP))
		}
		if conditions := state.CharacterConditions[m.CharacterID]; len(conditions) > 0 {
			names := make([]string, 0, len(conditions))
			for _, c := range conditions {
				names = append(names, c.Name)
			}
			sb.WriteString(", состояния: " + strings.Join(names, ", "))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// trimEventsToBudget возвращает самый свежий хвост событий, умещающийся
// в остаток токен-бюджета. Порядок сохраняется.
func trimEventsToBudget(model string, events []string, budget int) []string {
	if budget <= 0 || len(events) == 0 {
		return nil
	}
	total := 0
	start := len(events)
	for i := len(events) - 1; i >= 0; i-- {
		total += ai.EstimateTokens(model, events[i])
		if total > budget {
			break
		}
		start = i
	}
	return events[start:]
}
