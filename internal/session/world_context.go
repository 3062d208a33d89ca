package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quest-server/internal/model"
	"quest-server/internal/utils"
	"quest-server/pkg/ai"
)

const extractionSystemPrompt = `Ты - экстрактор памяти мира для текстовой ролевой игры.
По итогам раунда верни СТРОГО один JSON-объект без пояснений:
{
  "world_memory": {
    "recent_events": ["краткие новые события раунда"],
    "world_facts": ["только ДЕЙСТВИТЕЛЬНО новые устойчивые факты мира"],
    "flags": {"ключ": "только изменившиеся в этом раунде значения (location, time и т.п.)"}
  },
  "character_conditions": [
    {
      "character_id": "id персонажа",
      "add": [{"name": "...", "source": "...", "category": "...", "expires": "...", "mechanical_effect": "..."}],
      "remove": ["имя или id снятого состояния"]
    }
  ]
}
Не повторяй уже известные факты. Пустые списки допустимы.`

// worldContextPatch - структурированный результат экстракции.
type worldContextPatch struct {
	WorldMemory struct {
		RecentEvents []string          `json:"recent_events"`
		WorldFacts   []string          `json:"world_facts"`
		Flags        map[string]string `json:"flags"`
	} `json:"world_memory"`
	CharacterConditions []characterConditionPatch `json:"character_conditions"`
}

type characterConditionPatch struct {
	CharacterID string                  `json:"character_id"`
	Add         []model.ActiveCondition `json:"add"`
	Remove      []string                `json:"remove"`
}

// WorldContextUpdater после финализации нарратива хода извлекает из него
// структурированные обновления памяти мира и накладывает их на GameState.
// Любой сбой (бэкенд, парсинг) превращается в no-op: этот шаг никогда не
// блокирует и не роняет уже завершенный ход.
type WorldContextUpdater struct {
	client          ai.ChatClient
	logger          *zap.Logger
	maxRecentEvents int
	maxWorldFacts   int
}

// NewWorldContextUpdater создает апдейтер с лимитами памяти по умолчанию.
func NewWorldContextUpdater(client ai.ChatClient, logger *zap.Logger) *WorldContextUpdater {
	return &WorldContextUpdater{
		client:          client,
		logger:          logger.Named("WorldContextUpdater"),
		maxRecentEvents: model.MaxRecentEvents,
		maxWorldFacts:   model.MaxWorldFacts,
	}
}

// Update выполняет один вызов экстракции и применяет патч к state.
// Мутации происходят только после успешного парсинга целиком.
func (u *WorldContextUpdater) Update(ctx context.Context, narrative string, actions []model.PlayerAction, state *model.GameState, members []model.RoomMember) {
	if strings.TrimSpace(narrative) == "" {
		u.logger.Debug("Пустой нарратив, экстракция пропущена", zap.String("room_id", state.RoomID))
		return
	}

	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: extractionSystemPrompt},
		{Role: ai.RoleUser, Content: u.buildExtractionInput(narrative, actions, state, members)},
	}

	resp, err := u.client.Chat(ctx, messages, nil)
	if err != nil {
		worldContextUpdateFailures.Inc()
		u.logger.Warn("Ошибка вызова бэкенда при экстракции памяти мира",
			zap.String("room_id", state.RoomID), zap.Error(err))
		return
	}

	extracted := utils.ExtractJSONContent(resp.Content)
	if extracted == "" {
		worldContextUpdateFailures.Inc()
		u.logger.Warn("В ответе экстрактора не найден JSON",
			zap.String("room_id", state.RoomID),
			zap.String("raw", utils.StringShort(resp.Content, 200)))
		return
	}

	var patch worldContextPatch
	if err := json.Unmarshal([]byte(extracted), &patch); err != nil {
		worldContextUpdateFailures.Inc()
		u.logger.Warn("Невозможно разобрать патч памяти мира",
			zap.String("room_id", state.RoomID), zap.Error(err))
		return
	}

	u.apply(state, &patch)
	u.logger.Info("Память мира обновлена",
		zap.String("room_id", state.RoomID),
		zap.Int("new_events", len(patch.WorldMemory.RecentEvents)),
		zap.Int("new_facts", len(patch.WorldMemory.WorldFacts)),
		zap.Int("flag_changes", len(patch.WorldMemory.Flags)),
		zap.Int("condition_patches", len(patch.CharacterConditions)),
	)
}

// buildExtractionInput собирает пользовательскую часть промпта: текущие
// нарративные состояния персонажей, действия раунда и финальный нарратив.
func (u *WorldContextUpdater) buildExtractionInput(narrative string, actions []model.PlayerAction, state *model.GameState, members []model.RoomMember) string {
	var b strings.Builder

	b.WriteString("Текущие состояния персонажей:\n")
	if len(state.CharacterConditions) == 0 {
		b.WriteString("(нет)\n")
	}
	for characterID, conditions := range state.CharacterConditions {
		parts := make([]string, 0, len(conditions))
		for _, c := range conditions {
			parts = append(parts, fmt.Sprintf("%s(%s)", c.Name, c.Expires))
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", characterID, strings.Join(parts, ", ")))
	}

	b.WriteString("\nУчастники:\n")
	for _, m := range members {
		b.WriteString(fmt.Sprintf("%s - %s\n", m.CharacterID, memberDisplayName(m)))
	}

	b.WriteString("\nДействия раунда:\n")
	b.WriteString(FormatActions(actions))

	b.WriteString("\n\nНарратив раунда:\n")
	b.WriteString(narrative)

	return b.String()
}

// apply накладывает патч: ограниченные списки с FIFO-вытеснением, слияние
// флагов по ключам, снятие и добавление нарративных состояний.
func (u *WorldContextUpdater) apply(state *model.GameState, patch *worldContextPatch) {
	wc := &state.WorldContext
	wc.RecentEvents = appendBounded(wc.RecentEvents, patch.WorldMemory.RecentEvents, u.maxRecentEvents)
	wc.WorldFacts = appendBounded(wc.WorldFacts, patch.WorldMemory.WorldFacts, u.maxWorldFacts)

	if len(patch.WorldMemory.Flags) > 0 {
		if wc.Flags == nil {
			wc.Flags = make(map[string]string, len(patch.WorldMemory.Flags))
		}
		for k, v := range patch.WorldMemory.Flags {
			wc.Flags[k] = v
		}
	}

	for _, cp := range patch.CharacterConditions {
		if cp.CharacterID == "" {
			continue
		}
		if state.CharacterConditions == nil {
			state.CharacterConditions = make(map[string][]model.ActiveCondition)
		}
		conditions := state.CharacterConditions[cp.CharacterID]
		conditions = removeConditions(conditions, cp.Remove)
		for _, add := range cp.Add {
			add.ID = uuid.NewString()
			conditions = append(conditions, add)
		}
		state.CharacterConditions[cp.CharacterID] = conditions
	}

	state.Touch()
}

// appendBounded добавляет элементы в конец списка и вытесняет старейшие,
// если размер превысил лимит. Относительный порядок сохраняется.
func appendBounded(list, additions []string, max int) []string {
	for _, item := range additions {
		if strings.TrimSpace(item) == "" {
			continue
		}
		list = append(list, item)
	}
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

// removeConditions снимает состояния по совпадению id либо имени.
func removeConditions(conditions []model.ActiveCondition, refs []string) []model.ActiveCondition {
	if len(refs) == 0 {
		return conditions
	}
	out := conditions[:0]
	for _, c := range conditions {
		removed := false
		for _, ref := range refs {
			if ref == c.ID || strings.EqualFold(ref, c.Name) {
				removed = true
				break
			}
		}
		if !removed {
			out = append(out, c)
		}
	}
	return out
}
