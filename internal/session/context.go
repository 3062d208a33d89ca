package session

import (
	"fmt"
	"strings"

	"quest-server/internal/model"
	"quest-server/pkg/ai"
)

// SessionContext - общий контекст сессии, доступный агентам во время раунда:
// состояние мира и ростер комнаты. Агенты не владеют им, только читают
// (MechanicsAgent) или патчат (WorldContextUpdater).
type SessionContext struct {
	State   *model.GameState
	Members []model.RoomMember
}

// CharacterIDs возвращает id всех персонажей ростера (для групповых проверок).
func (sc *SessionContext) CharacterIDs() []string {
	ids := make([]string, 0, len(sc.Members))
	for _, m := range sc.Members {
		if m.CharacterID != "" {
			ids = append(ids, m.CharacterID)
		}
	}
	return ids
}

// ResolveCharacter разрешает ссылку на персонажа из аргументов tool call:
// сначала по id, затем по имени персонажа и имени пользователя (без учета регистра).
func (sc *SessionContext) ResolveCharacter(ref string) (id, displayName string, err error) {
	if ref == "" {
		return "", "", fmt.Errorf("пустая ссылка на персонажа")
	}
	for _, m := range sc.Members {
		if m.CharacterID == ref {
			return m.CharacterID, memberDisplayName(m), nil
		}
	}
	lower := strings.ToLower(ref)
	for _, m := range sc.Members {
		if strings.ToLower(m.CharacterName) == lower || strings.ToLower(m.Username) == lower {
			if m.CharacterID == "" {
				return "", "", fmt.Errorf("у участника '%s' нет персонажа", m.Username)
			}
			return m.CharacterID, memberDisplayName(m), nil
		}
	}
	return "", "", fmt.Errorf("персонаж '%s' не найден в комнате", ref)
}

func memberDisplayName(m model.RoomMember) string {
	if m.CharacterName != "" {
		return m.CharacterName
	}
	return m.Username
}

// FormatActions форматирует действия раунда в порядке подачи:
// по строке "[имя] текст" на каждое действие.
func FormatActions(actions []model.PlayerAction) string {
	lines := make([]string, 0, len(actions))
	for _, a := range actions {
		lines = append(lines, fmt.Sprintf("[%s] %s", a.Username, a.Content))
	}
	return strings.Join(lines, "\n")
}

// ContextBuilder собирает историю сообщений для генератора из текущего
// состояния. Чистая функция состояния; внутренняя структура сборки не входит
// в контракт ядра.
type ContextBuilder interface {
	Build(state *model.GameState, members []model.RoomMember) []ai.Message
}
