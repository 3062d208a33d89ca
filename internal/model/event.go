package model

// SessionEventType - тип события, излучаемого пайплайном обработки хода.
type SessionEventType string

const (
	EventNarrative         SessionEventType = "narrative"
	EventDiceRoll          SessionEventType = "dice_roll"
	EventStateTransition   SessionEventType = "state_transition"
	EventActionRestriction SessionEventType = "action_restriction"
	EventTurnEnd           SessionEventType = "turn_end"
)

// CheckType - вид механической проверки в DiceRollEvent.
type CheckType string

const (
	CheckAbility     CheckType = "ability_check"
	CheckSavingThrow CheckType = "saving_throw"
	CheckGroup       CheckType = "group_check"
)

// DiceRollEvent - результат броска, отправляемый наружу (UI/SSE).
type DiceRollEvent struct {
	CheckType     CheckType `json:"check_type"`
	CharacterID   string    `json:"character_id,omitempty"`
	CharacterName string    `json:"character_name,omitempty"`
	Ability       string    `json:"ability"`
	DC            int       `json:"dc"`
	Rolls         []int     `json:"rolls,omitempty"`
	RollUsed      int       `json:"roll_used,omitempty"`
	Modifier      int       `json:"modifier,omitempty"`
	Total         int       `json:"total,omitempty"`
	Success       bool      `json:"success"`
	Reason        string    `json:"reason,omitempty"`
	// Для group_check.
	SuccessCount int `json:"success_count,omitempty"`
	TotalCount   int `json:"total_count,omitempty"`
}

// StateTransitionEvent - запрос смены режима обработки (сейчас только "combat").
type StateTransitionEvent struct {
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// ActionRestrictionEvent - запрос ограничения круга действующих персонажей.
// Пустой список означает снятие всех ограничений.
type ActionRestrictionEvent struct {
	AllowedCharacterIDs []string `json:"allowed_character_ids"`
	Reason              string   `json:"reason,omitempty"`
}

// SessionEvent - размеченное объединение событий сессии. События транзиентны:
// производятся один раз, потребляются вызывающей стороной, в GameState не хранятся.
type SessionEvent struct {
	Type        SessionEventType        `json:"type"`
	Text        string                  `json:"text,omitempty"`
	DiceRoll    *DiceRollEvent          `json:"dice_roll,omitempty"`
	Transition  *StateTransitionEvent   `json:"transition,omitempty"`
	Restriction *ActionRestrictionEvent `json:"restriction,omitempty"`
}

// NewNarrativeEvent создает событие с фрагментом повествования.
func NewNarrativeEvent(text string) SessionEvent {
	return SessionEvent{Type: EventNarrative, Text: text}
}

// NewDiceRollEvent создает событие результата броска.
func NewDiceRollEvent(roll DiceRollEvent) SessionEvent {
	return SessionEvent{Type: EventDiceRoll, DiceRoll: &roll}
}

// NewStateTransitionEvent создает запрос перехода в другой режим.
func NewStateTransitionEvent(to, reason string) SessionEvent {
	return SessionEvent{Type: EventStateTransition, Transition: &StateTransitionEvent{To: to, Reason: reason}}
}

// NewActionRestrictionEvent создает запрос ограничения действий.
func NewActionRestrictionEvent(allowed []string, reason string) SessionEvent {
	if allowed == nil {
		allowed = []string{}
	}
	return SessionEvent{Type: EventActionRestriction, Restriction: &ActionRestrictionEvent{AllowedCharacterIDs: allowed, Reason: reason}}
}

// NewTurnEndEvent создает маркер завершения хода. Всегда последнее событие раунда.
func NewTurnEndEvent() SessionEvent {
	return SessionEvent{Type: EventTurnEnd}
}
