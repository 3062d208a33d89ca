package model

import (
	"time"
)

// Границы "памяти мира". Старые записи вытесняются первыми (FIFO).
const (
	MaxRecentEvents = 12
	MaxWorldFacts   = 50
)

// Location описывает текущее место действия комнаты.
type Location struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RuleCondition - механическое состояние персонажа по правилам (poisoned, prone и т.д.).
// Используется ТОЛЬКО движком проверок; не путать с ActiveCondition (нарративный слой).
type RuleCondition struct {
	Name      string     `json:"name"`
	Source    string     `json:"source,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CharacterState - механическое состояние персонажа: хиты, модификаторы, ресурсы.
// Владелец записи - MechanicsAgent (и восстановление сессии из сохранения).
type CharacterState struct {
	CurrentHP         int             `json:"current_hp"`
	MaxHP             int             `json:"max_hp"`
	TempHP            int             `json:"temp_hp,omitempty"`
	AbilityModifiers  map[string]int  `json:"ability_modifiers,omitempty"`
	SaveProficiencies []string        `json:"save_proficiencies,omitempty"`
	ProficiencyBonus  int             `json:"proficiency_bonus,omitempty"`
	Conditions        []RuleCondition `json:"conditions,omitempty"`
	Resources         map[string]int  `json:"resources,omitempty"`
}

// AbilityModifier возвращает модификатор характеристики (0, если не задан).
func (cs *CharacterState) AbilityModifier(ability string) int {
	if cs == nil || cs.AbilityModifiers == nil {
		return 0
	}
	return cs.AbilityModifiers[ability]
}

// HasSaveProficiency сообщает, владеет ли персонаж спасброском данной характеристики.
func (cs *CharacterState) HasSaveProficiency(ability string) bool {
	if cs == nil {
		return false
	}
	for _, p := range cs.SaveProficiencies {
		if p == ability {
			return true
		}
	}
	return false
}

// ActiveCondition - нарративное состояние персонажа, видимое игроку
// ("отравлен змеиным ядом, до конца сцены"). Владелец - WorldContextUpdater.
type ActiveCondition struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Source           string `json:"source,omitempty"`
	Category         string `json:"category,omitempty"`
	Expires          string `json:"expires,omitempty"` // end_of_scene, end_of_day, until_removed...
	MechanicalEffect string `json:"mechanical_effect,omitempty"`
}

// WorldContext - долговременная/краткосрочная память генератора:
// недавние события, устойчивые факты мира и флаги (локация, время суток и т.п.).
type WorldContext struct {
	RecentEvents []string          `json:"recent_events"`
	WorldFacts   []string          `json:"world_facts"`
	Flags        map[string]string `json:"flags"`
}

// Encounter зарезервирован под боевой режим (пока не реализован).
type Encounter struct {
	ID              string   `json:"id"`
	Enemies         []string `json:"enemies,omitempty"`
	InitiativeOrder []string `json:"initiative_order,omitempty"`
	Round           int      `json:"round,omitempty"`
}

// GameState - изменяемый снимок мира для одной комнаты/сессии.
// CharacterStates и CharacterConditions - независимые треки: механика читает
// только первый, сборка контекста повествования - только второй.
type GameState struct {
	RoomID              string                       `json:"room_id" db:"room_id"`
	Location            Location                     `json:"location" db:"location"`
	CharacterStates     map[string]*CharacterState   `json:"character_states" db:"character_states"`
	CharacterConditions map[string][]ActiveCondition `json:"character_conditions" db:"character_conditions"`
	WorldContext        WorldContext                 `json:"world_context" db:"world_context"`
	ActiveEncounters    map[string]*Encounter        `json:"active_encounters,omitempty" db:"active_encounters"`
	LastUpdated         time.Time                    `json:"last_updated" db:"last_updated"`
}

// NewGameState создает пустое состояние для комнаты.
func NewGameState(roomID string) *GameState {
	return &GameState{
		RoomID:              roomID,
		CharacterStates:     make(map[string]*CharacterState),
		CharacterConditions: make(map[string][]ActiveCondition),
		WorldContext: WorldContext{
			RecentEvents: []string{},
			WorldFacts:   []string{},
			Flags:        make(map[string]string),
		},
		ActiveEncounters: make(map[string]*Encounter),
		LastUpdated:      time.Now().UTC(),
	}
}

// Touch обновляет метку последнего изменения.
func (gs *GameState) Touch() {
	gs.LastUpdated = time.Now().UTC()
}
