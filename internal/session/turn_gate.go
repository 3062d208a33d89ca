package session

import (
	"quest-server/internal/model"
)

// Режимы гейта хода.
const (
	GateModeAll        = "all"
	GateModeRestricted = "restricted"
	GateModePaused     = "paused"
	GateModeInitiative = "initiative"
)

// GateStatus - описательный статус текущего гейта для HTTP-слоя и логов.
type GateStatus struct {
	Mode                   string   `json:"mode"`
	AllowedCharacterIDs    []string `json:"allowed_character_ids,omitempty"`
	CurrentTurnCharacterID string   `json:"current_turn_character_id,omitempty"`
	Reason                 string   `json:"reason,omitempty"`
}

// TurnGate решает, кто может действовать в текущем раунде и когда собранных
// действий достаточно для его закрытия. Гейт - живой объект-стратегия: при
// каждом ограничении/переходе он заменяется целиком, без слияния параметров.
type TurnGate interface {
	CanAct(userID, characterID string) bool
	CanAdvance(actions []model.PlayerAction, totalEligibleActors int) bool
	Status() GateStatus
}

// --- AllActorsGate ---

// AllActorsGate - гейт по умолчанию: действовать может любой; раунд закрывается,
// когда собрано не меньше действий, чем активных участников (и участники есть).
type AllActorsGate struct{}

// NewAllActorsGate создает гейт по умолчанию.
func NewAllActorsGate() *AllActorsGate {
	return &AllActorsGate{}
}

func (g *AllActorsGate) CanAct(userID, characterID string) bool { return true }

func (g *AllActorsGate) CanAdvance(actions []model.PlayerAction, totalEligibleActors int) bool {
	if totalEligibleActors == 0 {
		return false
	}
	return len(actions) >= totalEligibleActors
}

func (g *AllActorsGate) Status() GateStatus {
	return GateStatus{Mode: GateModeAll}
}

// --- RestrictedGate ---

// RestrictedGate пропускает только перечисленных персонажей; раунд закрывается,
// когда каждый из них подал хотя бы одно действие. Действия непричастных
// участников на решение о закрытии не влияют.
type RestrictedGate struct {
	allowed map[string]struct{}
	order   []string
	reason  string
}

// NewRestrictedGate создает гейт, ограниченный списком id персонажей.
func NewRestrictedGate(allowedCharacterIDs []string, reason string) *RestrictedGate {
	allowed := make(map[string]struct{}, len(allowedCharacterIDs))
	order := make([]string, 0, len(allowedCharacterIDs))
	for _, id := range allowedCharacterIDs {
		if _, ok := allowed[id]; ok {
			continue
		}
		allowed[id] = struct{}{}
		order = append(order, id)
	}
	return &RestrictedGate{allowed: allowed, order: order, reason: reason}
}

func (g *RestrictedGate) CanAct(userID, characterID string) bool {
	_, ok := g.allowed[characterID]
	return ok
}

func (g *RestrictedGate) CanAdvance(actions []model.PlayerAction, totalEligibleActors int) bool {
	acted := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		acted[a.CharacterID] = struct{}{}
	}
	for id := range g.allowed {
		if _, ok := acted[id]; !ok {
			return false
		}
	}
	return len(g.allowed) > 0
}

func (g *RestrictedGate) Status() GateStatus {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return GateStatus{Mode: GateModeRestricted, AllowedCharacterIDs: ids, Reason: g.reason}
}

// --- PausedGate ---

// PausedGate полностью останавливает прием действий (жесткая пауза на интерлюдию).
type PausedGate struct {
	reason string
}

// NewPausedGate создает гейт-паузу.
func NewPausedGate(reason string) *PausedGate {
	return &PausedGate{reason: reason}
}

func (g *PausedGate) CanAct(userID, characterID string) bool { return false }

func (g *PausedGate) CanAdvance(actions []model.PlayerAction, totalEligibleActors int) bool {
	return false
}

func (g *PausedGate) Status() GateStatus {
	return GateStatus{Mode: GateModePaused, Reason: g.reason}
}

// --- InitiativeGate ---

// InitiativeGate пропускает только персонажа, чей сейчас ход.
// Зарезервирован под боевой режим; ротация через SetCurrentTurn.
type InitiativeGate struct {
	currentTurn string
	reason      string
}

// NewInitiativeGate создает гейт инициативы с текущим персонажем.
func NewInitiativeGate(currentTurnCharacterID, reason string) *InitiativeGate {
	return &InitiativeGate{currentTurn: currentTurnCharacterID, reason: reason}
}

// SetCurrentTurn передает ход следующему персонажу.
func (g *InitiativeGate) SetCurrentTurn(characterID string) {
	g.currentTurn = characterID
}

func (g *InitiativeGate) CanAct(userID, characterID string) bool {
	return characterID != "" && characterID == g.currentTurn
}

func (g *InitiativeGate) CanAdvance(actions []model.PlayerAction, totalEligibleActors int) bool {
	for _, a := range actions {
		if a.CharacterID == g.currentTurn {
			return true
		}
	}
	return false
}

func (g *InitiativeGate) Status() GateStatus {
	return GateStatus{Mode: GateModeInitiative, CurrentTurnCharacterID: g.currentTurn, Reason: g.reason}
}
