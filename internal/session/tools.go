package session

import (
	"quest-server/pkg/ai"
)

// Имена инструментов, объявляемых генеративному бэкенду.
const (
	ToolAbilityCheck   = "request_ability_check"
	ToolSavingThrow    = "request_saving_throw"
	ToolGroupCheck     = "request_group_check"
	ToolStartCombat    = "start_combat"
	ToolRestrictAction = "restrict_action"
)

// abilityCheckArgs - аргументы request_ability_check / request_saving_throw.
type abilityCheckArgs struct {
	CharacterID string `json:"character_id"`
	Ability     string `json:"ability"`
	DC          int    `json:"dc"`
	Reason      string `json:"reason"`
	RollType    string `json:"roll_type,omitempty"`
}

// groupCheckArgs - аргументы request_group_check.
type groupCheckArgs struct {
	Ability      string   `json:"ability"`
	DC           int      `json:"dc"`
	Reason       string   `json:"reason"`
	CharacterIDs []string `json:"character_ids,omitempty"`
}

// startCombatArgs - аргументы start_combat.
type startCombatArgs struct {
	Reason  string   `json:"reason"`
	Enemies []string `json:"enemies,omitempty"`
}

// restrictActionArgs - аргументы restrict_action.
type restrictActionArgs struct {
	CharacterIDs []string `json:"character_ids"`
	Reason       string   `json:"reason"`
}

var abilityEnum = []string{
	"strength", "dexterity", "constitution", "intelligence", "wisdom", "charisma",
}

func checkParameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"character_id": map[string]interface{}{
				"type":        "string",
				"description": "ID персонажа или его имя, если ID неизвестен",
			},
			"ability": map[string]interface{}{
				"type": "string",
				"enum": abilityEnum,
			},
			"dc": map[string]interface{}{
				"type":        "integer",
				"description": "Класс сложности проверки",
			},
			"reason": map[string]interface{}{
				"type":        "string",
				"description": "Краткое описание, зачем нужна проверка",
			},
			"roll_type": map[string]interface{}{
				"type": "string",
				"enum": []string{"normal", "advantage", "disadvantage"},
			},
		},
		"required": []string{"character_id", "ability", "dc", "reason"},
	}
}

// ToolDefinitions возвращает фиксированный набор объявлений инструментов,
// передаваемых бэкенду при каждом вызове повествования.
func ToolDefinitions() []ai.ToolDefinition {
	return []ai.ToolDefinition{
		{
			Name:        ToolAbilityCheck,
			Description: "Запросить проверку характеристики для персонажа (d20 + модификатор против DC).",
			Parameters:  checkParameters(),
		},
		{
			Name:        ToolSavingThrow,
			Description: "Запросить спасбросок для персонажа (d20 + модификатор + бонус мастерства при владении).",
			Parameters:  checkParameters(),
		},
		{
			Name:        ToolGroupCheck,
			Description: "Запросить групповую проверку. Если character_ids не указан, участвуют все персонажи комнаты. Группа успешна, если успешна больше чем половина.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"ability": map[string]interface{}{
						"type": "string",
						"enum": abilityEnum,
					},
					"dc": map[string]interface{}{
						"type": "integer",
					},
					"reason": map[string]interface{}{
						"type": "string",
					},
					"character_ids": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"ability", "dc", "reason"},
			},
		},
		{
			Name:        ToolStartCombat,
			Description: "Запросить переход сессии в боевой режим.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"reason": map[string]interface{}{
						"type": "string",
					},
					"enemies": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
				},
				"required": []string{"reason"},
			},
		},
		{
			Name:        ToolRestrictAction,
			Description: "Ограничить круг персонажей, которые могут действовать в следующем раунде. Пустой список снимает все ограничения.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"character_ids": map[string]interface{}{
						"type":  "array",
						"items": map[string]interface{}{"type": "string"},
					},
					"reason": map[string]interface{}{
						"type": "string",
					},
				},
				"required": []string{"character_ids", "reason"},
			},
		},
	}
}
