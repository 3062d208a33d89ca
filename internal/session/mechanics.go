package session

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"quest-server/internal/dice"
	"quest-server/internal/model"
	"quest-server/pkg/ai"
)

// MechanicsAgent выполняет один механический tool call: бросок, сбор результата
// и событие для внешнего наблюдателя. Кроме самого броска агент не делает
// внешнего I/O; все эффекты возвращаются данными.
type MechanicsAgent struct {
	roller dice.Roller
	logger *zap.Logger
}

// NewMechanicsAgent создает агента механики.
func NewMechanicsAgent(roller dice.Roller, logger *zap.Logger) *MechanicsAgent {
	return &MechanicsAgent{
		roller: roller,
		logger: logger.Named("MechanicsAgent"),
	}
}

// checkResultPayload - машинный результат одиночной проверки для бэкенда.
type checkResultPayload struct {
	Success   bool   `json:"success"`
	Total     int    `json:"total"`
	Rolls     []int  `json:"rolls"`
	Modifier  int    `json:"modifier"`
	DC        int    `json:"dc"`
	Character string `json:"character"`
	Error     string `json:"error,omitempty"`
}

// groupResultPayload - машинный результат групповой проверки.
type groupResultPayload struct {
	Success      bool                 `json:"success"`
	SuccessCount int                  `json:"success_count"`
	TotalCount   int                  `json:"total_count"`
	DC           int                  `json:"dc"`
	Results      []checkResultPayload `json:"results"`
}

// Execute выполняет один tool call. Возвращает полезную нагрузку для бэкенда и,
// опционально, событие сессии. Неизвестный инструмент и некорректные аргументы
// кодируются в payload-ошибку, а не в error: нарративный цикл должен суметь
// вернуть их генератору и продолжить.
func (a *MechanicsAgent) Execute(call ai.ToolCall, sctx *SessionContext) (json.RawMessage, *model.SessionEvent, error) {
	toolCallsTotal.WithLabelValues(call.Name).Inc()
	a.logger.Debug("Выполнение tool call",
		zap.String("tool", call.Name),
		zap.String("call_id", call.ID),
	)

	switch call.Name {
	case ToolAbilityCheck:
		return a.executeCheck(call, sctx, model.CheckAbility)
	case ToolSavingThrow:
		return a.executeCheck(call, sctx, model.CheckSavingThrow)
	case ToolGroupCheck:
		return a.executeGroupCheck(call, sctx)
	case ToolStartCombat:
		return a.executeStartCombat(call)
	case ToolRestrictAction:
		return a.executeRestrictAction(call)
	default:
		a.logger.Warn("Неизвестный инструмент", zap.String("tool", call.Name))
		return errorPayload(fmt.Sprintf("Unknown tool: %s", call.Name)), nil, nil
	}
}

// executeCheck обрабатывает ability_check и saving_throw: механика одна,
// различаются тег события и бонус мастерства при владении спасброском.
func (a *MechanicsAgent) executeCheck(call ai.ToolCall, sctx *SessionContext, checkType model.CheckType) (json.RawMessage, *model.SessionEvent, error) {
	var args abilityCheckArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return errorPayload(fmt.Sprintf("невозможно разобрать аргументы: %v", err)), nil, nil
	}

	characterID, displayName, err := sctx.ResolveCharacter(args.CharacterID)
	if err != nil {
		return nil, nil, err
	}

	modifier := 0
	if cs, ok := sctx.State.CharacterStates[characterID]; ok {
		modifier = cs.AbilityModifier(args.Ability)
		if checkType == model.CheckSavingThrow && cs.HasSaveProficiency(args.Ability) {
			modifier += cs.ProficiencyBonus
		}
	}

	result := dice.Check(a.roller, dice.ParseRollType(args.RollType), modifier, args.DC)

	a.logger.Info("Проверка выполнена",
		zap.String("check_type", string(checkType)),
		zap.String("character_id", characterID),
		zap.String("ability", args.Ability),
		zap.Int("total", result.Total),
		zap.Int("dc", args.DC),
		zap.Bool("success", result.Success),
	)

	payload := mustMarshal(checkResultPayload{
		Success:   result.Success,
		Total:     result.Total,
		Rolls:     result.Roll.Rolls,
		Modifier:  result.Modifier,
		DC:        result.DC,
		Character: displayName,
	})
	event := model.NewDiceRollEvent(model.DiceRollEvent{
		CheckType:     checkType,
		CharacterID:   characterID,
		CharacterName: displayName,
		Ability:       args.Ability,
		DC:            args.DC,
		Rolls:         result.Roll.Rolls,
		RollUsed:      result.Roll.Used,
		Modifier:      result.Modifier,
		Total:         result.Total,
		Success:       result.Success,
		Reason:        args.Reason,
	})
	return payload, &event, nil
}

// executeGroupCheck выполняет независимые проверки для каждого участника и
// подводит итог группы: успех, если успешна строго больше половины.
// Ошибка разрешения отдельного персонажа записывается как проваленный бросок
// с пометкой, а не срывает всю групповую проверку.
func (a *MechanicsAgent) executeGroupCheck(call ai.ToolCall, sctx *SessionContext) (json.RawMessage, *model.SessionEvent, error) {
	var args groupCheckArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return errorPayload(fmt.Sprintf("невозможно разобрать аргументы: %v", err)), nil, nil
	}

	ids := args.CharacterIDs
	if len(ids) == 0 {
		ids = sctx.CharacterIDs()
	}

	results := make([]checkResultPayload, 0, len(ids))
	successCount := 0
	for _, ref := range ids {
		characterID, displayName, err := sctx.ResolveCharacter(ref)
		if err != nil {
			results = append(results, checkResultPayload{
				Success:   false,
				DC:        args.DC,
				Character: ref,
				Error:     err.Error(),
			})
			continue
		}
		modifier := 0
		if cs, ok := sctx.State.CharacterStates[characterID]; ok {
			modifier = cs.AbilityModifier(args.Ability)
		}
		// Преимущество/помеха на групповом уровне не поддерживаются.
		result := dice.Check(a.roller, dice.RollNormal, modifier, args.DC)
		if result.Success {
			successCount++
		}
		results = append(results, checkResultPayload{
			Success:   result.Success,
			Total:     result.Total,
			Rolls:     result.Roll.Rolls,
			Modifier:  result.Modifier,
			DC:        result.DC,
			Character: displayName,
		})
	}

	groupSuccess := successCount > len(ids)/2 && len(ids) > 0

	a.logger.Info("Групповая проверка выполнена",
		zap.String("ability", args.Ability),
		zap.Int("success_count", successCount),
		zap.Int("total_count", len(ids)),
		zap.Bool("success", groupSuccess),
	)

	payload := mustMarshal(groupResultPayload{
		Success:      groupSuccess,
		SuccessCount: successCount,
		TotalCount:   len(ids),
		DC:           args.DC,
		Results:      results,
	})
	event := model.NewDiceRollEvent(model.DiceRollEvent{
		CheckType:    model.CheckGroup,
		Ability:      args.Ability,
		DC:           args.DC,
		Success:      groupSuccess,
		Reason:       args.Reason,
		SuccessCount: successCount,
		TotalCount:   len(ids),
	})
	return payload, &event, nil
}

// executeStartCombat не выполняет механики: только событие-запрос перехода.
// Сам боевой режим зарезервирован и пока не реализован.
func (a *MechanicsAgent) executeStartCombat(call ai.ToolCall) (json.RawMessage, *model.SessionEvent, error) {
	var args startCombatArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return errorPayload(fmt.Sprintf("невозможно разобрать аргументы: %v", err)), nil, nil
	}
	payload := mustMarshal(map[string]interface{}{
		"acknowledged": true,
		"transition":   BehaviorCombat,
	})
	event := model.NewStateTransitionEvent(BehaviorCombat, args.Reason)
	return payload, &event, nil
}

// executeRestrictAction транслирует запрос ограничения в событие.
// Пустой список id означает снятие всех ограничений.
func (a *MechanicsAgent) executeRestrictAction(call ai.ToolCall) (json.RawMessage, *model.SessionEvent, error) {
	var args restrictActionArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return errorPayload(fmt.Sprintf("невозможно разобрать аргументы: %v", err)), nil, nil
	}
	payload := mustMarshal(map[string]interface{}{
		"acknowledged":          true,
		"allowed_character_ids": args.CharacterIDs,
	})
	event := model.NewActionRestrictionEvent(args.CharacterIDs, args.Reason)
	return payload, &event, nil
}

func errorPayload(msg string) json.RawMessage {
	return mustMarshal(map[string]string{"error": msg})
}

func mustMarshal(v interface{}) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Полезные нагрузки собираются из примитивов; сюда попасть нельзя.
		return json.RawMessage(`{"error":"internal marshal error"}`)
	}
	return data
}
