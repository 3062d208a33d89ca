// Package dice реализует примитив бросков d20 с преимуществом/помехой.
package dice

import (
	"math/rand"
	"sync"
	"time"
)

// RollType задает способ броска d20.
type RollType string

const (
	RollNormal       RollType = "normal"
	RollAdvantage    RollType = "advantage"
	RollDisadvantage RollType = "disadvantage"
)

// ParseRollType нормализует значение из аргументов tool call.
// Неизвестные значения трактуются как обычный бросок.
func ParseRollType(s string) RollType {
	switch RollType(s) {
	case RollAdvantage:
		return RollAdvantage
	case RollDisadvantage:
		return RollDisadvantage
	default:
		return RollNormal
	}
}

// Roll - результат броска d20: все выпавшие кубы и использованное значение.
type Roll struct {
	Rolls []int `json:"rolls"`
	Used  int   `json:"used"`
}

// Roller выполняет броски. Интерфейс нужен, чтобы в тестах подставлять
// детерминированные значения вместо ГСЧ.
type Roller interface {
	RollD20(rt RollType) Roll
}

// randRoller - стандартная реализация на math/rand.
type randRoller struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoller создает Roller, засеянный текущим временем.
func NewRoller() Roller {
	return &randRoller{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewSeededRoller создает Roller с фиксированным зерном (для воспроизводимости).
func NewSeededRoller(seed int64) Roller {
	return &randRoller{rng: rand.New(rand.NewSource(seed))}
}

func (r *randRoller) d20() int {
	return r.rng.Intn(20) + 1
}

// RollD20 бросает d20; при advantage/disadvantage бросаются два куба
// и берется больший/меньший соответственно.
func (r *randRoller) RollD20(rt RollType) Roll {
	r.mu.Lock()
	defer r.mu.Unlock()

	first := r.d20()
	if rt == RollNormal {
		return Roll{Rolls: []int{first}, Used: first}
	}

	second := r.d20()
	used := first
	switch rt {
	case RollAdvantage:
		if second > used {
			used = second
		}
	case RollDisadvantage:
		if second < used {
			used = second
		}
	}
	return Roll{Rolls: []int{first, second}, Used: used}
}

// CheckResult - полная раскладка одной проверки: бросок, модификатор, итог.
type CheckResult struct {
	Roll     Roll `json:"roll"`
	Modifier int  `json:"modifier"`
	Total    int  `json:"total"`
	DC       int  `json:"dc"`
	Success  bool `json:"success"`
}

// Check выполняет проверку: d20 (с учетом типа броска) + модификатор против DC.
// Успех при total >= dc.
func Check(r Roller, rt RollType, modifier, dc int) CheckResult {
	roll := r.RollD20(rt)
	total := roll.Used + modifier
	return CheckResult{
		Roll:     roll,
		Modifier: modifier,
		Total:    total,
		DC:       dc,
		Success:  total >= dc,
	}
}
