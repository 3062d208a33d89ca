package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedRoller возвращает заранее заданный бросок.
type fixedRoller struct {
	roll Roll
}

func (f *fixedRoller) RollD20(rt RollType) Roll { return f.roll }

func TestParseRollType(t *testing.T) {
	assert.Equal(t, RollNormal, ParseRollType("normal"))
	assert.Equal(t, RollAdvantage, ParseRollType("advantage"))
	assert.Equal(t, RollDisadvantage, ParseRollType("disadvantage"))
	assert.Equal(t, RollNormal, ParseRollType(""))
	assert.Equal(t, RollNormal, ParseRollType("что-то-еще"))
}

func TestRollD20_Normal(t *testing.T) {
	r := NewSeededRoller(42)
	for i := 0; i < 100; i++ {
		roll := r.RollD20(RollNormal)
		require.Len(t, roll.Rolls, 1)
		assert.Equal(t, roll.Rolls[0], roll.Used)
		assert.GreaterOrEqual(t, roll.Used, 1)
		assert.LessOrEqual(t, roll.Used, 20)
	}
}

func TestRollD20_Advantage(t *testing.T) {
	r := NewSeededRoller(42)
	for i := 0; i < 100; i++ {
		roll := r.RollD20(RollAdvantage)
		require.Len(t, roll.Rolls, 2)
		expected := roll.Rolls[0]
		if roll.Rolls[1] > expected {
			expected = roll.Rolls[1]
		}
		assert.Equal(t, expected, roll.Used)
	}
}

func TestRollD20_Disadvantage(t *testing.T) {
	r := NewSeededRoller(42)
	for i := 0; i < 100; i++ {
		roll := r.RollD20(RollDisadvantage)
		require.Len(t, roll.Rolls, 2)
		expected := roll.Rolls[0]
		if roll.Rolls[1] < expected {
			expected = roll.Rolls[1]
		}
		assert.Equal(t, expected, roll.Used)
	}
}

func TestCheck_SuccessOnEqualTotal(t *testing.T) {
	r := &fixedRoller{roll: Roll{Rolls: []int{12}, Used: 12}}

	result := Check(r, RollNormal, 3, 15)

	assert.Equal(t, 15, result.Total)
	assert.True(t, result.Success, "total == dc считается успехом")
}

func TestCheck_Failure(t *testing.T) {
	r := &fixedRoller{roll: Roll{Rolls: []int{5}, Used: 5}}

	result := Check(r, RollNormal, 2, 15)

	assert.Equal(t, 7, result.Total)
	assert.False(t, result.Success)
	assert.Equal(t, 15, result.DC)
	assert.Equal(t, 2, result.Modifier)
}

func TestCheck_NegativeModifier(t *testing.T) {
	r := &fixedRoller{roll: Roll{Rolls: []int{10}, Used: 10}}

	result := Check(r, RollNormal, -3, 8)

	assert.Equal(t, 7, result.Total)
	assert.False(t, result.Success)
}
