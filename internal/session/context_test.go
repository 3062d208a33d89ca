package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quest-server/internal/model"
)

func TestResolveCharacter(t *testing.T) {
	sctx := newTestContext()

	id, name, err := sctx.ResolveCharacter("c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", id)
	assert.Equal(t, "Arina", name)

	// По имени персонажа без учета регистра.
	id, _, err = sctx.ResolveCharacter("ARINA")
	require.NoError(t, err)
	assert.Equal(t, "c1", id)

	// По имени пользователя.
	id, _, err = sctx.ResolveCharacter("bob")
	require.NoError(t, err)
	assert.Equal(t, "c2", id)

	_, _, err = sctx.ResolveCharacter("nobody")
	assert.Error(t, err)
	_, _, err = sctx.ResolveCharacter("")
	assert.Error(t, err)
}

func TestCharacterIDs(t *testing.T) {
	sctx := newTestContext()
	sctx.Members = append(sctx.Members, model.RoomMember{UserID: "u3", Username: "spectator"})

	// Участники без персонажа не попадают в групповые проверки.
	assert.Equal(t, []string{"c1", "c2"}, sctx.CharacterIDs())
}

func TestFormatActions(t *testing.T) {
	actions := []model.PlayerAction{
		{Username: "alice", Content: "осматриваю алтарь"},
		{Username: "bob", Content: "держу факел"},
	}
	assert.Equal(t, "[alice] осматриваю алтарь\n[bob] держу факел", FormatActions(actions))
	assert.Empty(t, FormatActions(nil))
}
