package tenant

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Tenant
		want string
	}{
		{"guild", Guild("123"), "guild_123"},
		{"user", User("42"), "user_42"},
		{"trimmed", Guild(" 7 "), "guild_7"},
		{"zero", Tenant{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.in.Key())
		})
	}
}

func TestForMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Guild("g1"), ForMessage("g1", "u1"))
	assert.Equal(t, User("u1"), ForMessage("", "u1"))
	assert.True(t, ForMessage("g1", "u1").IsGroup())
	assert.False(t, ForMessage("", "u1").IsGroup())
}

func TestValid(t *testing.T) {
	t.Parallel()

	assert.True(t, Guild("1").Valid())
	assert.False(t, Tenant{}.Valid())
	assert.False(t, User("").Valid())
	assert.False(t, User("../etc").Valid())
}

func TestParse(t *testing.T) {
	t.Parallel()

	got, err := Parse("guild_99")
	require.NoError(t, err)
	assert.Equal(t, Guild("99"), got)

	got, err = Parse("user_5")
	require.NoError(t, err)
	assert.Equal(t, KindUser, got.Kind())
	assert.Equal(t, "5", got.ID())

	for _, bad := range []string{"", "guild_", "channel_1", "user_a/b"} {
		_, err := Parse(bad)
		assert.True(t, errors.Is(err, ErrInvalid), "Parse(%q)", bad)
	}
}
