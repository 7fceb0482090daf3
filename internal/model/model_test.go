package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelSize(t *testing.T) {
	size, err := ParseModelSize("")
	require.NoError(t, err)
	assert.Equal(t, ModelBase, size)

	for _, valid := range []string{"tiny", "base", "small", "medium", "large-v3"} {
		size, err := ParseModelSize(valid)
		require.NoError(t, err)
		assert.Equal(t, ModelSize(valid), size)
	}

	_, err = ParseModelSize("huge")
	assert.Error(t, err)
}

func TestInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Ada Lovelace", "AL"},
		{"ada", "A"},
		{"Ada King Lovelace", "AK"},
		{"", ""},
	}
	for _, tt := range tests {
		acc := Account{Name: tt.name}
		assert.Equal(t, tt.want, acc.Initials())
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
}
