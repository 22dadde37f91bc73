package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := NewCode(2026)
		require.NoError(t, err)
		assert.Regexp(t, `^MX-2026-[A-Z0-9]{6}$`, code)
		assert.True(t, ValidCode(code))
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestValidCode(t *testing.T) {
	assert.True(t, ValidCode("MX-2025-A1B2C3"))
	assert.False(t, ValidCode("MX-2025-a1b2c3"))
	assert.False(t, ValidCode("MX-25-A1B2C3"))
	assert.False(t, ValidCode("XX-2025-A1B2C3"))
	assert.False(t, ValidCode("MX-2025-A1B2C3D"))
}
