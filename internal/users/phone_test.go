package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	valid := map[string]string{
		"0555123456":        "0555123456",
		"0661 23 45 67":     "0661234567",
		"07.70.12.34.56":    "0770123456",
		"+213 555 12 34 56": "0555123456",
		"+213555123456":     "0555123456",
		"00213661234567":    "0661234567",
		"213770123456":      "0770123456",
		"021 23 45 67":      "021234567",
		"+213 21 23 45 67":  "021234567",
		"(038) 12-34-56":    "038123456",
	}
	for in, want := range valid {
		got, err := NormalizePhone(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNormalizePhoneRejects(t *testing.T) {
	for _, in := range []string{
		"",
		"0",
		"055512345",    // mobile too short
		"05551234567",  // mobile too long
		"0212345678",   // fixed line too long
		"0812345678",   // unknown prefix
		"555123456",    // no trunk prefix
		"+33612345678", // foreign
		"0555-12A-456",
		"05+55123456",
	} {
		_, err := NormalizePhone(in)
		assert.ErrorIs(t, err, ErrInvalidPhone, in)
	}
}
