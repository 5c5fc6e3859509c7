package security

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateArrivalCode(t *testing.T) {
	for _, digits := range []int{4, 5, 6} {
		code, err := GenerateArrivalCode(digits)
		require.NoError(t, err)
		assert.Len(t, code, digits)
		assert.Regexp(t, regexp.MustCompile(`^[0-9]+$`), code)
	}
}

func TestGenerateArrivalCodeRejectsOutOfRangeLengths(t *testing.T) {
	_, err := GenerateArrivalCode(3)
	require.Error(t, err)

	_, err = GenerateArrivalCode(7)
	require.Error(t, err)
}

func TestGenerateOrderNumberFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^TD-[0-9A-F]{8}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		number, err := GenerateOrderNumber()
		require.NoError(t, err)
		assert.Regexp(t, pattern, number)
		seen[number] = true
	}
	// 50 draws from a 32-bit space should not collide.
	assert.Greater(t, len(seen), 45)
}
