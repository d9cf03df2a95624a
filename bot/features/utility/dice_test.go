package utility

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/apperr"
)

// fixedIntn always rolls the top face
func fixedIntn(n int) int { return n - 1 }

func TestRollDice(t *testing.T) {
	t.Parallel()

	t.Run("rolls the requested count", func(t *testing.T) {
		rolls, modifier, total, err := rollDice("3d6", fixedIntn)
		require.NoError(t, err)
		assert.Equal(t, []int{6, 6, 6}, rolls)
		assert.Zero(t, modifier)
		assert.Equal(t, 18, total)
	})

	t.Run("applies a positive modifier", func(t *testing.T) {
		_, modifier, total, err := rollDice("2d20+4", fixedIntn)
		require.NoError(t, err)
		assert.Equal(t, 4, modifier)
		assert.Equal(t, 44, total)
	})

	t.Run("applies a negative modifier", func(t *testing.T) {
		_, modifier, total, err := rollDice("1d6-2", fixedIntn)
		require.NoError(t, err)
		assert.Equal(t, -2, modifier)
		assert.Equal(t, 4, total)
	})

	t.Run("accepts uppercase and surrounding space", func(t *testing.T) {
		_, _, total, err := rollDice("  2D8  ", fixedIntn)
		require.NoError(t, err)
		assert.Equal(t, 16, total)
	})

	t.Run("results stay in range with a real roller", func(t *testing.T) {
		counter := 0
		rolls, _, _, err := rollDice("20d1000", func(n int) int {
			counter++
			return counter % n
		})
		require.NoError(t, err)
		for _, r := range rolls {
			assert.GreaterOrEqual(t, r, 1)
			assert.LessOrEqual(t, r, 1000)
		}
	})

	invalid := []string{
		"", "d6", "2d", "0d6", "21d6", "2d1", "2d1001", "2x6", "2d6+", "nonsense",
	}
	for _, spec := range invalid {
		spec := spec
		t.Run("rejects "+spec, func(t *testing.T) {
			_, _, _, err := rollDice(spec, fixedIntn)
			require.Error(t, err)
			assert.Equal(t, apperr.KindBadArgument, apperr.KindOf(err))
		})
	}
}
