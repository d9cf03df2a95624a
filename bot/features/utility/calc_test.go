package utility

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warden/apperr"
)

func TestEvalExpr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		want float64
	}{
		{"1+2", 3},
		{"2*3+4", 10},
		{"2+3*4", 14},
		{"(2+3)*4", 20},
		{"10/4", 2.5},
		{"-5+3", -2},
		{"--5", 5},
		{"2*(3+(4-1))", 12},
		{"1.5*2", 3},
		{"  7 - 2  ", 5},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalExpr(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvalExpr_Errors(t *testing.T) {
	t.Parallel()

	invalid := []string{
		"",
		"1/0",
		"2+",
		"(1+2",
		"1+2)",
		"abc",
		"1 2",
		"2**3",
	}
	for _, expr := range invalid {
		expr := expr
		t.Run("rejects "+expr, func(t *testing.T) {
			_, err := evalExpr(expr)
			require.Error(t, err)
			assert.Equal(t, apperr.KindBadArgument, apperr.KindOf(err))
		})
	}

	t.Run("rejects oversized input", func(t *testing.T) {
		_, err := evalExpr(strings.Repeat("1+", 150) + "1")
		require.Error(t, err)
	})

	t.Run("rejects deep nesting", func(t *testing.T) {
		expr := strings.Repeat("(", 30) + "1" + strings.Repeat(")", 30)
		_, err := evalExpr(expr)
		require.Error(t, err)
	})
}
