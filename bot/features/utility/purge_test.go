package utility

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPurgeFetchCount(t *testing.T) {
	t.Parallel()

	// With the invoking message appended the combined batch must not
	// exceed the bulk-delete cap
	assert.Equal(t, 99, purgeFetchCount(100, true))
	assert.Equal(t, 50, purgeFetchCount(50, true))

	// Slash invocations have no message to append
	assert.Equal(t, 100, purgeFetchCount(100, false))
	assert.Equal(t, 1, purgeFetchCount(1, true))
}
