package tx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithNilTxLeavesContext(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil))
	_, ok := From(ctx)
	assert.False(t, ok)
}
