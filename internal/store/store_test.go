package store

import (
	"errors"
	"testing"

	"github.com/dmitrijs2005/credmigrator/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloseOnce(t *testing.T) {
	var c CloseOnce
	calls := 0
	boom := errors.New("boom")

	assert.False(t, c.Closed())

	err := c.Do(func() error { calls++; return boom })
	require.ErrorIs(t, err, boom)
	assert.True(t, c.Closed())

	err = c.Do(func() error { calls++; return nil })
	require.ErrorIs(t, err, common.ErrAlreadyClosed)
	assert.Equal(t, 1, calls)
}
