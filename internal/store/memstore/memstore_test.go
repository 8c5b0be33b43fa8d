package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/credmigrator/internal/common"
	"github.com/dmitrijs2005/credmigrator/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestCollection_EachPreservesOrderAcrossBatches(t *testing.T) {
	s := New()
	s.Seed("buyers",
		Doc{Key: 1, Identifier: "a@x", Credential: ptr("a")},
		Doc{Key: 2, Identifier: "b@x"},
		Doc{Key: 3, Identifier: "c@x", Credential: ptr("")},
	)
	coll, err := s.Collection("buyers")
	require.NoError(t, err)

	var got []store.Record
	require.NoError(t, coll.Each(context.Background(), 2, func(r store.Record) error {
		got = append(got, r)
		return nil
	}))

	require.Len(t, got, 3)
	assert.Equal(t, store.Record{Key: 1, Identifier: "a@x", Credential: "a", HasCredential: true}, got[0])
	assert.Equal(t, store.Record{Key: 2, Identifier: "b@x"}, got[1])
	assert.Equal(t, store.Record{Key: 3, Identifier: "c@x", HasCredential: true}, got[2])
}

func TestCollection_EachStopsOnCallbackError(t *testing.T) {
	s := New()
	s.Seed("c", Doc{Key: 1}, Doc{Key: 2})
	coll, _ := s.Collection("c")

	stop := errors.New("stop")
	n := 0
	err := coll.Each(context.Background(), 10, func(store.Record) error { n++; return stop })
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, n)
}

func TestCollection_UpdateCredential(t *testing.T) {
	s := New()
	c := s.Seed("c", Doc{Key: 1, Credential: ptr("old")}, Doc{Key: 2})
	ctx := context.Background()

	require.ErrorIs(t, c.UpdateCredential(ctx, 1, "stale", true, "h"), common.ErrVersionConflict)
	require.ErrorIs(t, c.UpdateCredential(ctx, 2, "", true, "h"), common.ErrVersionConflict)
	require.ErrorIs(t, c.UpdateCredential(ctx, 9, "", false, "h"), common.ErrorNotFound)

	require.NoError(t, c.UpdateCredential(ctx, 1, "old", true, "h1"))
	require.NoError(t, c.UpdateCredential(ctx, 2, "", false, "h2"))

	d, _ := c.Doc(1)
	assert.Equal(t, "h1", *d.Credential)
	d, _ = c.Doc(2)
	assert.Equal(t, "h2", *d.Credential)
	assert.Equal(t, 2, c.Updates())
}

func TestStore_CloseOnce(t *testing.T) {
	s := New()
	require.NoError(t, s.Close(context.Background()))
	require.ErrorIs(t, s.Close(context.Background()), common.ErrAlreadyClosed)
	assert.True(t, s.Closed())
	assert.Equal(t, 2, s.CloseCalls())

	_, err := s.Collection("x")
	require.ErrorIs(t, err, common.ErrAlreadyClosed)
}

func TestStore_ReopenSharesData(t *testing.T) {
	s := New()
	s.Seed("c", Doc{Key: 1, Credential: ptr("x")})
	require.NoError(t, s.Close(context.Background()))

	again := s.Reopen()
	coll, err := again.Collection("c")
	require.NoError(t, err)

	n := 0
	require.NoError(t, coll.Each(context.Background(), 5, func(store.Record) error { n++; return nil }))
	assert.Equal(t, 1, n)
}
