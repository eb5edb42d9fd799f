package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreLoadSaveDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	_, err := s.Load(ctx, "/papers/p1/main.tex")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Save(ctx, &Document{Path: "/papers/p1/main.tex", Text: "hello"}))

	doc, err := s.Load(ctx, "/papers/p1/main.tex")
	require.NoError(t, err)
	assert.Equal(t, "hello", doc.Text)

	require.NoError(t, s.Delete(ctx, "/papers/p1/main.tex"))
	_, err = s.Load(ctx, "/papers/p1/main.tex")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemStoreDeleteMissingFails(t *testing.T) {
	s := NewMemStore()
	err := s.Delete(context.Background(), "/nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
