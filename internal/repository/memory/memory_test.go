package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/lingoflash/internal/models"
	"github.com/vytor/lingoflash/internal/repository/memory"
	"github.com/vytor/lingoflash/internal/testutil"
)

func TestItemRepository_OrderAndReplace(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewItemRepository(testutil.NewItem("a"), testutil.NewItem("b"))

	replaced := testutil.NewItem("a")
	replaced.MasteryLevel = 80
	require.NoError(t, repo.Save(ctx, replaced))
	require.NoError(t, repo.Save(ctx, testutil.NewItem("c")))

	items, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{items[0].ID, items[1].ID, items[2].ID})
	assert.Equal(t, 80, items[0].MasteryLevel)

	existed, err := repo.Delete(ctx, "b")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = repo.Delete(ctx, "b")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestItemRepository_FailWith(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewItemRepository()
	boom := errors.New("offline")
	repo.FailWith(func(op string) error {
		if op == "Save" {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, repo.Save(ctx, testutil.NewItem("x")), boom)
	_, ok := repo.Get("x")
	assert.False(t, ok)

	repo.FailWith(nil)
	assert.NoError(t, repo.Save(ctx, testutil.NewItem("x")))
}

func TestOutcomeRepository_ListSince(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutcomeRepository()
	require.NoError(t, repo.Append(ctx, models.ReviewOutcome{ItemID: "old", Timestamp: testutil.Ref.Add(-time.Hour)}))
	require.NoError(t, repo.Append(ctx, models.ReviewOutcome{ItemID: "new", Timestamp: testutil.Ref}))

	all, err := repo.List(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	recent, err := repo.List(ctx, testutil.Ref)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new", recent[0].ItemID)
}
