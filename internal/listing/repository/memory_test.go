package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/thriftkids/marketplace/internal/listing"
)

func TestMemoryRepoInsertAssignsIDAndTimestamp(t *testing.T) {
	r := NewMemoryRepo()
	l := &listing.Listing{Title: "Blue Romper", ImageURL: "file:///tmp/x.jpg"}
	require.NoError(t, r.Insert(context.Background(), l))
	require.NotEmpty(t, l.ID)
	require.NotEmpty(t, l.CreatedAt)

	l2 := &listing.Listing{Title: "Red Hat", ImageURL: "file:///tmp/y.jpg"}
	require.NoError(t, r.Insert(context.Background(), l2))
	require.NotEqual(t, l.ID, l2.ID)
}

func TestMemoryRepoNewestFirst(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	r := NewMemoryRepoWithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	})
	ctx := context.Background()
	for _, title := range []string{"t1", "t2", "t3"} {
		require.NoError(t, r.Insert(ctx, &listing.Listing{Title: title}))
	}

	list, err := r.ListNewestFirst(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"t3", "t2", "t1"}, []string{list[0].Title, list[1].Title, list[2].Title})

	again, err := r.ListNewestFirst(ctx)
	require.NoError(t, err)
	require.Equal(t, list, again)
}

func TestMemoryRepoSameTimestampKeepsInsertionOrder(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r := NewMemoryRepoWithClock(func() time.Time { return fixed })
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, &listing.Listing{Title: "first"}))
	require.NoError(t, r.Insert(ctx, &listing.Listing{Title: "second"}))

	list, err := r.ListNewestFirst(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", list[0].Title)
	require.Equal(t, "first", list[1].Title)
}

func TestMemoryRepoReturnsCopies(t *testing.T) {
	r := NewMemoryRepo()
	ctx := context.Background()
	require.NoError(t, r.Insert(ctx, &listing.Listing{Title: "orig"}))

	list, err := r.ListNewestFirst(ctx)
	require.NoError(t, err)
	list[0].Title = "mutated"

	again, err := r.ListNewestFirst(ctx)
	require.NoError(t, err)
	require.Equal(t, "orig", again[0].Title)
}
