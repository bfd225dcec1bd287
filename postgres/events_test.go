package postgres_test

import (
	"context"
	"testing"

	"boxoffice/entity"
	"boxoffice/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRepoAdd(t *testing.T) {
	db := setupDB(t)
	events := postgres.NewEventRepo(db)
	ctx := context.Background()

	e := addEvent(t, events, 100, 4200)

	assert.NotEmpty(t, e.EventID)
	assert.Equal(t, uint(100), e.AvailableTickets,
		"a new event starts with the full pool available")

	got, err := events.Get(ctx, e.EventID)
	require.NoError(t, err)
	assert.Equal(t, e.Title, got.Title)
	assert.Equal(t, uint(100), got.TotalTickets)
	assert.Equal(t, uint(100), got.AvailableTickets)
	assert.Equal(t, int64(4200), got.UnitPriceCents)
}

func TestEventRepoGetUnknown(t *testing.T) {
	db := setupDB(t)
	events := postgres.NewEventRepo(db)

	_, err := events.Get(context.Background(), "05f0e056-91a9-4965-b1b2-84977fb0c880")

	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestEventRepoList(t *testing.T) {
	db := setupDB(t)
	events := postgres.NewEventRepo(db)

	first := addEvent(t, events, 10, 1000)
	second := addEvent(t, events, 20, 2000)

	list, err := events.List(context.Background())
	require.NoError(t, err)

	ids := make(map[string]bool, len(list))
	for _, e := range list {
		ids[e.EventID] = true
	}
	assert.True(t, ids[first.EventID])
	assert.True(t, ids[second.EventID])
}
