package delivery

import (
	"context"
	"testing"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(cs []Candidate) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestMatcherRanking(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	other := models.Zone{Name: "south"}
	require.NoError(t, e.db.Create(&other).Error)

	top, _ := e.agent(t, &e.zone.ID, 4.9, 10, true, true)
	fresh, _ := e.agent(t, &e.zone.ID, 4.5, 1, true, true)
	veteran, _ := e.agent(t, &e.zone.ID, 4.5, 50, true, true)
	e.agent(t, &e.zone.ID, 5.0, 0, false, true)
	e.agent(t, &e.zone.ID, 5.0, 0, true, false)
	away, _ := e.agent(t, &other.ID, 3.0, 0, true, true)

	order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
	candidates, err := e.matcher.CandidatesForOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{top.ID, fresh.ID, veteran.ID}, ids(candidates))

	browse, err := e.matcher.BrowseZone(ctx, &e.zone.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{top.ID, veteran.ID, fresh.ID}, ids(browse))

	unzoned := e.order(t, enums.OrderStatusProcessing, nil)
	everyone, err := e.matcher.CandidatesForOrder(ctx, unzoned.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{top.ID, fresh.ID, veteran.ID, away.ID}, ids(everyone))

	_, err = e.matcher.CandidatesForOrder(ctx, uuid.New())
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestMatcherReportsLoad(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	agent, _ := e.agent(t, &e.zone.ID, 4, 0, true, true)
	for i := 0; i < 2; i++ {
		order := e.order(t, enums.OrderStatusProcessing, &e.zone.ID)
		_, err := e.svc.Assign(ctx, e.staff, AssignInput{OrderID: order.ID, DeliveryID: agent.ID})
		require.NoError(t, err)
	}

	browse, err := e.matcher.BrowseZone(ctx, &e.zone.ID)
	require.NoError(t, err)
	require.Len(t, browse, 1)
	assert.Equal(t, int64(2), browse[0].ActiveAssignments)
}
