package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/fulfillment-engine/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-engine/pkg/db/models"
	"github.com/angelmondragon/fulfillment-engine/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-engine/pkg/errors"
	"github.com/angelmondragon/fulfillment-engine/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedNotifications(t *testing.T, repo Repository, userID uuid.UUID, n int) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		row := &models.Notification{
			UserID:    userID,
			Kind:      enums.NotificationKindOrderPlaced,
			Message:   "placed",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.Create(context.Background(), row))
	}
}

func TestService_ListPaginates(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	userID := uuid.New()
	seedNotifications(t, repo, userID, 3)
	seedNotifications(t, repo, uuid.New(), 2)

	first, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	require.NotEmpty(t, first.Cursor)
	assert.True(t, first.Items[0].CreatedAt.After(first.Items[1].CreatedAt))

	second, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2, Cursor: first.Cursor})
	require.NoError(t, err)
	assert.Len(t, second.Items, 1)
	assert.Empty(t, second.Cursor)
}

func TestService_ListWalksEveryRowOnce(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	userID := uuid.New()
	seedNotifications(t, repo, userID, 6)

	seen := map[uuid.UUID]bool{}
	cursor := ""
	pages := 0
	for {
		page, err := svc.List(context.Background(), ListParams{UserID: userID, Limit: 2, Cursor: cursor})
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Items), 2)
		for _, n := range page.Items {
			assert.False(t, seen[n.ID], "notification returned twice")
			seen[n.ID] = true
		}
		pages++
		if page.Cursor == "" || pages > 6 {
			break
		}
		cursor = page.Cursor
	}
	assert.Len(t, seen, 6)
	assert.LessOrEqual(t, pages, 4)
}

func TestService_ListInvalidCursor(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)

	_, err = svc.List(context.Background(), ListParams{UserID: uuid.New(), Cursor: "bad"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))

	_, err = svc.List(context.Background(), ListParams{Limit: pagination.DefaultLimit})
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestService_MarkRead(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	svc, err := NewService(repo)
	require.NoError(t, err)
	userID := uuid.New()
	seedNotifications(t, repo, userID, 2)

	page, err := svc.List(context.Background(), ListParams{UserID: userID})
	require.NoError(t, err)
	target := page.Items[0].ID

	require.NoError(t, svc.MarkRead(context.Background(), userID, target))
	require.NoError(t, svc.MarkRead(context.Background(), userID, target), "already read is still found")

	err = svc.MarkRead(context.Background(), uuid.New(), target)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err), "other users cannot touch it")

	count, err := svc.MarkAllRead(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	unread, err := svc.List(context.Background(), ListParams{UserID: userID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Empty(t, unread.Items)
}

type recordingSink struct {
	name string
	err  error
	mu   sync.Mutex
	got  []Notice
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, notices []Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, notices...)
	return s.err
}

func TestDispatcher_FansOutAndCombinesErrors(t *testing.T) {
	ok := &recordingSink{name: "ok"}
	bad := &recordingSink{name: "bad", err: errors.New("topic down")}
	worse := &recordingSink{name: "worse", err: errors.New("inbox down")}
	d := NewDispatcher(nil, ok, bad, nil, worse)

	notice := Notice{UserID: uuid.New(), Kind: enums.NotificationKindOrderAssigned, Message: "assigned"}
	skipped := Notice{Kind: enums.NotificationKindOrderAssigned}

	err := d.Dispatch(context.Background(), notice, skipped)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "topic down")
	assert.Contains(t, err.Error(), "inbox down")
	assert.Equal(t, []Notice{notice}, ok.got)
	assert.Len(t, bad.got, 1, "failing sinks still receive the batch")

	assert.NotPanics(t, func() { d.Notify(context.Background(), notice) })
}

func TestInboxSink_PersistsNotices(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	sink := NewInboxSink(repo)
	userID := uuid.New()

	err := sink.Deliver(context.Background(), []Notice{{
		UserID:  userID,
		Kind:    enums.NotificationKindPaymentConfirmed,
		Message: "cash received",
		Payload: map[string]any{"order_id": "abc"},
	}})
	require.NoError(t, err)

	svc, err := NewService(repo)
	require.NoError(t, err)
	page, err := svc.List(context.Background(), ListParams{UserID: userID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "abc", page.Items[0].Payload["order_id"])
}

type fakePublisher struct {
	attrs []map[string]string
}

func (f *fakePublisher) Publish(_ context.Context, _ []byte, attrs map[string]string) (string, error) {
	f.attrs = append(f.attrs, attrs)
	return "msg-1", nil
}

func TestTopicSink_PublishesAttributes(t *testing.T) {
	pub := &fakePublisher{}
	userID := uuid.New()

	err := NewTopicSink(pub).Deliver(context.Background(), []Notice{{UserID: userID, Kind: enums.NotificationKindOrderCancelled}})
	require.NoError(t, err)
	require.Len(t, pub.attrs, 1)
	assert.Equal(t, "order_cancelled", pub.attrs[0]["kind"])
	assert.Equal(t, userID.String(), pub.attrs[0]["user_id"])
}
