package services

import (
	"context"
	"testing"
	"time"

	"breederhub/api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxService_UnreadCountAccuracy(t *testing.T) {
	s := setupStack(t, "testdb_inbox_unread")
	ctx := context.Background()
	x := s.register(t, "kennel", models.RoleBreeder)
	senders := []*models.User{
		s.register(t, "alice", models.RoleCustomer),
		s.register(t, "bob", models.RoleCustomer),
		s.register(t, "carol", models.RoleCustomer),
	}
	l := s.listing(t, x, "Luna")

	var first *models.Message
	for _, sender := range senders {
		msg, err := s.messages.Send(ctx, sender.ID, x.ID, l.ID, "Is this dog still available?")
		require.NoError(t, err)
		if first == nil {
			first = msg
		}
	}

	count, err := s.inbox.UnreadCount(ctx, x.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, count)

	_, err = s.messages.MarkRead(ctx, first.ConversationID, x.ID)
	require.NoError(t, err)

	count, err = s.inbox.UnreadCount(ctx, x.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestInboxService_ListConversations(t *testing.T) {
	s := setupStack(t, "testdb_inbox_list")
	ctx := context.Background()
	a := s.register(t, "alice", models.RoleCustomer)
	b := s.register(t, "kennel", models.RoleBreeder)
	c := s.register(t, "carol", models.RoleCustomer)
	luna := s.listing(t, b, "Luna")
	maxDog := s.listing(t, b, "Max")

	_, err := s.messages.Send(ctx, a.ID, b.ID, luna.ID, "first")
	require.NoError(t, err)
	_, err = s.messages.Send(ctx, a.ID, b.ID, luna.ID, "second")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = s.messages.Send(ctx, c.ID, b.ID, maxDog.ID, "Does Max like cats and other small animals?")
	require.NoError(t, err)

	previews, err := s.inbox.ListConversations(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, previews, 2)

	latest := previews[0]
	assert.Equal(t, c.ID, latest.OtherParticipant.ID)
	assert.Equal(t, "carol", latest.OtherParticipant.Username)
	require.NotNil(t, latest.Listing)
	assert.Equal(t, "Max", latest.Listing.Name)
	assert.Equal(t, maxDog.Slug, latest.Listing.Slug)
	require.NotNil(t, latest.LastMessage)
	assert.Equal(t, "Does Max l…", latest.LastMessage.Body)
	assert.EqualValues(t, 1, latest.UnreadCount)

	older := previews[1]
	assert.Equal(t, a.ID, older.OtherParticipant.ID)
	require.NotNil(t, older.LastMessage)
	assert.Equal(t, "second", older.LastMessage.Body)
	assert.EqualValues(t, 2, older.UnreadCount)

	// From the customer's side the other participant is the breeder and nothing is unread.
	mine, err := s.inbox.ListConversations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, b.ID, mine[0].OtherParticipant.ID)
	assert.Zero(t, mine[0].UnreadCount)

	empty, err := s.inbox.ListConversations(ctx, s.register(t, "nobody", models.RoleCustomer).ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
