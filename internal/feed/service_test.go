package feed

import (
	"context"
	"testing"
	"time"

	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/realtime"
	"kyri56xcaesar/nexushub/internal/store/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *realtime.Broker) {
	t.Helper()
	s := memstore.NewStorage()
	for _, name := range []string{"olga", "adam", "mia"} {
		require.NoError(t, s.CreateUser(context.Background(), &models.User{ID: name, Username: name, Email: name + "@example.com"}))
	}
	broker := realtime.NewBroker(16)
	return NewService(s, broker), broker
}

func next(t *testing.T, sub *realtime.Subscription) realtime.Event {
	t.Helper()
	select {
	case ev := <-sub.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return realtime.Event{}
	}
}

func TestPosts(t *testing.T) {
	ctx := context.Background()
	svc, broker := setup(t)
	sub := broker.Subscribe(realtime.Broadcast)
	defer sub.Close()

	post, err := svc.CreatePost(ctx, "olga", CreatePostRequest{Content: " shipping today ", Tags: []string{"Release"}})
	require.NoError(t, err)
	assert.Equal(t, "shipping today", post.Content)
	assert.Equal(t, realtime.PostCreated, next(t, sub).Name)

	_, err = svc.CreatePost(ctx, "olga", CreatePostRequest{Content: "   "})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)

	t.Run("like toggles", func(t *testing.T) {
		p, liked, err := svc.ToggleLike(ctx, "adam", post.ID)
		require.NoError(t, err)
		assert.True(t, liked)
		assert.Equal(t, []string{"adam"}, p.Likes)

		p, liked, err = svc.ToggleLike(ctx, "adam", post.ID)
		require.NoError(t, err)
		assert.False(t, liked)
		assert.Empty(t, p.Likes)
	})

	t.Run("comment", func(t *testing.T) {
		c, err := svc.CommentPost(ctx, "mia", post.ID, CommentRequest{Text: "congrats"})
		require.NoError(t, err)
		assert.NotEmpty(t, c.ID)

		got, err := svc.GetPost(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, got.Comments, 1)
		assert.Equal(t, "mia", got.Comments[0].User)
	})

	t.Run("share points at the original", func(t *testing.T) {
		first, err := svc.SharePost(ctx, "adam", post.ID, SharePostRequest{})
		require.NoError(t, err)
		assert.Equal(t, post.ID, first.SharedFrom)
		assert.Equal(t, post.Content, first.Content)

		second, err := svc.SharePost(ctx, "mia", first.ID, SharePostRequest{Content: "look"})
		require.NoError(t, err)
		assert.Equal(t, post.ID, second.SharedFrom)

		orig, err := svc.GetPost(ctx, post.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, orig.Shares)
	})

	t.Run("delete is author only", func(t *testing.T) {
		assert.ErrorIs(t, svc.DeletePost(ctx, "adam", post.ID), errors.ErrForbidden)
		require.NoError(t, svc.DeletePost(ctx, "olga", post.ID))
		_, err := svc.GetPost(ctx, post.ID)
		assert.ErrorIs(t, err, errors.ErrPostNotFound)
	})

	mine, err := svc.ListPosts(ctx, "adam", 10)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestDirectChatIsUnique(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	chat, created, err := svc.CreateChat(ctx, "olga", CreateChatRequest{Participants: []string{"adam"}})
	require.NoError(t, err)
	assert.True(t, created)
	assert.ElementsMatch(t, []string{"olga", "adam"}, chat.Participants)

	again, created, err := svc.CreateChat(ctx, "adam", CreateChatRequest{Participants: []string{"olga", "adam"}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, chat.ID, again.ID)

	tests := []struct {
		name string
		req  CreateChatRequest
		want error
	}{
		{name: "only self", req: CreateChatRequest{Participants: []string{"olga"}}, want: errors.ErrValidationFailed},
		{name: "unknown user", req: CreateChatRequest{Participants: []string{"ghost"}}, want: errors.ErrUserNotFound},
		{name: "direct with two others", req: CreateChatRequest{Participants: []string{"adam", "mia"}}, want: errors.ErrValidationFailed},
		{name: "unnamed group", req: CreateChatRequest{Participants: []string{"adam", "mia"}, IsGroup: true}, want: errors.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.CreateChat(ctx, "olga", tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestMessages(t *testing.T) {
	ctx := context.Background()
	svc, broker := setup(t)

	group, created, err := svc.CreateChat(ctx, "olga", CreateChatRequest{Name: "core", IsGroup: true, Participants: []string{"adam"}})
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, "olga", group.Admin)

	room := broker.Subscribe(realtime.ChatRoom(group.ID))
	defer room.Close()

	msg, err := svc.SendMessage(ctx, "adam", group.ID, SendMessageRequest{Content: "hello"})
	require.NoError(t, err)
	ev := next(t, room)
	assert.Equal(t, realtime.MessageCreated, ev.Name)
	assert.Equal(t, msg, ev.Payload)

	_, err = svc.SendMessage(ctx, "mia", group.ID, SendMessageRequest{Content: "let me in"})
	assert.ErrorIs(t, err, errors.ErrChatNotFound)
	_, err = svc.ListMessages(ctx, "mia", group.ID, 10)
	assert.ErrorIs(t, err, errors.ErrChatNotFound)

	_, err = svc.SendMessage(ctx, "olga", group.ID, SendMessageRequest{Content: "hi adam"})
	require.NoError(t, err)
	msgs, err := svc.ListMessages(ctx, "olga", group.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)

	chats, err := svc.ListChats(ctx, "adam")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.NotNil(t, chats[0].LastMessageAt)
}

func TestGroupParticipants(t *testing.T) {
	ctx := context.Background()
	svc, _ := setup(t)

	group, created, err := svc.CreateChat(ctx, "olga", CreateChatRequest{Participants: []string{"adam"}, Name: "standup", IsGroup: true})
	require.NoError(t, err)
	require.True(t, created)

	_, err = svc.AddParticipants(ctx, "adam", group.ID, ParticipantsRequest{Participants: []string{"mia"}})
	assert.ErrorIs(t, err, errors.ErrForbidden)

	_, err = svc.AddParticipants(ctx, "mia", group.ID, ParticipantsRequest{Participants: []string{"mia"}})
	assert.ErrorIs(t, err, errors.ErrChatNotFound)

	got, err := svc.AddParticipants(ctx, "olga", group.ID, ParticipantsRequest{Participants: []string{"mia", "adam"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"olga", "adam", "mia"}, got.Participants)

	require.NoError(t, svc.LeaveChat(ctx, "olga", group.ID))
	got, err = svc.GetChat(ctx, "adam", group.ID)
	require.NoError(t, err)
	assert.Equal(t, "adam", got.Admin)
	assert.Equal(t, []string{"adam", "mia"}, got.Participants)

	_, err = svc.GetChat(ctx, "olga", group.ID)
	assert.ErrorIs(t, err, errors.ErrChatNotFound)

	direct, _, err := svc.CreateChat(ctx, "olga", CreateChatRequest{Participants: []string{"mia"}})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.LeaveChat(ctx, "olga", direct.ID), errors.ErrValidationFailed)
}
