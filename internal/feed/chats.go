package feed

import (
	"context"
	"slices"
	"strings"

	"kyri56xcaesar/nexushub/internal/authz"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/realtime"
	"kyri56xcaesar/nexushub/internal/utils"
)

// CreateChat opens a chat. A direct chat between two users is unique: asking
// for it again returns the existing one with created == false.
func (s *Service) CreateChat(ctx context.Context, actor string, req CreateChatRequest) (chat *models.Chat, created bool, err error) {
	others := make([]string, 0, len(req.Participants))
	for _, id := range req.Participants {
		id = strings.TrimSpace(id)
		if id == "" || id == actor || utils.Contains(others, id) {
			continue
		}
		if _, err := s.repo.GetUserByID(ctx, id); err != nil {
			return nil, false, err
		}
		others = append(others, id)
	}
	if len(others) == 0 {
		return nil, false, errors.Invalid("a chat needs at least one other participant")
	}

	if !req.IsGroup {
		if len(others) != 1 {
			return nil, false, errors.Invalid("a direct chat has exactly one other participant")
		}
		existing, err := s.findDirect(ctx, actor, others[0])
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
		chat = &models.Chat{Participants: []string{actor, others[0]}}
	} else {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			return nil, false, errors.Invalid("name is required for a group chat")
		}
		chat = &models.Chat{Name: name, IsGroup: true, Admin: actor, Participants: append([]string{actor}, others...)}
	}

	if err := s.repo.CreateChat(ctx, chat); err != nil {
		return nil, false, err
	}
	for _, p := range chat.Participants {
		s.sink.Publish(realtime.UserRoom(p), realtime.ChatCreated, chat)
	}
	return chat, true, nil
}

func (s *Service) findDirect(ctx context.Context, a, b string) (*models.Chat, error) {
	chats, err := s.repo.ListChats(ctx, a)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(chats, func(c models.Chat) bool {
		return !c.IsGroup && len(c.Participants) == 2 && c.HasParticipant(b)
	})
	if i < 0 {
		return nil, nil
	}
	return &chats[i], nil
}

func (s *Service) ListChats(ctx context.Context, actor string) ([]models.Chat, error) {
	return s.repo.ListChats(ctx, actor)
}

// chat loads a chat the actor takes part in; other chats look missing.
func (s *Service) chat(ctx context.Context, actor, id string, action authz.Action) (*models.Chat, error) {
	c, err := s.repo.GetChat(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Allowed(authz.Request{Actor: actor, Action: action, Chat: c}) {
		return nil, errors.ErrChatNotFound
	}
	return c, nil
}

func (s *Service) GetChat(ctx context.Context, actor, id string) (*models.Chat, error) {
	return s.chat(ctx, actor, id, authz.ViewChat)
}

func (s *Service) SendMessage(ctx context.Context, actor, chatID string, req SendMessageRequest) (*models.Message, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, errors.Invalid("content is required")
	}
	c, err := s.chat(ctx, actor, chatID, authz.PostToChat)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{Chat: c.ID, Sender: actor, Content: content}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	s.sink.Publish(realtime.ChatRoom(c.ID), realtime.MessageCreated, msg)
	for _, p := range c.Participants {
		if p != actor {
			s.sink.Publish(realtime.UserRoom(p), realtime.MessageCreated, msg)
		}
	}
	return msg, nil
}

func (s *Service) ListMessages(ctx context.Context, actor, chatID string, limit int) ([]models.Message, error) {
	c, err := s.chat(ctx, actor, chatID, authz.ViewChat)
	if err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, c.ID, limit)
}

// AddParticipants lets the group admin pull more users into a group chat.
func (s *Service) AddParticipants(ctx context.Context, actor, chatID string, req ParticipantsRequest) (*models.Chat, error) {
	c, err := s.chat(ctx, actor, chatID, authz.ViewChat)
	if err != nil {
		return nil, err
	}
	if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.ManageChat, Chat: c}).Err(); err != nil {
		return nil, err
	}

	var added []string
	for _, id := range req.Participants {
		id = strings.TrimSpace(id)
		if id == "" || c.HasParticipant(id) {
			continue
		}
		if _, err := s.repo.GetUserByID(ctx, id); err != nil {
			return nil, err
		}
		c.Participants = append(c.Participants, id)
		added = append(added, id)
	}
	if len(added) == 0 {
		return c, nil
	}

	if err := s.repo.UpdateChat(ctx, c); err != nil {
		return nil, err
	}
	for _, id := range added {
		s.sink.Publish(realtime.UserRoom(id), realtime.ChatCreated, c)
	}
	return c, nil
}

// LeaveChat drops the actor from a group chat. When the admin leaves, the
// next participant in line takes over; the last one out leaves an empty chat.
func (s *Service) LeaveChat(ctx context.Context, actor, chatID string) error {
	c, err := s.chat(ctx, actor, chatID, authz.ViewChat)
	if err != nil {
		return err
	}
	if !c.IsGroup {
		return errors.Invalid("direct chats cannot be left")
	}

	c.Participants = slices.DeleteFunc(c.Participants, func(p string) bool { return p == actor })
	if c.Admin == actor {
		c.Admin = ""
		if len(c.Participants) > 0 {
			c.Admin = c.Participants[0]
		}
	}
	return s.repo.UpdateChat(ctx, c)
}
