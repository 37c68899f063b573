package feed

import (
	"context"
	"slices"
	"strings"
	"time"

	"kyri56xcaesar/nexushub/internal/authz"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/realtime"
	"kyri56xcaesar/nexushub/internal/utils"

	"github.com/google/uuid"
)

func (s *Service) CreatePost(ctx context.Context, actor string, req CreatePostRequest) (*models.Post, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, errors.Invalid("content is required")
	}

	p := &models.Post{
		Author:   actor,
		Content:  content,
		Tags:     utils.NormalizeTags(req.Tags),
		Likes:    []string{},
		Comments: []models.PostComment{},
	}
	if err := s.repo.CreatePost(ctx, p); err != nil {
		return nil, err
	}

	s.sink.Publish(realtime.Broadcast, realtime.PostCreated, p)
	return p, nil
}

// ListPosts returns the newest posts, optionally by one author.
func (s *Service) ListPosts(ctx context.Context, author string, limit int) ([]models.Post, error) {
	return s.repo.ListPosts(ctx, author, limit)
}

func (s *Service) GetPost(ctx context.Context, id string) (*models.Post, error) {
	return s.repo.GetPost(ctx, id)
}

func (s *Service) DeletePost(ctx context.Context, actor, id string) error {
	p, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return err
	}
	if err := authz.Evaluate(authz.Request{Actor: actor, Action: authz.DeletePost, Post: p}).Err(); err != nil {
		return err
	}
	if err := s.repo.DeletePost(ctx, p.ID); err != nil {
		return err
	}

	s.sink.Publish(realtime.Broadcast, realtime.PostDeleted, map[string]string{"id": p.ID})
	return nil
}

// ToggleLike likes the post, or takes the like back if the actor already
// liked it. liked reports the resulting state.
func (s *Service) ToggleLike(ctx context.Context, actor, id string) (p *models.Post, liked bool, err error) {
	p, err = s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, false, err
	}

	if i := slices.Index(p.Likes, actor); i >= 0 {
		p.Likes = slices.Delete(p.Likes, i, i+1)
	} else {
		p.Likes = append(p.Likes, actor)
		liked = true
	}
	if err := s.repo.UpdatePost(ctx, p); err != nil {
		return nil, false, err
	}

	s.sink.Publish(realtime.Broadcast, realtime.PostUpdated, p)
	return p, liked, nil
}

func (s *Service) CommentPost(ctx context.Context, actor, id string, req CommentRequest) (*models.PostComment, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, errors.Invalid("text is required")
	}
	p, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}

	c := models.PostComment{ID: uuid.New().String(), User: actor, Text: text, CreatedAt: time.Now().UTC()}
	p.Comments = append(p.Comments, c)
	if err := s.repo.UpdatePost(ctx, p); err != nil {
		return nil, err
	}

	s.sink.Publish(realtime.Broadcast, realtime.PostUpdated, p)
	return &c, nil
}

// SharePost reposts id under the actor's name. Shares of a share point at
// the original post, which is the one whose counter moves.
func (s *Service) SharePost(ctx context.Context, actor, id string, req SharePostRequest) (*models.Post, error) {
	orig, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if orig.SharedFrom != "" {
		if root, err := s.repo.GetPost(ctx, orig.SharedFrom); err == nil {
			orig = root
		}
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		content = orig.Content
	}
	shared := &models.Post{
		Author:     actor,
		Content:    content,
		Tags:       orig.Tags,
		Likes:      []string{},
		Comments:   []models.PostComment{},
		SharedFrom: orig.ID,
	}
	if err := s.repo.CreatePost(ctx, shared); err != nil {
		return nil, err
	}

	orig.Shares++
	if err := s.repo.UpdatePost(ctx, orig); err != nil {
		return nil, err
	}

	s.sink.Publish(realtime.Broadcast, realtime.PostCreated, shared)
	s.sink.Publish(realtime.Broadcast, realtime.PostUpdated, orig)
	return shared, nil
}
