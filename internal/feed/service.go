// Package feed serves the social surfaces: posts with likes, comments and
// shares, and direct or group chats. Every write is pushed to the matching
// realtime room after it is stored.
package feed

import (
	"context"

	"kyri56xcaesar/nexushub/internal/domain/models"
	"kyri56xcaesar/nexushub/internal/realtime"
	"kyri56xcaesar/nexushub/internal/store"
)

type Repository interface {
	store.PostRepository
	store.ChatRepository
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type Service struct {
	repo Repository
	sink realtime.Sink
}

func NewService(repo Repository, sink realtime.Sink) *Service {
	if sink == nil {
		sink = realtime.NopSink{}
	}
	return &Service{repo: repo, sink: sink}
}
