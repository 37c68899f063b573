package mproject

import (
	"context"
	stderrors "errors"

	"kyri56xcaesar/nexushub/internal/authz"
	"kyri56xcaesar/nexushub/internal/domain/errors"
	"kyri56xcaesar/nexushub/internal/domain/models"
)

// Loader is the read side LoadProject needs.
type Loader interface {
	GetProject(ctx context.Context, id string) (*models.Project, error)
	GetTeam(ctx context.Context, id string) (*models.Team, error)
}

// LoadProject fetches a project and its parent team (nil for personal or
// detached projects). A project the actor may not view is reported as not
// found so its existence does not leak.
func LoadProject(ctx context.Context, l Loader, actor, id string) (*models.Project, *models.Team, error) {
	p, err := l.GetProject(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var team *models.Team
	if p.TeamID != "" {
		team, err = l.GetTeam(ctx, p.TeamID)
		if err != nil && !stderrors.Is(err, errors.ErrNotFound) {
			return nil, nil, err
		}
	}

	if !authz.Allowed(authz.Request{Actor: actor, Action: authz.ViewProject, Project: p, Team: team}) {
		return nil, nil, errors.ErrProjectNotFound
	}
	return p, team, nil
}
