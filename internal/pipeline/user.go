package pipeline

import (
	"context"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/dlr-sc/gitlab2graph/internal/graph"
)

// UserPipeline loads the project's members and ties each of them to
// the project node. It runs first so every later pipeline can resolve
// users by id.
type UserPipeline struct {
	base
	users []*gitlab.ProjectUser
}

// NewUserPipeline creates the user pipeline.
func NewUserPipeline(deps Deps) Pipeline {
	return &UserPipeline{base: newBase("User", graph.User, deps)}
}

func (p *UserPipeline) Request(ctx context.Context) (int, error) {
	users, err := p.source.ProjectUsers(ctx)
	if err != nil {
		return 0, err
	}
	p.users = users
	return len(users), nil
}

func (p *UserPipeline) Transform(ctx context.Context) error {
	for _, user := range p.users {
		node, err := p.graph.Create(ctx, graph.User, userBag(user))
		if err != nil {
			return err
		}
		if err := node.Relate("BELONGS_TO", p.project); err != nil {
			return err
		}
		p.nodes = append(p.nodes, node)
	}
	return nil
}
