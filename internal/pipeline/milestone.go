package pipeline

import (
	"context"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/dlr-sc/gitlab2graph/internal/graph"
)

// MilestonePipeline loads the project's milestones.
type MilestonePipeline struct {
	base
	milestones []*gitlab.Milestone
}

// NewMilestonePipeline creates the milestone pipeline.
func NewMilestonePipeline(deps Deps) Pipeline {
	return &MilestonePipeline{base: newBase("Milestone", graph.Milestone, deps)}
}

func (p *MilestonePipeline) Request(ctx context.Context) (int, error) {
	milestones, err := p.source.Milestones(ctx)
	if err != nil {
		return 0, err
	}
	p.milestones = milestones
	return len(milestones), nil
}

func (p *MilestonePipeline) Transform(ctx context.Context) error {
	for _, milestone := range p.milestones {
		node, err := p.graph.Create(ctx, graph.Milestone, milestoneBag(milestone))
		if err != nil {
			return err
		}
		p.nodes = append(p.nodes, node)
	}
	return nil
}
