package pipeline

import (
	"context"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/dlr-sc/gitlab2graph/internal/graph"
)

// LabelPipeline loads the project's labels, including usage counters.
type LabelPipeline struct {
	base
	labels []*gitlab.Label
}

// NewLabelPipeline creates the label pipeline.
func NewLabelPipeline(deps Deps) Pipeline {
	return &LabelPipeline{base: newBase("Label", graph.Label, deps)}
}

func (p *LabelPipeline) Request(ctx context.Context) (int, error) {
	labels, err := p.source.Labels(ctx)
	if err != nil {
		return 0, err
	}
	p.labels = labels
	return len(labels), nil
}

func (p *LabelPipeline) Transform(ctx context.Context) error {
	for _, label := range p.labels {
		node, err := p.graph.Create(ctx, graph.Label, labelBag(label))
		if err != nil {
			return err
		}
		p.nodes = append(p.nodes, node)
	}
	return nil
}
