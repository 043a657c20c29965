package pipeline

// Constructor builds one pipeline from its dependencies.
type Constructor func(Deps) Pipeline

// registry lists the pipelines in execution order. Users must come
// first so later pipelines can resolve them, merge requests run after
// issues so branch back-references find their issue nodes.
var registry = []Constructor{
	NewUserPipeline,
	NewLabelPipeline,
	NewMilestonePipeline,
	NewIssuePipeline,
	NewMergeRequestPipeline,
	NewCommitPipeline,
}

// Build constructs every registered pipeline in execution order.
func Build(deps Deps) []Pipeline {
	pipelines := make([]Pipeline, 0, len(registry))
	for _, construct := range registry {
		pipelines = append(pipelines, construct(deps))
	}
	return pipelines
}
