package nodes

import (
	"context"

	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/labels"
	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

const DefaultWarnThreshold = 9

type Query struct {
	Nodes     NodeFilter
	Workloads WorkloadFilter
	// WarnThreshold is the number of matching nodes above which a warning
	// is logged before their workloads are fetched one by one.
	WarnThreshold int
}

// ListResult carries the selected nodes and the counts of every stage.
type ListResult struct {
	Total   int
	Matched int
	Online  int
	Offline int
	Nodes   []model.Node
}

// ListNodes fetches the labels and the tree, filters the nodes, reads the
// deployed workloads of the online ones and filters those. Offline nodes
// are counted but never returned.
func ListNodes(ctx context.Context, c *msapi.Client, q Query, opts ...WalkerOption) (*ListResult, error) {
	dict, err := labels.Fetch(ctx, c)
	if err != nil {
		return nil, err
	}
	w := NewWalker(c, dict, opts...)
	log := w.logger

	_, all, err := w.BuildTreeAndNodeList(ctx)
	if err != nil {
		return nil, err
	}
	log.Debug("node list created", zap.Int("nodes", len(all)))

	filtered := q.Nodes.Apply(all, log)
	threshold := q.WarnThreshold
	if threshold <= 0 {
		threshold = DefaultWarnThreshold
	}
	if len(filtered) > threshold {
		log.Warn("many nodes match, this may take a while; consider more specific node filters",
			zap.Int("nodes", len(filtered)))
	}

	res := &ListResult{Total: len(all), Matched: len(filtered)}
	online := make([]model.Node, 0, len(filtered))
	for _, n := range filtered {
		if !n.Online() {
			res.Offline++
			continue
		}
		log.Debug("getting workloads for node", zap.String("name", n.Name))
		deployed, err := FetchDeployedWorkloads(ctx, c, n.SerialNumber)
		if err != nil {
			return nil, err
		}
		n.Workloads = deployed
		online = append(online, n)
	}
	res.Online = len(online)
	res.Nodes = q.Workloads.Apply(online, log)
	return res, nil
}
