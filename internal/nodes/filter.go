package nodes

import (
	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/match"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

// NodeFilter selects nodes by attribute patterns. Empty fields match all.
// Label is matched against "key:value" and passes if any label matches.
type NodeFilter struct {
	Name    string
	Path    string
	Version string
	Model   string
	Label   string
}

func (f NodeFilter) Apply(nodes []model.Node, logger *zap.Logger) []model.Node {
	name := match.Compile(f.Name, logger)
	path := match.Compile(f.Path, logger)
	version := match.Compile(f.Version, logger)
	mdl := match.Compile(f.Model, logger)
	label := match.Compile(f.Label, logger)

	out := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		if f.Label != "" && !label.MatchAny(n.LabelStrings()) {
			continue
		}
		if !name.Match(n.Name) || !path.Match(n.PathString()) ||
			!version.Match(n.Version) || !mdl.Match(n.Model) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// WorkloadFilter selects deployed workloads by attribute patterns.
type WorkloadFilter struct {
	Name        string
	ID          string
	VersionName string
	VersionID   string
	Status      string
	Type        string
}

func (f WorkloadFilter) Empty() bool {
	return f == WorkloadFilter{}
}

// Apply keeps the nodes with at least one workload matching every pattern
// and prunes their Workloads to the matching entries. Without any pattern
// the nodes are returned untouched.
func (f WorkloadFilter) Apply(nodes []model.Node, logger *zap.Logger) []model.Node {
	if f.Empty() {
		return nodes
	}
	name := match.Compile(f.Name, logger)
	id := match.Compile(f.ID, logger)
	versionName := match.Compile(f.VersionName, logger)
	versionID := match.Compile(f.VersionID, logger)
	status := match.Compile(f.Status, logger)
	typ := match.Compile(f.Type, logger)

	out := make([]model.Node, 0, len(nodes))
	for _, n := range nodes {
		var kept []model.DeployedWorkload
		for _, wl := range n.Workloads {
			if name.Match(wl.Name) && id.Match(wl.ID) &&
				versionName.Match(wl.VersionName) && versionID.Match(wl.VersionID) &&
				status.Match(wl.State) && typ.Match(wl.Type) {
				kept = append(kept, wl)
			}
		}
		if len(kept) == 0 {
			continue
		}
		n.Workloads = kept
		out = append(out, n)
	}
	return out
}
