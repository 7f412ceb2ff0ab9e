package nodes

import (
	"context"

	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/match"
	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

// Reconciler completes loosely identified node records against a fresh
// walk of the tree. Records that cannot be resolved are dropped.
type Reconciler struct {
	walker *Walker
	client *msapi.Client
	logger *zap.Logger
}

func NewReconciler(w *Walker, c *msapi.Client, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{walker: w, client: c, logger: logger}
}

var (
	bySerial = func(n model.Node) string { return n.SerialNumber }
	byName   = func(n model.Node) string { return n.Name }

	byDeviceID    = func(w model.DeployedWorkload) string { return w.DeviceID }
	byWorkload    = func(w model.DeployedWorkload) string { return w.Name }
	byVersionName = func(w model.DeployedWorkload) string { return w.VersionName }
)

// Reconcile resolves each ref by serial number, or by name when it has no
// serial number, and returns the matches in input order. With
// withWorkloads the ref's own workload entries are resolved against the
// workloads deployed on the node; offline nodes get none.
func (r *Reconciler) Reconcile(ctx context.Context, refs []model.NodeRef, withWorkloads bool) ([]model.Node, error) {
	_, all, err := r.walker.BuildTreeAndNodeList(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.Node, 0, len(refs))
	for _, ref := range refs {
		found, key, ok := match.Resolve(all,
			match.Key[model.Node]{Name: "serial_number", Field: bySerial, Value: ref.SerialNumber},
			match.Key[model.Node]{Name: "name", Field: byName, Value: ref.Name},
		)
		if key == "" {
			r.logger.Debug("skipping node entry without serial_number or name", zap.String("_id", ref.ID))
			continue
		}
		if !ok {
			r.logger.Debug("node not found", zap.String(key, keyValue(ref, key)))
			continue
		}

		node := cloneNode(found)
		node.Workloads = []model.DeployedWorkload{}
		if withWorkloads && len(ref.Workloads) > 0 && node.Online() {
			deployed, err := FetchDeployedWorkloads(ctx, r.client, node.SerialNumber)
			if err != nil {
				return nil, err
			}
			node.Workloads = ReconcileWorkloads(ref.Workloads, deployed, r.logger)
		}
		out = append(out, node)
	}
	return out, nil
}

// ReconcileWorkloads resolves each ref by device id, else name, else version
// name against the deployed list.
func ReconcileWorkloads(refs []model.WorkloadRef, deployed []model.DeployedWorkload, logger *zap.Logger) []model.DeployedWorkload {
	out := make([]model.DeployedWorkload, 0, len(refs))
	for _, ref := range refs {
		found, key, ok := match.Resolve(deployed,
			match.Key[model.DeployedWorkload]{Name: "device_id", Field: byDeviceID, Value: ref.DeviceID},
			match.Key[model.DeployedWorkload]{Name: "name", Field: byWorkload, Value: ref.Name},
			match.Key[model.DeployedWorkload]{Name: "version_name", Field: byVersionName, Value: ref.VersionName},
		)
		if !ok {
			if logger != nil {
				logger.Debug("workload entry not resolved", zap.String("key", key))
			}
			continue
		}
		out = append(out, found)
	}
	return out
}

// NeedsReconcile reports whether refs lack the identifiers needed to act on
// them directly: a serial number per node and, with withWorkloads, a device
// id per workload.
func NeedsReconcile(refs []model.NodeRef, withWorkloads bool) bool {
	for _, ref := range refs {
		if ref.SerialNumber == "" {
			return true
		}
		if !withWorkloads {
			continue
		}
		for _, wl := range ref.Workloads {
			if wl.DeviceID == "" {
				return true
			}
		}
	}
	return false
}

func keyValue(ref model.NodeRef, key string) string {
	if key == "serial_number" {
		return ref.SerialNumber
	}
	return ref.Name
}

func cloneNode(n model.Node) model.Node {
	n.Labels = append([]model.Label(nil), n.Labels...)
	n.Path = append([]string(nil), n.Path...)
	n.Workloads = append([]model.DeployedWorkload(nil), n.Workloads...)
	return n
}
