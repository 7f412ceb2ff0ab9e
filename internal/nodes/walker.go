package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/labels"
	"github.com/balaji-balu/nerve-cli/internal/metrics"
	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/internal/telemetry"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

const (
	DefaultMaxDepth = 64
	// RootPathSegment is the first path segment of every tree entry,
	// whatever the root is called on the management system.
	RootPathSegment = "root"
)

// Walker fetches the organisation tree of the management system, one
// request per container, and flattens its node leaves.
type Walker struct {
	client   *msapi.Client
	labels   labels.Dictionary
	maxDepth int
	logger   *zap.Logger
	metrics  *metrics.Recorder
	tracer   trace.Tracer
}

type WalkerOption func(*Walker)

// WithMaxDepth bounds the number of container levels below the root.
func WithMaxDepth(n int) WalkerOption {
	return func(w *Walker) {
		if n > 0 {
			w.maxDepth = n
		}
	}
}

func WithLogger(l *zap.Logger) WalkerOption {
	return func(w *Walker) {
		if l != nil {
			w.logger = l
		}
	}
}

func WithMetrics(m *metrics.Recorder) WalkerOption {
	return func(w *Walker) { w.metrics = m }
}

// NewWalker returns a walker resolving label ids through dict. A nil
// dictionary leaves every node without labels.
func NewWalker(c *msapi.Client, dict labels.Dictionary, opts ...WalkerOption) *Walker {
	w := &Walker{
		client:   c,
		labels:   dict,
		maxDepth: DefaultMaxDepth,
		logger:   zap.NewNop(),
		tracer:   telemetry.Tracer("nodes"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// pending is a container whose children still have to be fetched.
type pending struct {
	tn    *model.TreeNode
	depth int
}

// BuildTreeAndNodeList walks the whole tree. The node list is in depth-first
// order following the children order returned by the API. Any malformed
// response aborts the walk and nothing is returned.
func (w *Walker) BuildTreeAndNodeList(ctx context.Context) (*model.TreeNode, []model.Node, error) {
	ctx, span := w.tracer.Start(ctx, "nodes.BuildTreeAndNodeList")
	defer span.End()

	root, nodes, err := w.walk(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	span.SetAttributes(attribute.Int("nerve.nodes", len(nodes)))
	w.metrics.SetNodesDiscovered(len(nodes))
	return root, nodes, nil
}

func (w *Walker) walk(ctx context.Context) (*model.TreeNode, []model.Node, error) {
	root, err := w.fetchRoot(ctx)
	if err != nil {
		return nil, nil, err
	}

	visited := map[string]bool{root.ID: true}
	stack := []pending{{tn: root, depth: 0}}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		children, err := w.fetchChildren(ctx, cur.tn)
		if err != nil {
			return nil, nil, err
		}
		cur.tn.Children = children

		// Reverse push keeps the fetch order depth-first in API order.
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			if !child.Kind.Container() {
				continue
			}
			if visited[child.ID] {
				return nil, nil, msapi.Formatf("node tree",
					"cycle detected: %s %q (%s) is reachable twice", child.Kind, child.Name, child.ID)
			}
			if cur.depth+1 > w.maxDepth {
				return nil, nil, msapi.Formatf("node tree",
					"tree deeper than %d levels at %s", w.maxDepth, joinPath(child.Path))
			}
			visited[child.ID] = true
			stack = append(stack, pending{tn: child, depth: cur.depth + 1})
		}
	}

	return root, Flatten(root), nil
}

// Flatten returns the node leaves of the tree in depth-first order.
func Flatten(root *model.TreeNode) []model.Node {
	var out []model.Node
	if root == nil {
		return out
	}
	stack := []*model.TreeNode{root}
	for len(stack) > 0 {
		tn := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if tn.Node != nil {
			out = append(out, *tn.Node)
			continue
		}
		for i := len(tn.Children) - 1; i >= 0; i-- {
			stack = append(stack, tn.Children[i])
		}
	}
	return out
}

func (w *Walker) fetchRoot(ctx context.Context) (*model.TreeNode, error) {
	const path = "/nerve/tree-node/type/root"
	resp, err := w.client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var roots []rawObject
	if err := resp.Decode("node tree root", &roots); err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, msapi.Formatf("node tree root", "no root returned")
	}
	if len(roots) > 1 {
		w.logger.Warn("management system returned more than one tree root, using the first",
			zap.Int("roots", len(roots)))
	}

	root, err := treeEntry("node tree root", roots[0])
	if err != nil {
		return nil, err
	}
	root.Path = []string{RootPathSegment}
	if !root.Kind.Container() {
		return nil, msapi.Formatf("node tree root", "root has type %q", root.Kind)
	}
	return root, nil
}

func (w *Walker) fetchChildren(ctx context.Context, parent *model.TreeNode) ([]*model.TreeNode, error) {
	var path string
	switch parent.Kind {
	case model.KindRoot, model.KindFolder:
		path = "/nerve/tree-node/parent/" + url.PathEscape(parent.ID)
	case model.KindUnassigned:
		path = "/nerve/tree-node/child-type/unassigned"
	default:
		return nil, fmt.Errorf("tree node %q of type %q has no children", parent.Name, parent.Kind)
	}

	w.logger.Debug("reading node tree item",
		zap.String("name", parent.Name),
		zap.String("type", string(parent.Kind)),
	)

	resp, err := w.client.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	listCtx := "children of " + joinPath(parent.Path)
	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, msapi.Formatf(listCtx, "response is not a list")
	}

	children := make([]*model.TreeNode, 0, len(raw))
	for i, item := range raw {
		var obj rawObject
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, msapi.Formatf(listCtx, "entry %d is not an object", i)
		}
		child, err := treeEntry(listCtx, obj)
		if err != nil {
			return nil, err
		}
		child.Path = append(append(make([]string, 0, len(parent.Path)+1), parent.Path...), child.Name)
		if _, err := model.ParseTreeKind(string(child.Kind)); err != nil {
			w.logger.Warn("skipping tree entry", zap.String("name", child.Name), zap.Error(err))
		} else if child.Kind == model.KindNode {
			node, err := w.decodeNode(child, obj)
			if err != nil {
				return nil, err
			}
			child.Node = &node
		}
		children = append(children, child)
	}
	return children, nil
}

func treeEntry(ctx string, obj rawObject) (*model.TreeNode, error) {
	if err := msapi.RequireKeys(ctx, obj, "_id", "name", "type"); err != nil {
		return nil, err
	}
	id, err := stringField(ctx, obj, "_id")
	if err != nil {
		return nil, err
	}
	name, err := stringField(ctx, obj, "name")
	if err != nil {
		return nil, err
	}
	kind, err := stringField(ctx, obj, "type")
	if err != nil {
		return nil, err
	}

	return &model.TreeNode{ID: id, Name: name, Kind: model.TreeKind(kind)}, nil
}

type rawDevice struct {
	SerialNumber     *string  `json:"serialNumber"`
	ConnectionStatus *string  `json:"connectionStatus"`
	CurrentFWVersion *string  `json:"currentFWVersion"`
	Model            *string  `json:"model"`
	Labels           []string `json:"labels"`
}

func (w *Walker) decodeNode(tn *model.TreeNode, obj rawObject) (model.Node, error) {
	ctx := "node " + joinPath(tn.Path)
	if err := msapi.RequireKeys(ctx, obj, "device"); err != nil {
		return model.Node{}, err
	}
	var fields rawObject
	if err := json.Unmarshal(obj["device"], &fields); err != nil {
		return model.Node{}, msapi.Formatf(ctx, "device is not an object")
	}
	if err := msapi.RequireKeys(ctx+" device", fields,
		"serialNumber", "connectionStatus", "currentFWVersion", "model", "labels"); err != nil {
		return model.Node{}, err
	}
	var dev rawDevice
	if err := json.Unmarshal(obj["device"], &dev); err != nil {
		return model.Node{}, msapi.Formatf(ctx+" device", "%v", err)
	}

	return model.Node{
		ID:               tn.ID,
		Name:             tn.Name,
		SerialNumber:     deref(dev.SerialNumber),
		ConnectionStatus: deref(dev.ConnectionStatus),
		Version:          deref(dev.CurrentFWVersion),
		Model:            deref(dev.Model),
		Labels:           w.labels.Resolve(dev.Labels, w.logger),
		// The tree path ends with the node's own name.
		Path: append([]string{}, tn.Path[:len(tn.Path)-1]...),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinPath(p []string) string {
	return model.Node{Path: p}.PathString()
}
