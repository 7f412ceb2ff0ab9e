package nodes

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balaji-balu/nerve-cli/internal/labels"
	"github.com/balaji-balu/nerve-cli/internal/metrics"
	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/internal/mstest"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

// newFleet serves a tree with a folder, a node directly below the root and
// the unassigned container:
//
//	Acme
//	├── Plant
//	│   ├── press-2  (S2, offline)
//	│   └── press-3  (S3, online, site:vienna)
//	├── edge-1       (S1, online)
//	└── Unassigned
//	    └── spare-4  (S4, online)
func newFleet(t *testing.T) (*mstest.Server, *msapi.Client) {
	t.Helper()
	srv := mstest.New(t)
	srv.Roots = []any{mstest.TreeEntry("r", "Acme", "root")}
	srv.Children["r"] = []any{
		mstest.TreeEntry("f1", "Plant", "folder"),
		mstest.NodeEntry("n1", "edge-1", "S1", "online", "2.8.1", "MFN 100"),
		mstest.TreeEntry("u", "Unassigned", "unassigned"),
	}
	srv.Children["f1"] = []any{
		mstest.NodeEntry("n2", "press-2", "S2", "offline", "2.7.0", "MFN 100"),
		mstest.NodeEntry("n3", "press-3", "S3", "online", "2.8.1", "IPC 227", "l1"),
	}
	srv.Unassigned = []any{
		mstest.NodeEntry("n4", "spare-4", "S4", "online", "2.8.1", "MFN 100", "l2"),
	}
	srv.Labels = []map[string]any{
		mstest.LabelRecord("l1", "site", "vienna"),
		mstest.LabelRecord("l2", "site", "graz"),
	}
	srv.Devices["S3"] = []any{
		mstest.DeviceRecord(mstest.Device{
			ID: "d1", Name: "web", Model: "docker",
			WorkloadID: "w1", VersionID: "v1", VersionName: "1.0",
			Options: []string{"STARTED", "STOPPED"}, State: 0,
		}),
		mstest.DeviceRecord(mstest.Device{
			ID: "d2", Name: "plc", Model: "vm",
			WorkloadID: "w2", VersionID: "v7", VersionName: "7.1",
			Options: []string{"STARTED", "STOPPED"}, State: 1,
		}),
	}
	srv.Devices["S4"] = []any{
		mstest.DeviceRecord(mstest.Device{
			ID: "d3", Name: "web", Model: "docker",
			WorkloadID: "w1", VersionID: "v2", VersionName: "2.0",
			Options: []string{"STARTED", "STOPPED"}, State: 1,
		}),
	}
	return srv, msapi.NewClient(msapi.Session{ID: srv.SessionID, BaseURL: srv.URL})
}

func serials(nodes []model.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.SerialNumber)
	}
	return out
}

func TestBuildTreeAndNodeList(t *testing.T) {
	_, c := newFleet(t)
	ctx := context.Background()

	dict, err := labels.Fetch(ctx, c)
	require.NoError(t, err)
	rec := metrics.New()

	root, nodes, err := NewWalker(c, dict, WithMetrics(rec)).BuildTreeAndNodeList(ctx)
	require.NoError(t, err)

	assert.Equal(t, root.Leaves(), len(nodes))
	assert.Equal(t, []string{"S2", "S3", "S1", "S4"}, serials(nodes))
	require.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(`
# HELP nerve_nodes_discovered Nodes found by the last tree walk
# TYPE nerve_nodes_discovered gauge
nerve_nodes_discovered 4
`), "nerve_nodes_discovered"))

	byName := map[string]model.Node{}
	for _, n := range nodes {
		byName[n.Name] = n
		assert.NotContains(t, n.Path, n.Name, "path excludes the node's own name")
	}
	assert.Equal(t, []string{"root", "Plant"}, byName["press-3"].Path)
	assert.Equal(t, []string{"root"}, byName["edge-1"].Path)
	assert.Equal(t, []string{"root", "Unassigned"}, byName["spare-4"].Path)

	assert.Equal(t, []model.Label{{Key: "site", Value: "vienna"}}, byName["press-3"].Labels)
	assert.Empty(t, byName["edge-1"].Labels)
	assert.Equal(t, "2.7.0", byName["press-2"].Version)
	assert.False(t, byName["press-2"].Online())

	require.Len(t, root.Children, 3)
	assert.Equal(t, model.KindFolder, root.Children[0].Kind)
	assert.Equal(t, "press-2", root.Children[0].Children[0].Name)
}

func TestBuildTreeWithoutLabels(t *testing.T) {
	_, c := newFleet(t)
	_, nodes, err := NewWalker(c, nil).BuildTreeAndNodeList(context.Background())
	require.NoError(t, err)
	for _, n := range nodes {
		assert.NotNil(t, n.Labels)
		assert.Empty(t, n.Labels)
	}
}

func TestWalkerErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*mstest.Server)
		opts    []WalkerOption
		missing []string
	}{
		{
			name:   "no root",
			mutate: func(s *mstest.Server) { s.Roots = []any{} },
		},
		{
			name: "cycle",
			mutate: func(s *mstest.Server) {
				s.Children["f1"] = []any{mstest.TreeEntry("r", "Acme again", "folder")}
			},
		},
		{
			name: "too deep",
			mutate: func(s *mstest.Server) {
				s.Children["f1"] = []any{mstest.TreeEntry("f2", "Line", "folder")}
			},
			opts: []WalkerOption{WithMaxDepth(1)},
		},
		{
			name: "node without device",
			mutate: func(s *mstest.Server) {
				s.Children["f1"] = []any{mstest.TreeEntry("n9", "bare", "node")}
			},
			missing: []string{"device"},
		},
		{
			name: "device without serial number",
			mutate: func(s *mstest.Server) {
				n := mstest.NodeEntry("n9", "broken", "S9", "online", "2.8.1", "MFN 100")
				delete(n["device"].(map[string]any), "serialNumber")
				s.Children["f1"] = []any{n}
			},
			missing: []string{"serialNumber"},
		},
		{
			name: "entry without name",
			mutate: func(s *mstest.Server) {
				s.Children["f1"] = []any{map[string]any{"_id": "x", "type": "folder"}}
			},
			missing: []string{"name"},
		},
		{
			name:   "children not a list",
			mutate: func(s *mstest.Server) { s.Children["f1"] = map[string]any{"count": 1} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, c := newFleet(t)
			tt.mutate(srv)

			root, nodes, err := NewWalker(c, nil, tt.opts...).BuildTreeAndNodeList(context.Background())
			var ferr *msapi.FormatError
			require.ErrorAs(t, err, &ferr)
			assert.Nil(t, root)
			assert.Nil(t, nodes)
			if tt.missing != nil {
				assert.Equal(t, tt.missing, ferr.Missing)
			}
		})
	}
}

func TestWalkerKeepsUnknownKinds(t *testing.T) {
	srv, c := newFleet(t)
	srv.Children["f1"] = []any{
		mstest.TreeEntry("g1", "gateway-1", "gateway"),
		mstest.NodeEntry("n3", "press-3", "S3", "online", "2.8.1", "IPC 227"),
	}

	root, nodes, err := NewWalker(c, nil).BuildTreeAndNodeList(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"S3", "S1", "S4"}, serials(nodes))
	assert.Equal(t, "gateway-1", root.Children[0].Children[0].Name)
	assert.Nil(t, root.Children[0].Children[0].Node)
}

func TestWalkerRequiresSession(t *testing.T) {
	_, _, err := NewWalker(msapi.NewClient(msapi.Session{}), nil).BuildTreeAndNodeList(context.Background())
	assert.ErrorIs(t, err, msapi.ErrNotLoggedIn)
}

func TestFlatten(t *testing.T) {
	leaf := func(serial string) *model.TreeNode {
		return &model.TreeNode{Kind: model.KindNode, Node: &model.Node{SerialNumber: serial}}
	}
	root := &model.TreeNode{Kind: model.KindRoot, Children: []*model.TreeNode{
		leaf("a"),
		{Kind: model.KindFolder, Children: []*model.TreeNode{leaf("b"), {Kind: model.KindFolder}, leaf("c")}},
		leaf("d"),
	}}
	assert.Equal(t, []string{"a", "b", "c", "d"}, serials(Flatten(root)))
	assert.Empty(t, Flatten(nil))
}
