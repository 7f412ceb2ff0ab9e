package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	ConnectionOnline  = "online"
	ConnectionOffline = "offline"
)

// Node is a device attached to the management tree. Path holds the folder
// names from the root and never includes the node's own name.
type Node struct {
	ID               string             `json:"_id"`
	Name             string             `json:"name"`
	SerialNumber     string             `json:"serial_number"`
	ConnectionStatus string             `json:"connection_status"`
	Version          string             `json:"version"`
	Model            string             `json:"model"`
	Labels           []Label            `json:"labels"`
	Path             []string           `json:"path"`
	Workloads        []DeployedWorkload `json:"workloads"`
}

func (n Node) Online() bool {
	return n.ConnectionStatus == ConnectionOnline
}

func (n Node) PathString() string {
	return strings.Join(n.Path, "/")
}

// LabelStrings renders every label as "key:value".
func (n Node) LabelStrings() []string {
	out := make([]string, 0, len(n.Labels))
	for _, l := range n.Labels {
		out = append(out, l.String())
	}
	return out
}

// Label is a user defined tag. It is persisted as a two element array
// ["key", "value"] so node files stay compatible with older tooling.
type Label struct {
	Key   string
	Value string
}

func (l Label) String() string {
	return l.Key + ":" + l.Value
}

func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Key, l.Value})
}

func (l *Label) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) != 2 {
			return fmt.Errorf("label: expected [key, value], got %d elements", len(pair))
		}
		l.Key, l.Value = pair[0], pair[1]
		return nil
	}
	var obj struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("label: %w", err)
	}
	l.Key, l.Value = obj.Key, obj.Value
	return nil
}

// DeployedWorkload is a workload instance running on a specific node.
type DeployedWorkload struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	ID          string `json:"_id"`
	VersionID   string `json:"version_id"`
	VersionName string `json:"version_name"`
	State       string `json:"state"`
	DeviceID    string `json:"device_id"`
}

// NodeRef is a loosely identified node as written by a user or loaded back
// from a node file. Only the identifying fields are read.
type NodeRef struct {
	ID           string        `json:"_id,omitempty"`
	Name         string        `json:"name,omitempty"`
	SerialNumber string        `json:"serial_number,omitempty"`
	Workloads    []WorkloadRef `json:"workloads,omitempty"`
}

// WorkloadRef identifies a deployed workload by device id, name or version name.
type WorkloadRef struct {
	DeviceID    string `json:"device_id,omitempty"`
	Name        string `json:"name,omitempty"`
	VersionName string `json:"version_name,omitempty"`
}

// Ref reduces a fully populated node to its identifying fields.
func (n Node) Ref() NodeRef {
	ref := NodeRef{ID: n.ID, Name: n.Name, SerialNumber: n.SerialNumber}
	for _, wl := range n.Workloads {
		ref.Workloads = append(ref.Workloads, WorkloadRef{
			DeviceID:    wl.DeviceID,
			Name:        wl.Name,
			VersionName: wl.VersionName,
		})
	}
	return ref
}
