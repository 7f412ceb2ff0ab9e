package mstest

import (
	"encoding/json"
)

// TreeEntry is a container entry (root, folder or unassigned) as returned
// by the tree-node endpoints.
func TreeEntry(id, name, kind string) map[string]any {
	return map[string]any{"_id": id, "name": name, "type": kind}
}

// NodeEntry is a leaf of the tree carrying its device sub-record.
func NodeEntry(id, name, serial, status, firmware, model string, labelIDs ...string) map[string]any {
	if labelIDs == nil {
		labelIDs = []string{}
	}
	return map[string]any{
		"_id":  id,
		"name": name,
		"type": "node",
		"device": map[string]any{
			"serialNumber":     serial,
			"connectionStatus": status,
			"currentFWVersion": firmware,
			"model":            model,
			"labels":           labelIDs,
		},
	}
}

func LabelRecord(id, key, value string) map[string]any {
	return map[string]any{"_id": id, "key": key, "value": value}
}

// Device describes a deployed workload for DeviceRecord.
type Device struct {
	ID          string
	Name        string
	Model       string
	WorkloadID  string
	VersionID   string
	VersionName string
	Options     []string
	State       int
}

// DeviceRecord renders d in the service/property layout of
// GET /nerve/workload/node/{serial}/devices.
func DeviceRecord(d Device) map[string]any {
	identity, _ := json.Marshal(map[string]string{
		"workloadId":          d.WorkloadID,
		"versionId":           d.VersionID,
		"workloadVersionName": d.VersionName,
	})
	return map[string]any{
		"id":                d.ID,
		"device_name":       d.Name,
		"device_model_name": d.Model,
		"service_list": []any{
			map[string]any{
				"name": "Info",
				"property_list": []any{
					map[string]any{"name": "Workload", "value": string(identity)},
				},
			},
			map[string]any{
				"name": "Control",
				"property_list": []any{
					map[string]any{"name": "Start", "value": 0},
					map[string]any{"name": "Stop", "value": 0},
					map[string]any{"name": "State", "options": d.Options, "value": d.State},
				},
			},
		},
	}
}
