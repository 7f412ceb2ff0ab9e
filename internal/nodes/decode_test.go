package nodes

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/internal/mstest"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

func deviceJSON(t *testing.T, mutate func(map[string]any)) json.RawMessage {
	t.Helper()
	rec := mstest.DeviceRecord(mstest.Device{
		ID: "dev-1", Name: "web", Model: "docker",
		WorkloadID: "w1", VersionID: "v1", VersionName: "1.0",
		Options: []string{"IDLE", "STARTED", "STOPPED"}, State: 1,
	})
	if mutate != nil {
		mutate(rec)
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return data
}

func services(rec map[string]any) []any { return rec["service_list"].([]any) }

func stateProp(rec map[string]any) map[string]any {
	props := services(rec)[1].(map[string]any)["property_list"].([]any)
	return props[2].(map[string]any)
}

func TestDecodeDeployedWorkload(t *testing.T) {
	wl, err := DecodeDeployedWorkload(deviceJSON(t, nil))
	require.NoError(t, err)
	assert.Equal(t, model.DeployedWorkload{
		Name:        "web",
		Type:        "docker",
		ID:          "w1",
		VersionID:   "v1",
		VersionName: "1.0",
		State:       "STARTED",
		DeviceID:    "dev-1",
	}, wl)
}

func TestDecodeDeployedWorkloadWithoutDeviceID(t *testing.T) {
	wl, err := DecodeDeployedWorkload(deviceJSON(t, func(rec map[string]any) { delete(rec, "id") }))
	require.NoError(t, err)
	assert.Empty(t, wl.DeviceID)
	assert.Equal(t, "web", wl.Name)
}

func TestDecodeDeployedWorkloadErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		action bool
	}{
		{
			name:   "three services",
			mutate: func(rec map[string]any) { rec["service_list"] = append(services(rec), map[string]any{}) },
			action: true,
		},
		{
			name:   "one service",
			mutate: func(rec map[string]any) { rec["service_list"] = services(rec)[:1] },
			action: true,
		},
		{
			name:   "state property renamed",
			mutate: func(rec map[string]any) { stateProp(rec)["name"] = "Status" },
			action: true,
		},
		{
			name:   "options not a list",
			mutate: func(rec map[string]any) { stateProp(rec)["options"] = "STARTED" },
		},
		{
			name:   "state value out of range",
			mutate: func(rec map[string]any) { stateProp(rec)["value"] = 3 },
		},
		{
			name:   "state value not an integer",
			mutate: func(rec map[string]any) { stateProp(rec)["value"] = "1" },
		},
		{
			name:   "missing device_name",
			mutate: func(rec map[string]any) { delete(rec, "device_name") },
		},
		{
			name:   "service_list not a list",
			mutate: func(rec map[string]any) { rec["service_list"] = map[string]any{} },
		},
		{
			name: "identity not JSON",
			mutate: func(rec map[string]any) {
				props := services(rec)[0].(map[string]any)["property_list"].([]any)
				props[0].(map[string]any)["value"] = "not json"
			},
		},
		{
			name: "identity without versionId",
			mutate: func(rec map[string]any) {
				props := services(rec)[0].(map[string]any)["property_list"].([]any)
				props[0].(map[string]any)["value"] = `{"workloadId":"w1","workloadVersionName":"1.0"}`
			},
		},
		{
			name: "too few control properties",
			mutate: func(rec map[string]any) {
				svc := services(rec)[1].(map[string]any)
				svc["property_list"] = svc["property_list"].([]any)[:2]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDeployedWorkload(deviceJSON(t, tt.mutate))
			require.Error(t, err)
			if tt.action {
				var aerr *msapi.ActionError
				assert.ErrorAs(t, err, &aerr)
			} else {
				var ferr *msapi.FormatError
				assert.ErrorAs(t, err, &ferr)
			}
		})
	}
}
