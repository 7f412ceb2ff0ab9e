package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

const decodeContext = "deployed workload"

// The device service layout has no version marker: the workload identity is
// the JSON text in service 0, property 0 and the run state is the "State"
// property at index 2 of service 1.
const (
	identityService  = 0
	identityProperty = 0
	stateService     = 1
	stateProperty    = 2
	stateName        = "State"
)

type rawObject = map[string]json.RawMessage

// DecodeDeployedWorkload extracts a deployed workload from one record of
// GET /nerve/workload/node/{serial}/devices.
func DecodeDeployedWorkload(raw json.RawMessage) (model.DeployedWorkload, error) {
	var wl model.DeployedWorkload

	var rec rawObject
	if err := json.Unmarshal(raw, &rec); err != nil {
		return wl, msapi.Formatf(decodeContext, "record is not an object")
	}
	if err := msapi.RequireKeys(decodeContext, rec, "device_name", "device_model_name", "service_list"); err != nil {
		return wl, err
	}

	var services []json.RawMessage
	if err := json.Unmarshal(rec["service_list"], &services); err != nil {
		return wl, msapi.Formatf(decodeContext, "service_list is not a list")
	}
	if len(services) != 2 {
		return wl, msapi.Actionf("decode deployed workload",
			"expected 2 services in response to getting deployed workloads, got %d", len(services))
	}

	var err error
	if wl.Name, err = stringField(decodeContext, rec, "device_name"); err != nil {
		return wl, err
	}
	if wl.Type, err = stringField(decodeContext, rec, "device_model_name"); err != nil {
		return wl, err
	}
	if _, ok := rec["id"]; ok {
		if wl.DeviceID, err = stringField(decodeContext, rec, "id"); err != nil {
			return wl, err
		}
	}

	identity, err := property(services, identityService, identityProperty)
	if err != nil {
		return wl, err
	}
	if err := decodeIdentity(identity, &wl); err != nil {
		return wl, err
	}

	state, err := property(services, stateService, stateProperty)
	if err != nil {
		return wl, err
	}
	if wl.State, err = decodeState(state); err != nil {
		return wl, err
	}
	return wl, nil
}

func property(services []json.RawMessage, service, index int) (rawObject, error) {
	ctx := fmt.Sprintf("%s service %d", decodeContext, service)

	var svc rawObject
	if err := json.Unmarshal(services[service], &svc); err != nil {
		return nil, msapi.Formatf(ctx, "service is not an object")
	}
	if err := msapi.RequireKeys(ctx, svc, "property_list"); err != nil {
		return nil, err
	}
	var props []json.RawMessage
	if err := json.Unmarshal(svc["property_list"], &props); err != nil {
		return nil, msapi.Formatf(ctx, "property_list is not a list")
	}
	if index >= len(props) {
		return nil, msapi.Formatf(ctx, "expected at least %d properties, got %d", index+1, len(props))
	}
	var prop rawObject
	if err := json.Unmarshal(props[index], &prop); err != nil {
		return nil, msapi.Formatf(ctx, "property %d is not an object", index)
	}
	return prop, nil
}

func decodeIdentity(prop rawObject, wl *model.DeployedWorkload) error {
	const ctx = decodeContext + " identity"
	if err := msapi.RequireKeys(ctx, prop, "value"); err != nil {
		return err
	}
	text, err := stringField(ctx, prop, "value")
	if err != nil {
		return err
	}
	var value rawObject
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		return msapi.Formatf(ctx, "value is not a JSON object: %v", err)
	}
	if err := msapi.RequireKeys(ctx, value, "workloadId", "versionId", "workloadVersionName"); err != nil {
		return err
	}
	if wl.ID, err = stringField(ctx, value, "workloadId"); err != nil {
		return err
	}
	if wl.VersionID, err = stringField(ctx, value, "versionId"); err != nil {
		return err
	}
	wl.VersionName, err = stringField(ctx, value, "workloadVersionName")
	return err
}

func decodeState(prop rawObject) (string, error) {
	const ctx = decodeContext + " state"
	if err := msapi.RequireKeys(ctx, prop, "name", "options", "value"); err != nil {
		return "", err
	}
	name, err := stringField(ctx, prop, "name")
	if err != nil {
		return "", err
	}
	if name != stateName {
		return "", msapi.Actionf("decode deployed workload",
			"expected name:%s in response to getting deployed workloads, got %q", stateName, name)
	}
	var options []string
	if err := json.Unmarshal(prop["options"], &options); err != nil {
		return "", msapi.Formatf(ctx, "options is not a list of strings")
	}
	var index int
	if err := json.Unmarshal(prop["value"], &index); err != nil {
		return "", msapi.Formatf(ctx, "value is not an integer")
	}
	if index < 0 || index >= len(options) {
		return "", msapi.Formatf(ctx, "value %d out of range for %d options", index, len(options))
	}
	return options[index], nil
}

// stringField reads m[key] as a string; JSON null reads as "".
func stringField(ctx string, m rawObject, key string) (string, error) {
	var s *string
	if err := json.Unmarshal(m[key], &s); err != nil {
		return "", msapi.Formatf(ctx, "%s is not a string", key)
	}
	if s == nil {
		return "", nil
	}
	return *s, nil
}

// FetchDeployedWorkloads lists the workloads deployed on the node with the
// given serial number.
func FetchDeployedWorkloads(ctx context.Context, c *msapi.Client, serial string) ([]model.DeployedWorkload, error) {
	path := "/nerve/workload/node/" + url.PathEscape(serial) + "/devices"
	resp, err := c.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var records []json.RawMessage
	if err := resp.Decode("deployed workloads of "+serial, &records); err != nil {
		return nil, err
	}
	out := make([]model.DeployedWorkload, 0, len(records))
	for _, raw := range records {
		wl, err := DecodeDeployedWorkload(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, wl)
	}
	return out, nil
}
