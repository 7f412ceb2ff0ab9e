package nodes

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/balaji-balu/nerve-cli/internal/msapi"
)

// Workload control actions accepted by ControlWorkload.
const (
	ActionStart     = "start"
	ActionStop      = "stop"
	ActionRestart   = "restart"
	ActionForceStop = "force_stop"
)

const rebootTimeoutMillis = 10000

// Reboot asks the node with the given serial number to restart.
func Reboot(ctx context.Context, c *msapi.Client, serial string) error {
	path := "/nerve/node/" + url.PathEscape(serial) + "/reboot"
	if _, err := c.Do(ctx, http.MethodPost, path, map[string]int{"timeout": rebootTimeoutMillis}); err != nil {
		return fmt.Errorf("reboot node %s: %w", serial, err)
	}
	return nil
}

type controlRequest struct {
	Command      string `json:"command"`
	DeviceID     string `json:"deviceId"`
	ForceStop    bool   `json:"forceStop"`
	SerialNumber string `json:"serialNumber"`
	Timeout      int    `json:"timeout"`
	SessionToken string `json:"sessionToken"`
}

// ControlWorkload starts, stops or restarts the workload deviceID on the
// node serial. force_stop is sent as STOP with forceStop set.
func ControlWorkload(ctx context.Context, c *msapi.Client, action, serial, deviceID string) error {
	req := controlRequest{DeviceID: deviceID, SerialNumber: serial}
	switch action {
	case ActionStart, ActionStop, ActionRestart:
		req.Command = strings.ToUpper(action)
	case ActionForceStop:
		req.Command = "STOP"
		req.ForceStop = true
	default:
		return fmt.Errorf("action must be %q, %q, %q or %q, got %q",
			ActionStart, ActionStop, ActionForceStop, ActionRestart, action)
	}
	// The controller endpoint authenticates from the body, not the header.
	req.SessionToken = c.Session().ID

	if _, err := c.Do(ctx, http.MethodPost, "/nerve/workload/controller", req); err != nil {
		return fmt.Errorf("%s workload %s on node %s: %w", req.Command, deviceID, serial, err)
	}
	return nil
}
