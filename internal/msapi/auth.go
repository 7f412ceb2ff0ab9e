package msapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

type loginRequest struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
}

type loginResponse struct {
	User *struct {
		SessionID string `json:"sessionId"`
	} `json:"user"`
}

// Login authenticates against baseURL and returns the new session. It does
// not persist it; see SessionStore.
func Login(ctx context.Context, baseURL, identity, secret string, opts ...Option) (Session, error) {
	baseURL = strings.TrimSuffix(baseURL, "/")
	const path = "/auth/login"

	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return Session{}, &RequestError{
			Method:  http.MethodPost,
			Path:    path,
			Message: "Invalid URL provided. URLs must start with http:// or https://.",
		}
	}

	payload, err := json.Marshal(loginRequest{Identity: identity, Secret: secret})
	if err != nil {
		return Session{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return Session{}, &RequestError{Method: http.MethodPost, Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	c := NewClient(Session{BaseURL: baseURL}, opts...)
	resp, err := c.send(req, path, false)
	if err != nil {
		var rerr *RequestError
		if errors.As(err, &rerr) {
			switch {
			case rerr.Status == http.StatusForbidden:
				return Session{}, &ActionError{Op: "login", Msg: "Invalid credentials provided."}
			case rerr.Status == 0:
				rerr.Message = "Failed to connect to the server. Please check your network connection."
			}
		}
		return Session{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Session{}, &RequestError{
			Method:  http.MethodPost,
			Path:    path,
			Status:  resp.StatusCode,
			Message: ServerMessage(resp.Body, resp.StatusCode),
		}
	}

	var lr loginResponse
	if err := resp.Decode("login", &lr); err != nil {
		return Session{}, err
	}
	if lr.User == nil || lr.User.SessionID == "" {
		return Session{}, &FormatError{Context: "login", Missing: []string{"user.sessionId"}}
	}
	return Session{ID: lr.User.SessionID, BaseURL: baseURL}, nil
}

// Logout ends the session on the management system. The caller clears the
// stored session afterwards.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.Do(ctx, http.MethodPost, "/auth/logout", nil); err != nil {
		return &ActionError{Op: "logout", Msg: "Logout failed. Maybe you are not logged in. (" + err.Error() + ")"}
	}
	return nil
}

// MSVersion returns the version string of the management system.
func (c *Client) MSVersion(ctx context.Context) (string, error) {
	var data map[string]json.RawMessage
	if err := c.GetJSON(ctx, "/nerve/update/cloud/current-version", &data); err != nil {
		return "", err
	}
	if err := RequireKeys("management system version", data, "currentVersion"); err != nil {
		return "", err
	}
	var version string
	if err := json.Unmarshal(data["currentVersion"], &version); err != nil {
		return "", Formatf("management system version", "currentVersion is not a string")
	}
	return version, nil
}
