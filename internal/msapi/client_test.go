package msapi

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balaji-balu/nerve-cli/internal/metrics"
	"github.com/balaji-balu/nerve-cli/internal/mstest"
)

func newTestClient(t *testing.T) (*Client, *mstest.Server) {
	t.Helper()
	srv := mstest.New(t)
	return NewClient(Session{ID: srv.SessionID, BaseURL: srv.URL + "/"}), srv
}

func TestDoSendsSessionHeaders(t *testing.T) {
	c, srv := newTestClient(t)

	version, err := c.MSVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.8.0", version)

	calls := srv.Calls(http.MethodGet, "/nerve/update/cloud/current-version")
	require.Len(t, calls, 1)
	h := calls[0].Header
	assert.Equal(t, srv.SessionID, h.Get("sessionId"))
	assert.Equal(t, "empty", h.Get("Sec-Fetch-Dest"))
	assert.Equal(t, "cors", h.Get("Sec-Fetch-Mode"))
	assert.Equal(t, "same-origin", h.Get("Sec-Fetch-Site"))
}

func TestDoWithoutSession(t *testing.T) {
	c := NewClient(Session{})
	_, err := c.Get(context.Background(), "/nerve/labels/list")

	var rerr *RequestError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestDoExpiredSession(t *testing.T) {
	srv := mstest.New(t)
	c := NewClient(Session{ID: "stale", BaseURL: srv.URL})

	_, err := c.Get(context.Background(), "/nerve/labels/list")
	var rerr *RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusUnauthorized, rerr.Status)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestDoServerMessage(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Fail(http.MethodGet, "/nerve/labels/list", http.StatusInternalServerError,
		[]map[string]string{{"message": "database unavailable"}})

	resp, err := c.Get(context.Background(), "/nerve/labels/list")
	var rerr *RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "database unavailable", rerr.Message)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestDoRecordsMetrics(t *testing.T) {
	srv := mstest.New(t)
	rec := metrics.New()
	c := NewClient(Session{ID: srv.SessionID, BaseURL: srv.URL}, WithMetrics(rec), WithTimeout(5*time.Second))

	_, err := c.MSVersion(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "nerve.prom")
	require.NoError(t, rec.WriteFile(path))
}

func TestGetJSONFormatError(t *testing.T) {
	c, srv := newTestClient(t)
	srv.Fail(http.MethodGet, "/nerve/labels/list", http.StatusOK, "not json")

	var out map[string]any
	err := c.GetJSON(context.Background(), "/nerve/labels/list", &out)
	var ferr *FormatError
	assert.ErrorAs(t, err, &ferr)
}

func TestServerMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`[{"message":"first"},{"message":"second"}]`, "first"},
		{`{"message":"object"}`, "object"},
		{`{"error":"x"}`, "No message returned."},
		{`[{"code":1}]`, "No message returned."},
		{`<html>bad gateway</html>`, "Server response: 502"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ServerMessage([]byte(tt.body), 502), tt.body)
	}
}

func TestLogin(t *testing.T) {
	srv := mstest.New(t)
	ctx := context.Background()

	sess, err := Login(ctx, srv.URL+"/", srv.Identity, srv.Secret)
	require.NoError(t, err)
	assert.Equal(t, Session{ID: srv.SessionID, BaseURL: srv.URL}, sess)

	_, err = Login(ctx, srv.URL, srv.Identity, "wrong")
	var aerr *ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Error(), "Invalid credentials provided.")

	_, err = Login(ctx, "ms.example.com", srv.Identity, srv.Secret)
	var rerr *RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "must start with http")
}

func TestLoginConnectionFailure(t *testing.T) {
	_, err := Login(context.Background(), "http://127.0.0.1:1", "a@b.c", "x")
	var rerr *RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "Failed to connect")
}

func TestLogout(t *testing.T) {
	c, srv := newTestClient(t)
	require.NoError(t, c.Logout(context.Background()))
	assert.Len(t, srv.Calls(http.MethodPost, "/auth/logout"), 1)

	err := NewClient(Session{ID: "stale", BaseURL: srv.URL}).Logout(context.Background())
	var aerr *ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Msg, "Maybe you are not logged in")
}

func TestMultipart(t *testing.T) {
	c, srv := newTestClient(t)
	srv.DNA["S1"] = []byte("workloads: []\n")

	_, err := c.Multipart(context.Background(), http.MethodPut,
		"/nerve/dna/S1/target?continueInCaseOfRestart=true&restartAllWorkloads=false",
		map[string]string{"hello": "world"},
		FilePart{Field: "file", FileName: "dna.yaml", ContentType: "application/x-yaml", Content: []byte("a: 1\n")},
		EmptyFile("file1"),
	)
	require.NoError(t, err)

	calls := srv.Calls(http.MethodPut, "/nerve/dna/S1/target")
	require.Len(t, calls, 1)
	order, parts, err := mstest.Parts(calls[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"data", "file", "file1"}, order)
	assert.JSONEq(t, `{"hello":"world"}`, string(parts["data"].Content))
	assert.Equal(t, "application/json", parts["data"].ContentType)
	assert.Equal(t, "dna.yaml", parts["file"].FileName)
	assert.Empty(t, parts["file1"].Content)
	assert.Equal(t, "application/octet-stream", parts["file1"].ContentType)
	assert.Equal(t, []byte("a: 1\n"), srv.TargetDNA["S1"])
}

func TestSessionStore(t *testing.T) {
	store := NewSessionStore(filepath.Join(t.TempDir(), "session_id.ini"))

	sess, err := store.Load()
	require.NoError(t, err)
	assert.False(t, sess.Valid())

	want := Session{ID: "abc", BaseURL: "https://ms.example.com"}
	require.NoError(t, store.Save(want))
	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear())
	got, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, Session{}, got)
}

func TestErrorsUnwrap(t *testing.T) {
	err := error(&RequestError{Method: "GET", Path: "/x", Err: ErrSessionExpired})
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, "GET /x: session does not work anymore, please log in", err.Error())

	ferr := RequireKeys("record", map[string]int{"a": 1}, "a", "b", "c")
	assert.EqualError(t, ferr, "record: missing expected keys: b, c")
	assert.NoError(t, RequireKeys("record", map[string]int{"a": 1}, "a"))
}
