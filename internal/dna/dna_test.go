package dna

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/internal/mstest"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

const sampleDNA = `version: "1.0"
workloads:
- name: web
  hash: 3f2a
  version: "1.2"
- name: plc
  version: "7.1"
  hash: 9c1d
configuration:
  restart: false
`

func TestParseAndStripHashes(t *testing.T) {
	doc, err := Parse([]byte(sampleDNA))
	require.NoError(t, err)
	require.Len(t, doc.Workloads(), 2)

	assert.Equal(t, 2, doc.StripHashes())
	assert.Equal(t, 0, doc.StripHashes())

	out, err := doc.Marshal()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hash")
	assert.Contains(t, string(out), "name: web")

	again, err := Parse(out)
	require.NoError(t, err)
	wls := again.Workloads()
	require.Len(t, wls, 2)
	assert.Equal(t, "plc", wls[1][0].Value)
	assert.Equal(t, "version", wls[1][1].Key)

	_, err = Parse([]byte("workloads: [unclosed"))
	assert.Error(t, err)
}

func newClient(t *testing.T) (*mstest.Server, *msapi.Client) {
	t.Helper()
	srv := mstest.New(t)
	return srv, msapi.NewClient(msapi.Session{ID: srv.SessionID, BaseURL: srv.URL})
}

func TestCurrent(t *testing.T) {
	srv, c := newClient(t)
	srv.DNA["S1"] = []byte(sampleDNA)

	doc, err := Current(context.Background(), c, "S1")
	require.NoError(t, err)
	assert.Len(t, doc.Workloads(), 2)

	_, err = Current(context.Background(), c, "S9")
	var rerr *msapi.RequestError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusNotFound, rerr.Status)

	srv.Fail(http.MethodGet, "/nerve/dna/S2/current", http.StatusOK, "plain text")
	_, err = Current(context.Background(), c, "S2")
	var ferr *msapi.FormatError
	require.ErrorAs(t, err, &ferr)
}

func TestPushTarget(t *testing.T) {
	srv, c := newClient(t)
	doc, err := Parse([]byte(sampleDNA))
	require.NoError(t, err)

	require.NoError(t, PushTarget(context.Background(), c, "S1", doc, true))

	calls := srv.Calls(http.MethodPut, "/nerve/dna/S1/target")
	require.Len(t, calls, 1)
	assert.Equal(t, "continueInCaseOfRestart=true&restartAllWorkloads=true", calls[0].RawQuery)
	order, parts, err := mstest.Parts(calls[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"file"}, order)
	assert.Equal(t, UploadFileName, parts["file"].FileName)

	stored, err := Parse(srv.TargetDNA["S1"])
	require.NoError(t, err)
	assert.Len(t, stored.Workloads(), 2)

	srv.Fail(http.MethodPut, "/nerve/dna/S2/target", http.StatusOK, map[string]any{})
	err = PushTarget(context.Background(), c, "S2", doc, false)
	var aerr *msapi.ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Msg, "Error while pushing 200")
}

func TestSelectNode(t *testing.T) {
	all := []model.Node{
		{Name: "press-1", SerialNumber: "S1", ConnectionStatus: model.ConnectionOnline},
		{Name: "press-2", SerialNumber: "S2", ConnectionStatus: model.ConnectionOffline},
		{Name: "press-3", SerialNumber: "S3", ConnectionStatus: model.ConnectionOnline},
	}

	n, err := SelectNode(all, "press-1", nil)
	require.NoError(t, err)
	assert.Equal(t, "S1", n.SerialNumber)

	var aerr *msapi.ActionError
	_, err = SelectNode(all, "press-2", nil)
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "No matching online node found.", aerr.Msg)

	_, err = SelectNode(all, "regex:press", nil)
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, aerr.Msg, "[press-1, press-3]")
}
