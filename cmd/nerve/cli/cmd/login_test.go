package cmd

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balaji-balu/nerve-cli/internal/credentials"
	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/internal/mstest"
)

func (e *testEnv) session() msapi.Session {
	e.t.Helper()
	sess, err := msapi.NewSessionStore(e.path("session_id.ini")).Load()
	require.NoError(e.t, err)
	return sess
}

func TestSetLoginFromFlags(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, msapi.NewSessionStore(e.path("session_id.ini")).Clear())

	out, err := e.run("", "set-login",
		"--url", e.srv.URL+"/",
		"--username", mstest.DefaultIdentity,
		"--password", mstest.DefaultSecret,
	)
	require.NoError(t, err)
	assert.Contains(t, out, "URL found in command-line arguments: "+e.srv.URL)
	assert.Contains(t, out, "Username found in command-line arguments: "+mstest.DefaultIdentity)
	assert.Contains(t, out, "Password found in command-line arguments.")
	assert.Contains(t, out, "Login successful.")
	assert.Contains(t, out, "Set login to "+e.srv.URL+" with version 2.8.0 as "+mstest.DefaultIdentity+".")
	assert.NotContains(t, out, "Do you want to save")

	sess := e.session()
	assert.Equal(t, mstest.DefaultSessionID, sess.ID)
	assert.Equal(t, e.srv.URL, sess.BaseURL)

	saved, err := credentials.Load(e.path("credentials.ini"))
	require.NoError(t, err)
	assert.Empty(t, saved.Password, "nothing was typed in, nothing is saved")
}

func TestSetLoginPromptsAndSaves(t *testing.T) {
	e := newTestEnv(t)
	e.srv.Version = "2.9.1"
	t.Setenv("NERVE_USERNAME", mstest.DefaultIdentity)

	stdin := e.srv.URL + "\n" + mstest.DefaultSecret + "\ny\n"
	out, err := e.run(stdin, "set-login")
	require.NoError(t, err)
	assert.Contains(t, out, "Enter the Nerve management system URL: ")
	assert.Contains(t, out, "Username found in environment variable: "+mstest.DefaultIdentity)
	assert.Contains(t, out, "Enter your password: ")
	assert.Contains(t, out, "Do you want to save the credentials in")
	assert.Contains(t, out, "Warning: This tool was tested with version 2.8.0")
	assert.Contains(t, out, "Your management system is running version 2.9.1.")

	saved, err := credentials.Load(e.path("credentials.ini"))
	require.NoError(t, err)
	assert.Equal(t, e.srv.URL, saved.URL)
	assert.Equal(t, mstest.DefaultIdentity, saved.Username)
	assert.Equal(t, mstest.DefaultSecret, saved.Password)

	// everything now comes from the file
	out, err = e.run("", "set-login")
	require.NoError(t, err)
	assert.Contains(t, out, "Password found in file.")
	assert.NotContains(t, out, "Enter")
}

func TestSetLoginFailures(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.run("", "set-login", "-u", e.srv.URL, "--username", "not-an-email", "--password", "x")
	assert.ErrorIs(t, err, credentials.ErrInvalidUsername)

	_, err = e.run("", "set-login", "-u", e.srv.URL, "--username", mstest.DefaultIdentity, "--password", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")

	var aerr *msapi.ActionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "Invalid credentials provided.", aerr.Msg)

	assert.Equal(t, mstest.DefaultSessionID, e.session().ID, "a failed login keeps the previous session")
}

func TestLogout(t *testing.T) {
	e := newTestEnv(t)

	out, err := e.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out.")
	assert.Len(t, e.srv.Calls(http.MethodPost, "/auth/logout"), 1)
	assert.False(t, e.session().Valid())

	_, err = e.run("", "get-labels")
	assert.ErrorIs(t, err, msapi.ErrNotLoggedIn)
}
