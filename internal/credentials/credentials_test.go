package credentials

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ms.example.com", "https://ms.example.com"},
		{"ms.example.com/", "https://ms.example.com"},
		{"http://ms.local//", "http://ms.local"},
		{"https://ms.example.com", "https://ms.example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeURL(tt.in), tt.in)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Credentials{URL: "https://ms.example.com", Username: "ops@example.com"}.Validate())
	assert.ErrorIs(t, Credentials{URL: "not a url", Username: "ops@example.com"}.Validate(), ErrInvalidURL)
	assert.ErrorIs(t, Credentials{URL: "https://ms.example.com", Username: "ops"}.Validate(), ErrInvalidUsername)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.ini")

	empty, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Credentials{}, empty)

	want := Credentials{URL: "https://ms.example.com", Username: "ops@example.com", Password: "pw"}
	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, Save(path, Credentials{URL: want.URL}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[Credentials]")
	assert.NotContains(t, string(data), "password")
}

func TestResolvePrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.ini")
	require.NoError(t, Save(path, Credentials{
		URL:      "file.example.com",
		Username: "file@example.com",
		Password: "from-file",
	}))

	r := &Resolver{File: path}
	res, err := r.Resolve(
		Credentials{Username: "flag@example.com"},
		Credentials{Username: "env@example.com", Password: "from-env"},
	)
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com", res.URL)
	assert.Equal(t, SourceFile, res.URLFrom)
	assert.Equal(t, "flag@example.com", res.Username)
	assert.Equal(t, SourceFlag, res.UsernameFrom)
	assert.Equal(t, "from-env", res.Password)
	assert.Equal(t, SourceEnv, res.PasswordFrom)
	assert.False(t, res.Prompted())
}

func TestResolvePromptsAndRemembers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.ini")
	var out bytes.Buffer
	in := strings.NewReader("ms.example.com/\nops@example.com\ns3cret\ny\n")
	r := &Resolver{File: path, Prompter: NewReaderPrompter(in, &out)}

	res, err := r.Resolve(Credentials{}, Credentials{})
	require.NoError(t, err)
	assert.Equal(t, "https://ms.example.com", res.URL)
	assert.Equal(t, "s3cret", res.Password)
	assert.True(t, res.Prompted())
	assert.Contains(t, out.String(), "Enter your password: ")

	kept, err := r.Remember(res, false)
	require.NoError(t, err)
	assert.True(t, kept)
	assert.Contains(t, out.String(), "Do you want to save the credentials in "+path+" ? (y/n) ")

	saved, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, res.Credentials, saved)
}

func TestRememberDeclined(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.ini")
	r := &Resolver{File: path, Prompter: NewReaderPrompter(strings.NewReader("n\n"), &bytes.Buffer{})}
	res := Resolved{
		Credentials:  Credentials{URL: "https://ms.example.com", Username: "ops@example.com", Password: "pw"},
		PasswordFrom: SourcePrompt,
	}

	kept, err := r.Remember(res, false)
	require.NoError(t, err)
	assert.False(t, kept)
	saved, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Credentials{URL: "https://ms.example.com"}, saved)

	kept, err = r.Remember(res, true)
	require.NoError(t, err)
	assert.True(t, kept)

	res.PasswordFrom = SourceFlag
	require.NoError(t, os.Remove(path))
	kept, err = r.Remember(res, true)
	require.NoError(t, err)
	assert.False(t, kept)
	assert.NoFileExists(t, path)
}

func TestResolveInvalid(t *testing.T) {
	r := &Resolver{File: filepath.Join(t.TempDir(), "none.ini")}
	_, err := r.Resolve(Credentials{URL: "ms.example.com", Username: "ops", Password: "pw"}, Credentials{})
	assert.ErrorIs(t, err, ErrInvalidUsername)

	_, err = r.Resolve(Credentials{URL: "ms.example.com"}, Credentials{})
	assert.Error(t, err)
}
