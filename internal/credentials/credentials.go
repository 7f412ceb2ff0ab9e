// Package credentials resolves the management system URL, username and
// password used by set-login, and stores them for later logins.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/ini.v1"
)

const section = "Credentials"

var (
	ErrInvalidURL      = errors.New("Invalid URL provided.")
	ErrInvalidUsername = errors.New("Invalid username provided. Nerve usernames are email addresses.")
)

type Source string

const (
	SourceNone   Source = ""
	SourceFlag   Source = "command-line arguments"
	SourceEnv    Source = "environment variable"
	SourceFile   Source = "file"
	SourcePrompt Source = "prompt"
)

type Credentials struct {
	URL      string `validate:"required,url"`
	Username string `validate:"required,email"`
	Password string
}

var validate = validator.New()

// Validate checks that URL is a URL and Username an e-mail address.
func (c Credentials) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	if verrs[0].Field() == "URL" {
		return ErrInvalidURL
	}
	return ErrInvalidUsername
}

// NormalizeURL strips trailing slashes and adds https:// when no scheme is
// given.
func NormalizeURL(raw string) string {
	u := strings.TrimRight(strings.TrimSpace(raw), "/")
	if u != "" && !strings.HasPrefix(u, "http") {
		u = "https://" + u
	}
	return u
}

// Load reads the [Credentials] section of an INI file. A missing file or
// section yields empty credentials.
func Load(path string) (Credentials, error) {
	cfg, err := ini.LooseLoad(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials file %s: %w", path, err)
	}
	if !cfg.HasSection(section) {
		return Credentials{}, nil
	}
	sec := cfg.Section(section)
	return Credentials{
		URL:      sec.Key("url").String(),
		Username: sec.Key("username").String(),
		Password: sec.Key("password").String(),
	}, nil
}

// Save writes the non-empty fields of c to path, replacing the file.
func Save(path string, c Credentials) error {
	cfg := ini.Empty()
	sec, err := cfg.NewSection(section)
	if err != nil {
		return err
	}
	for key, val := range map[string]string{"url": c.URL, "username": c.Username, "password": c.Password} {
		if val != "" {
			sec.Key(key).SetValue(val)
		}
	}
	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("failed to write credentials file %s: %w", path, err)
	}
	return os.Chmod(path, 0o600)
}
