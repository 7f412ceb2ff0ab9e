package msapi

import (
	"fmt"

	"gopkg.in/ini.v1"
)

const sessionSection = "Session"

// Session is the login state shared between CLI invocations.
type Session struct {
	ID      string
	BaseURL string
}

func (s Session) Valid() bool {
	return s.ID != "" && s.BaseURL != ""
}

// SessionStore persists the session in an INI file:
//
//	[Session]
//	sessionid = ...
//	baseurl   = ...
type SessionStore struct {
	path string
}

func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

func (s *SessionStore) Path() string { return s.path }

// Load returns an empty session when the file does not exist.
func (s *SessionStore) Load() (Session, error) {
	cfg, err := ini.LooseLoad(s.path)
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session file %s: %w", s.path, err)
	}
	if !cfg.HasSection(sessionSection) {
		return Session{}, nil
	}
	sec := cfg.Section(sessionSection)
	return Session{
		ID:      sec.Key("sessionid").String(),
		BaseURL: sec.Key("baseurl").String(),
	}, nil
}

func (s *SessionStore) Save(sess Session) error {
	cfg := ini.Empty()
	sec, err := cfg.NewSection(sessionSection)
	if err != nil {
		return err
	}
	sec.Key("sessionid").SetValue(sess.ID)
	sec.Key("baseurl").SetValue(sess.BaseURL)
	if err := cfg.SaveTo(s.path); err != nil {
		return fmt.Errorf("failed to write session file %s: %w", s.path, err)
	}
	return nil
}

// Clear keeps the file but empties both values.
func (s *SessionStore) Clear() error {
	return s.Save(Session{})
}
