package model

import (
	"github.com/go-playground/validator/v10"
)

const WorkloadTypeDocker = "docker"

const RemoteConnectionTunnel = "TUNNEL"

var definitionValidate = validator.New()

// WorkloadDefinition is the template format used to create workloads.
type WorkloadDefinition struct {
	Type        string                    `json:"type" validate:"required"`
	Name        string                    `json:"name" validate:"required"`
	Description string                    `json:"description"`
	Versions    []DockerVersionDefinition `json:"versions" validate:"dive"`
}

// Validate checks the fields a definition needs before anything is sent to
// the management system.
func (d WorkloadDefinition) Validate() error {
	return definitionValidate.Struct(d)
}

type DockerVersionDefinition struct {
	Name                         string             `json:"name" validate:"required"`
	Selectors                    []Selector         `json:"selectors"`
	Released                     bool               `json:"released"`
	WorkloadProperties           DockerProperties   `json:"workloadProperties"`
	RestartOnConfigurationUpdate bool               `json:"restartOnConfigurationUpdate"`
	RemoteConnections            []RemoteConnection `json:"remoteConnections" validate:"dive"`
	Source                       VersionSource      `json:"source"`
}

// VersionSource is either a docker registry path or an uploaded file.
type VersionSource struct {
	Path            string           `json:"path,omitempty" validate:"required_without=FileName"`
	AuthCredentials *AuthCredentials `json:"auth_credentials,omitempty"`
	FileName        string           `json:"file_name,omitempty"`
}

func (s VersionSource) IsUpload() bool {
	return s.FileName != ""
}
