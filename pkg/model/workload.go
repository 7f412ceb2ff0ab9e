package model

// Workload is a centrally defined deployable unit as returned by the
// management system's v2 workload API.
type Workload struct {
	ID          string            `json:"_id"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Description string            `json:"description,omitempty"`
	Disabled    bool              `json:"disabled"`
	Versions    []WorkloadVersion `json:"versions,omitempty"`
}

type WorkloadVersion struct {
	ID                           string             `json:"_id"`
	Name                         string             `json:"name"`
	ReleaseName                  string             `json:"releaseName,omitempty"`
	Released                     bool               `json:"released"`
	IsDownloading                bool               `json:"isDownloading,omitempty"`
	Selectors                    []Selector         `json:"selectors,omitempty"`
	RestartOnConfigurationUpdate bool               `json:"restartOnConfigurationUpdate"`
	RemoteConnections            []RemoteConnection `json:"remoteConnections,omitempty"`
	DockerFileOption             string             `json:"dockerFileOption,omitempty"`
	DockerFilePath               string             `json:"dockerFilePath,omitempty"`
	AuthCredentials              *AuthCredentials   `json:"auth_credentials,omitempty"`
	WorkloadProperties           DockerProperties   `json:"workloadProperties"`
}

type Selector struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type RemoteConnection struct {
	Acknowledgment string `json:"acknowledgment"`
	Hostname       string `json:"hostname"`
	LocalPort      int    `json:"localPort"`
	Name           string `json:"name"`
	Port           int    `json:"port"`
	Type           string `json:"type"`
}

type AuthCredentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type DockerProperties struct {
	EnvironmentVariables []EnvironmentVariable `json:"environment_variables"`
	LimitMemory          *LimitMemory          `json:"limit_memory,omitempty"`
	ContainerName        string                `json:"container_name"`
	LimitCPUs            *float64              `json:"limit_CPUs,omitempty"`
	RestartPolicy        string                `json:"restart_policy"`
	DockerVolumes        []Volume              `json:"docker_volumes"`
	Networks             []string              `json:"networks"`
	PortMappingsProtocol []PortMapping         `json:"port_mappings_protocol"`
}

type EnvironmentVariable struct {
	EnvVariable    string `json:"env_variable"`
	ContainerValue string `json:"container_value"`
}

// LimitMemory unit is one of "GB" or "MB".
type LimitMemory struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

type Volume struct {
	VolumeName           string `json:"volumeName"`
	ContainerPath        string `json:"containerPath"`
	ConfigurationStorage bool   `json:"configurationStorage"`
}

type PortMapping struct {
	ContainerPort int    `json:"container_port"`
	HostPort      int    `json:"host_port"`
	Protocol      string `json:"protocol"`
}
