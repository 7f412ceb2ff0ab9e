package workloads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

// dockerFileOptionPath marks a version pulled from a registry path.
const dockerFileOptionPath = "path"

// Creator adds workload definitions to the management system.
type Creator struct {
	client  *msapi.Client
	tracker *DownloadTracker
	logger  *zap.Logger
}

// NewCreator returns a Creator. A nil tracker disables waiting for
// downloads even in sequential mode.
func NewCreator(c *msapi.Client, tracker *DownloadTracker, logger *zap.Logger) *Creator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Creator{client: c, tracker: tracker, logger: logger}
}

// Create creates the workload named in def unless it exists, then adds every
// version of def to it. With sequential set each version download is
// awaited before the next version is added. It returns the workload id.
func (cr *Creator) Create(ctx context.Context, def model.WorkloadDefinition, sequential bool) (string, error) {
	if err := def.Validate(); err != nil {
		return "", fmt.Errorf("invalid workload definition: %w", err)
	}
	if def.Type != model.WorkloadTypeDocker {
		return "", msapi.Actionf("create workload", "Only Docker type is supported right now.")
	}

	existing, found, err := GetByName(ctx, cr.client, def.Name)
	if err != nil {
		return "", err
	}
	var id string
	if found {
		cr.logger.Info("workload already exists, skipped creation", zap.String("name", def.Name))
		id = existing.ID
	} else {
		if id, err = cr.createWithoutVersions(ctx, def); err != nil {
			return "", err
		}
		cr.logger.Info("workload created", zap.String("name", def.Name), zap.String("id", id))
	}

	for _, v := range def.Versions {
		cr.logger.Info("adding workload version", zap.String("workload", def.Name), zap.String("version", v.Name))
		if err := cr.AddVersion(ctx, id, v); err != nil {
			return id, err
		}
		if sequential && cr.tracker != nil {
			if _, err := cr.tracker.Wait(ctx, id); err != nil {
				return id, err
			}
		}
	}
	return id, nil
}

func (cr *Creator) createWithoutVersions(ctx context.Context, def model.WorkloadDefinition) (string, error) {
	def.Versions = []model.DockerVersionDefinition{}
	resp, err := cr.client.Multipart(ctx, http.MethodPost, listPath, def,
		msapi.EmptyFile("file1"), msapi.EmptyFile("file2"))
	if err != nil {
		return "", fmt.Errorf("creation of workload %s failed: %w", def.Name, err)
	}
	var created map[string]json.RawMessage
	if err := resp.Decode("created workload", &created); err != nil {
		return "", err
	}
	if err := msapi.RequireKeys("created workload", created, "_id"); err != nil {
		return "", err
	}
	var id string
	if err := json.Unmarshal(created["_id"], &id); err != nil {
		return "", msapi.Formatf("created workload", "_id is not a string")
	}
	return id, nil
}

// AddVersion sends the current workload record back with its versions
// replaced by v, which makes the management system add v and start pulling
// it.
func (cr *Creator) AddVersion(ctx context.Context, id string, v model.DockerVersionDefinition) error {
	rec, err := getRecord(ctx, cr.client, id)
	if err != nil {
		if IsNotFound(err) {
			return msapi.Actionf("add workload version", "Workload %s not found. Cannot add version.", id)
		}
		return err
	}
	var typ string
	if err := json.Unmarshal(rec["type"], &typ); err != nil || typ != model.WorkloadTypeDocker {
		return msapi.Actionf("add workload version", "Only Docker type is supported right now.")
	}

	payload, err := newVersionPayload(v)
	if err != nil {
		return err
	}
	versions, err := json.Marshal([]versionPayload{payload})
	if err != nil {
		return err
	}
	rec["versions"] = versions

	if _, err := cr.client.Multipart(ctx, http.MethodPatch, listPath, rec, msapi.EmptyFile("file1")); err != nil {
		return fmt.Errorf("creation of workload version %s failed: %w", v.Name, err)
	}
	return nil
}

// versionPayload is a docker version as the v2 workload API expects it.
type versionPayload struct {
	Name                         string                   `json:"name"`
	ReleaseName                  string                   `json:"releaseName"`
	Selectors                    []model.Selector         `json:"selectors"`
	Released                     bool                     `json:"released"`
	WorkloadProperties           model.DockerProperties   `json:"workloadProperties"`
	RestartOnConfigurationUpdate bool                     `json:"restartOnConfigurationUpdate"`
	RemoteConnections            []model.RemoteConnection `json:"remoteConnections"`
	DockerFileOption             string                   `json:"dockerFileOption"`
	DockerFilePath               string                   `json:"dockerFilePath"`
	AuthCredentials              *model.AuthCredentials   `json:"auth_credentials,omitempty"`
	Files                        []string                 `json:"files"`
}

func newVersionPayload(v model.DockerVersionDefinition) (versionPayload, error) {
	if v.Source.IsUpload() {
		return versionPayload{}, msapi.Actionf("add workload version", "Uploading file not yet supported.")
	}
	p := versionPayload{
		Name:                         v.Name,
		ReleaseName:                  v.Name,
		Selectors:                    v.Selectors,
		Released:                     v.Released,
		WorkloadProperties:           v.WorkloadProperties,
		RestartOnConfigurationUpdate: v.RestartOnConfigurationUpdate,
		RemoteConnections:            v.RemoteConnections,
		DockerFileOption:             dockerFileOptionPath,
		DockerFilePath:               v.Source.Path,
		AuthCredentials:              v.Source.AuthCredentials,
		Files:                        []string{},
	}
	if p.Selectors == nil {
		p.Selectors = []model.Selector{}
	}
	if p.RemoteConnections == nil {
		p.RemoteConnections = []model.RemoteConnection{}
	}
	return p, nil
}
