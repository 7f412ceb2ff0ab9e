package workloads

import (
	"context"

	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

// FetchForTemplate reads the workload named by ref from the management
// system and keeps only the versions listed in ref.
func FetchForTemplate(ctx context.Context, c *msapi.Client, ref model.Workload) (*model.Workload, error) {
	var missing []string
	if ref.ID == "" {
		missing = append(missing, "_id")
	}
	if ref.Versions == nil {
		missing = append(missing, "versions")
	}
	if missing != nil {
		return nil, &msapi.FormatError{Context: "workload list entry", Missing: missing}
	}

	wl, err := GetByID(ctx, c, ref.ID)
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(ref.Versions))
	for _, v := range ref.Versions {
		wanted[v.ID] = true
	}
	kept := make([]model.WorkloadVersion, 0, len(wl.Versions))
	for _, v := range wl.Versions {
		if wanted[v.ID] {
			kept = append(kept, v)
		}
	}
	wl.Versions = kept
	return wl, nil
}

// TemplateFromWorkload turns a docker workload into a definition that
// Creator.Create accepts. Only registry path sources and TUNNEL remote
// connections can be expressed; selectors are dropped.
func TemplateFromWorkload(wl model.Workload, logger *zap.Logger) (model.WorkloadDefinition, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := model.WorkloadDefinition{
		Type:        wl.Type,
		Name:        wl.Name,
		Description: wl.Description,
		Versions:    make([]model.DockerVersionDefinition, 0, len(wl.Versions)),
	}
	if wl.Type != model.WorkloadTypeDocker {
		return def, msapi.Actionf("create template", "Workload type %s is not yet supported.", wl.Type)
	}

	for _, v := range wl.Versions {
		if v.DockerFileOption != dockerFileOptionPath {
			return def, msapi.Formatf("workload version "+v.Name,
				"Docker Option %s is not yet supported.", v.DockerFileOption)
		}
		rcs := make([]model.RemoteConnection, 0, len(v.RemoteConnections))
		for _, rc := range v.RemoteConnections {
			if rc.Type != model.RemoteConnectionTunnel {
				return def, msapi.Formatf("workload version "+v.Name,
					"Remote Connection type %s not supported yet.", rc.Type)
			}
			rcs = append(rcs, rc)
		}
		if len(v.Selectors) > 0 {
			logger.Warn("Selectors are not supported yet. Omitting.", zap.String("version", v.Name))
		}

		def.Versions = append(def.Versions, model.DockerVersionDefinition{
			Name:                         v.Name,
			Selectors:                    []model.Selector{},
			Released:                     v.Released,
			WorkloadProperties:           v.WorkloadProperties,
			RestartOnConfigurationUpdate: v.RestartOnConfigurationUpdate,
			RemoteConnections:            rcs,
			Source: model.VersionSource{
				Path:            v.DockerFilePath,
				AuthCredentials: v.AuthCredentials,
			},
		})
	}
	return def, nil
}
