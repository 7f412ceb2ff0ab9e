// Package workloads manages the workload catalogue of the management
// system: listing, filtering, creating from definitions, templating and
// deletion.
package workloads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/match"
	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

const listPath = "/nerve/v2/workloads"

type listResponse struct {
	Count int              `json:"count"`
	Data  []model.Workload `json:"data"`
}

// List returns every workload. The first call only learns the total so the
// second can ask for all of them in one page.
func List(ctx context.Context, c *msapi.Client) ([]model.Workload, error) {
	var first listResponse
	if err := c.GetJSON(ctx, listPath, &first); err != nil {
		return nil, err
	}
	var all listResponse
	if err := c.GetJSON(ctx, listPath+"?limit="+strconv.Itoa(first.Count), &all); err != nil {
		return nil, err
	}
	if all.Data == nil {
		all.Data = []model.Workload{}
	}
	return all.Data, nil
}

func GetByID(ctx context.Context, c *msapi.Client, id string) (*model.Workload, error) {
	var wl model.Workload
	if err := c.GetJSON(ctx, listPath+"/"+url.PathEscape(id), &wl); err != nil {
		return nil, err
	}
	return &wl, nil
}

// GetByName looks the workload up by exact name. More than one match is an
// ActionError; no match returns false.
func GetByName(ctx context.Context, c *msapi.Client, name string) (*model.Workload, bool, error) {
	filter, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return nil, false, err
	}
	var body map[string]json.RawMessage
	if err := c.GetJSON(ctx, listPath+"?filterBy="+url.QueryEscape(string(filter)), &body); err != nil {
		return nil, false, err
	}
	if err := msapi.RequireKeys("workload list", body, "data"); err != nil {
		return nil, false, err
	}
	var data []model.Workload
	if err := json.Unmarshal(body["data"], &data); err != nil {
		return nil, false, msapi.Formatf("workload list", "data is not a list of workloads: %v", err)
	}

	var found []model.Workload
	for _, wl := range data {
		if wl.Name == name {
			found = append(found, wl)
		}
	}
	switch len(found) {
	case 0:
		return nil, false, nil
	case 1:
		return &found[0], true, nil
	default:
		return nil, false, msapi.Actionf("get workload",
			"Multiple workloads found with name %s. Cannot proceed, please use id instead.", name)
	}
}

// getRecord fetches the workload as an untyped record so that it can be sent
// back with every field the server returned.
func getRecord(ctx context.Context, c *msapi.Client, id string) (map[string]json.RawMessage, error) {
	var rec map[string]json.RawMessage
	if err := c.GetJSON(ctx, listPath+"/"+url.PathEscape(id), &rec); err != nil {
		return nil, err
	}
	if err := msapi.RequireKeys("workload "+id, rec, "_id", "type"); err != nil {
		return nil, err
	}
	return rec, nil
}

func Delete(ctx context.Context, c *msapi.Client, id string) error {
	if _, err := c.Do(ctx, http.MethodDelete, "/nerve/workload/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("delete workload %s: %w", id, err)
	}
	return nil
}

// IsNotFound reports whether err is a 404 from the management system.
func IsNotFound(err error) bool {
	var rerr *msapi.RequestError
	return errors.As(err, &rerr) && rerr.Status == http.StatusNotFound
}

// Filter selects workloads. Name, ID, VersionName and VersionID are
// patterns; Type must match exactly. Disabled workloads are dropped unless
// ShowDisabled is set.
type Filter struct {
	Name         string
	ID           string
	Type         string
	ShowDisabled bool
	VersionName  string
	VersionID    string
}

func (f Filter) filtersVersions() bool {
	return f.VersionName != "" || f.VersionID != ""
}

// Select applies the workload level criteria only.
func (f Filter) Select(wls []model.Workload, logger *zap.Logger) []model.Workload {
	name := match.Compile(f.Name, logger)
	id := match.Compile(f.ID, logger)

	out := make([]model.Workload, 0, len(wls))
	for _, wl := range wls {
		if !name.Match(wl.Name) || !id.Match(wl.ID) {
			continue
		}
		if f.Type != "" && f.Type != wl.Type {
			continue
		}
		if wl.Disabled && !f.ShowDisabled {
			continue
		}
		out = append(out, wl)
	}
	return out
}

// PruneVersions keeps only the versions matching the version criteria and
// drops workloads left without any. Without version criteria wls is
// returned as is.
func (f Filter) PruneVersions(wls []model.Workload, logger *zap.Logger) []model.Workload {
	if !f.filtersVersions() {
		return wls
	}
	name := match.Compile(f.VersionName, logger)
	id := match.Compile(f.VersionID, logger)

	out := make([]model.Workload, 0, len(wls))
	for _, wl := range wls {
		var kept []model.WorkloadVersion
		for _, v := range wl.Versions {
			if name.Match(v.Name) && id.Match(v.ID) {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			continue
		}
		wl.Versions = kept
		out = append(out, wl)
	}
	return out
}

// Apply runs Select and PruneVersions.
func (f Filter) Apply(wls []model.Workload, logger *zap.Logger) []model.Workload {
	return f.PruneVersions(f.Select(wls, logger), logger)
}

// detailedTypes are the workload types whose full record can be fetched.
var detailedTypes = map[string]bool{"docker": true, "codesys": true, "vm": true}

// QueryResult is the outcome of Query with the counts of every stage.
type QueryResult struct {
	Total     int
	Selected  int
	Workloads []model.Workload
	// Unsupported is set when some workloads could not be detailed.
	Unsupported bool
}

// Query lists the catalogue, selects by f, replaces every selected entry by
// its full record and finally prunes versions.
func Query(ctx context.Context, c *msapi.Client, f Filter, logger *zap.Logger) (*QueryResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	all, err := List(ctx, c)
	if err != nil {
		return nil, err
	}
	selected := f.Select(all, logger)
	res := &QueryResult{Total: len(all), Selected: len(selected)}

	for i, wl := range selected {
		if !detailedTypes[wl.Type] {
			res.Unsupported = true
			continue
		}
		logger.Debug("fetching workload details", zap.String("name", wl.Name))
		full, err := GetByID(ctx, c, wl.ID)
		if err != nil {
			return nil, err
		}
		selected[i] = *full
	}
	res.Workloads = f.PruneVersions(selected, logger)
	return res, nil
}
