package labels

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

// Dictionary maps a label id to its key and value. It is fetched once per
// command and only read afterwards.
type Dictionary map[string]model.Label

// Resolve turns label ids into labels. Ids missing from the dictionary are
// skipped. A nil dictionary resolves to an empty list.
func (d Dictionary) Resolve(ids []string, logger *zap.Logger) []model.Label {
	out := make([]model.Label, 0, len(ids))
	if d == nil {
		return out
	}
	for _, id := range ids {
		l, ok := d[id]
		if !ok {
			if logger != nil {
				logger.Debug("label id not in dictionary", zap.String("label_id", id))
			}
			continue
		}
		out = append(out, l)
	}
	return out
}

// Record is a label as stored on the management system.
type Record struct {
	ID    string `json:"_id"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (r Record) Label() model.Label {
	return model.Label{Key: r.Key, Value: r.Value}
}

// List returns every label of the management system sorted by key and value.
func List(ctx context.Context, c *msapi.Client) ([]Record, error) {
	const path = "/nerve/labels/list"
	var body map[string]json.RawMessage
	if err := c.GetJSON(ctx, path, &body); err != nil {
		return nil, err
	}
	if err := msapi.RequireKeys("label list", body, "count", "data"); err != nil {
		return nil, err
	}
	var raw []map[string]json.RawMessage
	if err := json.Unmarshal(body["data"], &raw); err != nil {
		return nil, msapi.Formatf("label list", "data is not a list of objects")
	}

	records := make([]Record, 0, len(raw))
	for i, item := range raw {
		if err := msapi.RequireKeys(fmt.Sprintf("label %d", i), item, "_id", "key", "value"); err != nil {
			return nil, err
		}
		var r Record
		for field, dst := range map[string]*string{"_id": &r.ID, "key": &r.Key, "value": &r.Value} {
			if err := json.Unmarshal(item[field], dst); err != nil {
				return nil, msapi.Formatf(fmt.Sprintf("label %d", i), "%s is not a string", field)
			}
		}
		records = append(records, r)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Key != records[j].Key {
			return records[i].Key < records[j].Key
		}
		return records[i].Value < records[j].Value
	})
	return records, nil
}

// Fetch builds the label dictionary.
func Fetch(ctx context.Context, c *msapi.Client) (Dictionary, error) {
	records, err := List(ctx, c)
	if err != nil {
		return nil, err
	}
	d := make(Dictionary, len(records))
	for _, r := range records {
		d[r.ID] = r.Label()
	}
	return d, nil
}

type createRequest struct {
	ID          string `json:"_id"`
	Key         string `json:"key"`
	Value       string `json:"value"`
	CreatedAt   string `json:"createdAt"`
	Transformed string `json:"transformed"`
}

func Create(ctx context.Context, c *msapi.Client, key, value string) error {
	if key == "" {
		return &msapi.ActionError{Op: "create label", Msg: "key must not be empty"}
	}
	_, err := c.Do(ctx, http.MethodPost, "/nerve/labels", createRequest{Key: key, Value: value})
	return err
}

func Delete(ctx context.Context, c *msapi.Client, id string) error {
	_, err := c.Do(ctx, http.MethodDelete, "/nerve/labels/"+url.PathEscape(id), nil)
	return err
}

// Find returns the record with the given key and value.
func Find(records []Record, key, value string) (Record, bool) {
	for _, r := range records {
		if r.Key == key && r.Value == value {
			return r, true
		}
	}
	return Record{}, false
}
