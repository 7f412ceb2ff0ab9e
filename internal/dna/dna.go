// Package dna reads and deploys node DNA files, the YAML description of the
// workloads and configuration a node should run.
package dna

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"
	"go.uber.org/zap"

	"github.com/balaji-balu/nerve-cli/internal/msapi"
	"github.com/balaji-balu/nerve-cli/internal/nodes"
	"github.com/balaji-balu/nerve-cli/pkg/model"
)

// UploadFileName is the file name the DNA is sent under.
const UploadFileName = "file-from-pipeline.yaml"

// Document is a DNA file. Key order is kept as read.
type Document struct {
	root yaml.MapSlice
}

func Parse(data []byte) (*Document, error) {
	var root yaml.MapSlice
	if err := yaml.UnmarshalWithOptions(data, &root, yaml.UseOrderedMap()); err != nil {
		return nil, fmt.Errorf("parse DNA: %w", err)
	}
	return &Document{root: root}, nil
}

func (d *Document) Marshal() ([]byte, error) {
	return yaml.Marshal(d.root)
}

// Workloads returns the entries of the top level workloads list.
func (d *Document) Workloads() []yaml.MapSlice {
	var out []yaml.MapSlice
	for _, item := range d.root {
		if item.Key != "workloads" {
			continue
		}
		list, _ := item.Value.([]any)
		for _, wl := range list {
			if m, ok := wl.(yaml.MapSlice); ok {
				out = append(out, m)
			}
		}
	}
	return out
}

// StripHashes removes the hash key from every workload entry and returns
// how many were removed.
func (d *Document) StripHashes() int {
	removed := 0
	for i, item := range d.root {
		if item.Key != "workloads" {
			continue
		}
		list, _ := item.Value.([]any)
		for j, wl := range list {
			m, ok := wl.(yaml.MapSlice)
			if !ok {
				continue
			}
			kept := make(yaml.MapSlice, 0, len(m))
			for _, kv := range m {
				if kv.Key == "hash" {
					removed++
					continue
				}
				kept = append(kept, kv)
			}
			list[j] = kept
		}
		d.root[i].Value = list
	}
	return removed
}

// Current downloads the DNA the node with the given serial number runs. The
// management system sends it as the first entry of a zip archive.
func Current(ctx context.Context, c *msapi.Client, serial string) (*Document, error) {
	resp, err := c.Get(ctx, "/nerve/dna/"+url.PathEscape(serial)+"/current")
	if err != nil {
		return nil, fmt.Errorf("retrieving deployed DNA file failed: %w", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(resp.Body), int64(len(resp.Body)))
	if err != nil {
		return nil, msapi.Formatf("DNA of "+serial, "response is not a zip archive: %v", err)
	}
	if len(zr.File) == 0 {
		return nil, msapi.Formatf("DNA of "+serial, "zip archive is empty")
	}
	f, err := zr.File[0].Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// PushTarget uploads doc as the target DNA of the node. The node keeps
// applying it across restarts; restartAll restarts every workload.
func PushTarget(ctx context.Context, c *msapi.Client, serial string, doc *Document, restartAll bool) error {
	body, err := doc.Marshal()
	if err != nil {
		return err
	}
	q := url.Values{}
	q.Set("continueInCaseOfRestart", "true")
	q.Set("restartAllWorkloads", strconv.FormatBool(restartAll))
	path := "/nerve/dna/" + url.PathEscape(serial) + "/target?" + q.Encode()

	resp, err := c.Multipart(ctx, http.MethodPut, path, nil, msapi.FilePart{
		Field:       "file",
		FileName:    UploadFileName,
		ContentType: "application/x-yaml",
		Content:     body,
	})
	if err != nil {
		return fmt.Errorf("pushing DNA to %s: %w", serial, err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return msapi.Actionf("push DNA", "Error while pushing %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// SelectNode picks the single online node whose name matches nameFilter.
func SelectNode(all []model.Node, nameFilter string, logger *zap.Logger) (model.Node, error) {
	var online []model.Node
	for _, n := range (nodes.NodeFilter{Name: nameFilter}).Apply(all, logger) {
		if n.Online() {
			online = append(online, n)
		}
	}
	switch len(online) {
	case 0:
		return model.Node{}, msapi.Actionf("select node", "No matching online node found.")
	case 1:
		return online[0], nil
	default:
		names := make([]string, 0, len(online))
		for _, n := range online {
			names = append(names, n.Name)
		}
		return model.Node{}, msapi.Actionf("select node",
			"More than one matching online node found, please retry with more restrictive filter: [%s]",
			strings.Join(names, ", "))
	}
}
