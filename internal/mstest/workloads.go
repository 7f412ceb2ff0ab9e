package mstest

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/balaji-balu/nerve-cli/pkg/model"
)

// Part is one decoded field of a multipart request.
type Part struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Parts decodes the multipart body of a recorded request, in order.
func Parts(r Request) ([]string, map[string]Part, error) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return nil, nil, err
	}
	return readParts(multipart.NewReader(bytes.NewReader(r.Body), params["boundary"]))
}

func readParts(mr *multipart.Reader) ([]string, map[string]Part, error) {
	var order []string
	parts := map[string]Part{}
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return order, parts, nil
		}
		if err != nil {
			return nil, nil, err
		}
		content, err := io.ReadAll(p)
		if err != nil {
			return nil, nil, err
		}
		order = append(order, p.FormName())
		parts[p.FormName()] = Part{
			FileName:    p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
			Content:     content,
		}
	}
}

func requestParts(c *gin.Context) (map[string]Part, error) {
	mr, err := c.Request.MultipartReader()
	if err != nil {
		return nil, err
	}
	_, parts, err := readParts(mr)
	return parts, err
}

func (s *Server) findWorkload(id string) (int, *model.Workload) {
	for i, wl := range s.Workloads {
		if wl.ID == id {
			return i, wl
		}
	}
	return -1, nil
}

func (s *Server) listWorkloads(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matching := make([]*model.Workload, 0, len(s.Workloads))
	nameFilter := ""
	if raw := c.Query("filterBy"); raw != "" {
		var f struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid filterBy"})
			return
		}
		nameFilter = f.Name
	}
	for _, wl := range s.Workloads {
		if strings.Contains(wl.Name, nameFilter) {
			matching = append(matching, wl)
		}
	}

	limit := s.ListPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid limit"})
			return
		}
		limit = n
	}
	page := matching
	if limit < len(page) {
		page = page[:limit]
	}
	c.JSON(http.StatusOK, gin.H{"count": len(matching), "data": page})
}

func (s *Server) getWorkload(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, wl := s.findWorkload(c.Param("id"))
	if wl == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Workload not found"})
		return
	}
	out := *wl
	out.Versions = append([]model.WorkloadVersion(nil), wl.Versions...)
	if n := len(out.Versions); n > 0 {
		downloading := s.pending[wl.ID] > 0
		out.Versions[n-1].IsDownloading = downloading
		if downloading {
			s.pending[wl.ID]--
		}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) decodeWorkloadPart(c *gin.Context) (*model.Workload, bool) {
	parts, err := requestParts(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return nil, false
	}
	data, ok := parts["data"]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing data part"})
		return nil, false
	}
	var wl model.Workload
	if err := json.Unmarshal(data.Content, &wl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return nil, false
	}
	return &wl, true
}

func (s *Server) createWorkload(c *gin.Context) {
	wl, ok := s.decodeWorkloadPart(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.Workloads {
		if existing.Name == wl.Name {
			c.JSON(http.StatusConflict, []gin.H{{"message": "Workload with this name already exists"}})
			return
		}
	}
	wl.ID = s.newID("wl")
	wl.Versions = nil
	s.Workloads = append(s.Workloads, wl)
	c.JSON(http.StatusOK, wl)
}

func (s *Server) patchWorkload(c *gin.Context) {
	patch, ok := s.decodeWorkloadPart(c)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, wl := s.findWorkload(patch.ID)
	if wl == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Workload not found"})
		return
	}
	for _, v := range patch.Versions {
		if v.ID == "" {
			v.ID = s.newID("ver")
		}
		wl.Versions = append(wl.Versions, v)
	}
	s.pending[wl.ID] = s.DownloadPolls
	c.JSON(http.StatusOK, wl)
}

func (s *Server) deleteWorkload(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, wl := s.findWorkload(c.Param("id"))
	if wl == nil {
		c.JSON(http.StatusNotFound, []gin.H{{"message": "Workload not found"}})
		return
	}
	s.Workloads = append(s.Workloads[:i], s.Workloads[i+1:]...)
	c.JSON(http.StatusOK, gin.H{})
}

func (s *Server) currentDNA(c *gin.Context) {
	doc, ok := s.DNA[c.Param("serial")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "No DNA for node"})
		return
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("dna.yaml")
	if err == nil {
		_, err = f.Write(doc)
	}
	if err == nil {
		err = zw.Close()
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/zip", buf.Bytes())
}

func (s *Server) targetDNA(c *gin.Context) {
	parts, err := requestParts(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	file, ok := parts["file"]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing file part"})
		return
	}
	if c.Query("continueInCaseOfRestart") != "true" {
		c.JSON(http.StatusBadRequest, gin.H{"message": fmt.Sprintf("unexpected query %q", c.Request.URL.RawQuery)})
		return
	}
	s.mu.Lock()
	s.TargetDNA[c.Param("serial")] = file.Content
	s.mu.Unlock()
	c.JSON(http.StatusAccepted, gin.H{})
}
