// Package mstest runs an in-process fake of the Nerve management system
// API for tests. Fixtures are plain JSON-shaped values so tests can serve
// malformed payloads as easily as well formed ones.
package mstest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/balaji-balu/nerve-cli/pkg/model"
)

const (
	DefaultSessionID = "test-session"
	DefaultIdentity  = "ops@example.com"
	DefaultSecret    = "s3cret"
)

// Request is one call received by the fake.
type Request struct {
	Method   string
	Path     string
	RawQuery string
	Header   http.Header
	Body     []byte
}

type override struct {
	status int
	body   any
}

type Server struct {
	*httptest.Server

	SessionID string
	Identity  string
	Secret    string
	Version   string

	// Roots is served by GET /nerve/tree-node/type/root.
	Roots any
	// Children maps a parent tree node id to the payload of
	// GET /nerve/tree-node/parent/{id}.
	Children map[string]any
	// Unassigned is served by GET /nerve/tree-node/child-type/unassigned.
	Unassigned any

	Labels []map[string]any
	// Devices maps a serial number to the payload of
	// GET /nerve/workload/node/{serial}/devices.
	Devices map[string]any

	Workloads []*model.Workload
	// ListPageSize is the number of workloads returned when no limit is given.
	ListPageSize int
	// DownloadPolls is how many reads of a workload report its newest
	// version as still downloading after a version was added.
	DownloadPolls int

	// DNA maps a serial number to the YAML served zipped by
	// GET /nerve/dna/{serial}/current.
	DNA map[string][]byte
	// TargetDNA records the files received by PUT /nerve/dna/{serial}/target.
	TargetDNA map[string][]byte

	mu        sync.Mutex
	requests  []Request
	overrides map[string]override
	pending   map[string]int
	nextID    int
}

// New starts a fake with empty fixtures and closes it when t ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		SessionID:    DefaultSessionID,
		Identity:     DefaultIdentity,
		Secret:       DefaultSecret,
		Version:      "2.8.0",
		Children:     map[string]any{},
		Unassigned:   []any{},
		Devices:      map[string]any{},
		ListPageSize: 10,
		DNA:          map[string][]byte{},
		TargetDNA:    map[string][]byte{},
		overrides:    map[string]override{},
		pending:      map[string]int{},
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// Fail makes every request matching method and path answer with status
// and body.
func (s *Server) Fail(method, path string, status int, body any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method+" "+path] = override{status: status, body: body}
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns the requests received for method and path.
func (s *Server) Calls(method, path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.record())
	r.Use(s.overridden())

	r.POST("/auth/login", s.login)

	authed := r.Group("/", s.authenticate())
	{
		authed.POST("/auth/logout", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
		authed.GET("/nerve/update/cloud/current-version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"currentVersion": s.Version})
		})

		authed.GET("/nerve/tree-node/type/root", func(c *gin.Context) { c.JSON(http.StatusOK, s.Roots) })
		authed.GET("/nerve/tree-node/parent/:id", s.children)
		authed.GET("/nerve/tree-node/child-type/unassigned", func(c *gin.Context) {
			c.JSON(http.StatusOK, s.Unassigned)
		})

		authed.GET("/nerve/labels/list", s.listLabels)
		authed.POST("/nerve/labels", s.createLabel)
		authed.DELETE("/nerve/labels/:id", s.deleteLabel)

		authed.GET("/nerve/workload/node/:serial/devices", s.devices)
		authed.POST("/nerve/node/:serial/reboot", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
		authed.POST("/nerve/workload/controller", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })

		authed.GET("/nerve/v2/workloads", s.listWorkloads)
		authed.GET("/nerve/v2/workloads/:id", s.getWorkload)
		authed.POST("/nerve/v2/workloads", s.createWorkload)
		authed.PATCH("/nerve/v2/workloads", s.patchWorkload)
		authed.DELETE("/nerve/workload/:id", s.deleteWorkload)

		authed.GET("/nerve/dna/:serial/current", s.currentDNA)
		authed.PUT("/nerve/dna/:serial/target", s.targetDNA)
	}
	return r
}

func (s *Server) record() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:   c.Request.Method,
			Path:     c.Request.URL.Path,
			RawQuery: c.Request.URL.RawQuery,
			Header:   c.Request.Header.Clone(),
			Body:     body,
		})
		s.mu.Unlock()
		c.Next()
	}
}

func (s *Server) overridden() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		o, ok := s.overrides[c.Request.Method+" "+c.Request.URL.Path]
		s.mu.Unlock()
		if !ok {
			c.Next()
			return
		}
		if raw, isRaw := o.body.(string); isRaw {
			c.Data(o.status, "text/plain", []byte(raw))
		} else {
			c.JSON(o.status, o.body)
		}
		c.Abort()
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("sessionId") != s.SessionID || s.SessionID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Identity string `json:"identity"`
		Secret   string `json:"secret"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, []gin.H{{"message": "malformed login request"}})
		return
	}
	if req.Identity != s.Identity || req.Secret != s.Secret {
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{"sessionId": s.SessionID}})
}

func (s *Server) children(c *gin.Context) {
	payload, ok := s.Children[c.Param("id")]
	if !ok {
		payload = []any{}
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) devices(c *gin.Context) {
	payload, ok := s.Devices[c.Param("serial")]
	if !ok {
		payload = []any{}
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) listLabels(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"count": len(s.Labels), "data": s.Labels})
}

func (s *Server) createLabel(c *gin.Context) {
	var req map[string]any
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	key, _ := req["key"].(string)
	value, _ := req["value"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.Labels {
		if l["key"] == key && l["value"] == value {
			c.JSON(http.StatusConflict, []gin.H{{"message": "Label already exists"}})
			return
		}
	}
	label := map[string]any{"_id": s.newID("label"), "key": key, "value": value}
	s.Labels = append(s.Labels, label)
	c.JSON(http.StatusOK, label)
}

func (s *Server) deleteLabel(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.Labels {
		if l["_id"] == c.Param("id") {
			s.Labels = append(s.Labels[:i], s.Labels[i+1:]...)
			c.JSON(http.StatusOK, gin.H{})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Label not found"})
}

func (s *Server) newID(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%04d", prefix, s.nextID)
}
