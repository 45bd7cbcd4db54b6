package trackingtest

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"runmatrix/internal/config"
)

// APIKey is the key the server accepts when authentication is enforced
const APIKey = "test-api-key"

// Row is one history row. Non-finite floats are encoded with the NaN and
// Infinity tokens the real service emits.
type Row map[string]interface{}

// Run is a run known to the server
type Run struct {
	ID      string
	Name    string
	Group   string
	JobType string
	Tags    []string
	Config  map[string]interface{}
	Summary map[string]interface{}
	History []Row
}

// RecordedRequest is one GraphQL call received by the server
type RecordedRequest struct {
	Operation string
	Variables map[string]interface{}
	Auth      string
}

// Server is a fake tracking service backed by httptest
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	projects  map[string][]Run
	requests  []RecordedRequest
	failures  map[string]int
	requireAu bool
}

// NewServer starts a fake service
func NewServer() *Server {
	s := &Server{
		projects: make(map[string][]Run),
		failures: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Post("/graphql", s.handleGraphQL)

	s.Server = httptest.NewServer(r)
	return s
}

// APIConfig returns client settings pointing at the server
func (s *Server) APIConfig() config.APIConfig {
	return config.APIConfig{
		BaseURL:      s.URL,
		Key:          APIKey,
		Timeout:      5 * time.Second,
		PageSize:     config.DefaultPageSize,
		ScanPageSize: config.DefaultScanPageSize,
	}
}

// RequireAuth makes the server reject requests without the test API key
func (s *Server) RequireAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireAu = true
}

// AddRun registers a run under entity/project. Runs are listed in the order
// they were added. An empty ID defaults to the name.
func (s *Server) AddRun(entity, project string, run Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == "" {
		run.ID = run.Name
	}
	key := entity + "/" + project
	s.projects[key] = append(s.projects[key], run)
}

// AddProject registers an empty project
func (s *Server) AddProject(entity, project string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entity + "/" + project
	if _, ok := s.projects[key]; !ok {
		s.projects[key] = nil
	}
}

// Fail makes every request for operation answer with status. Operations are
// "Runs", "HistoryPage" and "SampledHistory".
func (s *Server) Fail(operation string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[operation] = status
}

// Requests returns all recorded requests
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest{}, s.requests...)
}

// RequestCount returns the number of requests for operation
func (s *Server) RequestCount(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Operation == operation {
			n++
		}
	}
	return n
}

// LastFilters returns the filters of the most recent run listing
func (s *Server) LastFilters() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Operation == "Runs" {
			f, _ := s.requests[i].Variables["filters"].(string)
			return f
		}
	}
	return ""
}

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}

	op := operationName(req.Query)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Operation: op,
		Variables: req.Variables,
		Auth:      r.Header.Get("Authorization"),
	})
	status, failing := s.failures[op]
	requireAuth := s.requireAu
	s.mu.Unlock()

	if requireAuth && !authorized(r) {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "invalid api key"})
		return
	}
	if failing {
		render.Status(r, status)
		render.JSON(w, r, map[string]string{"error": http.StatusText(status)})
		return
	}

	var (
		data interface{}
		err  error
	)
	switch op {
	case "Runs":
		data, err = s.runs(req.Variables)
	case "HistoryPage":
		data = s.history(req.Variables)
	case "SampledHistory":
		data, err = s.sampledHistory(req.Variables)
	default:
		err = fmt.Errorf("unknown operation %q", op)
	}
	if err != nil {
		render.JSON(w, r, map[string]interface{}{
			"data":   nil,
			"errors": []map[string]string{{"message": err.Error()}},
		})
		return
	}

	render.JSON(w, r, map[string]interface{}{"data": data})
}

func authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	return ok && user == "api" && pass == APIKey
}

func operationName(q string) string {
	q = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(q), "query"))
	if i := strings.IndexAny(q, "( {"); i >= 0 {
		return q[:i]
	}
	return q
}

func (s *Server) lookup(vars map[string]interface{}) ([]Run, bool) {
	entity, _ := vars["entity"].(string)
	project, _ := vars["project"].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	runs, ok := s.projects[entity+"/"+project]
	return append([]Run{}, runs...), ok
}

func (s *Server) runs(vars map[string]interface{}) (interface{}, error) {
	runs, ok := s.lookup(vars)
	if !ok {
		return map[string]interface{}{"project": nil}, nil
	}

	var filters map[string]interface{}
	if f, _ := vars["filters"].(string); f != "" {
		if err := json.Unmarshal([]byte(f), &filters); err != nil {
			return nil, fmt.Errorf("invalid filters: %w", err)
		}
	}

	var matched []Run
	for _, run := range runs {
		if matches(run, filters) {
			matched = append(matched, run)
		}
	}

	start := 0
	if c, ok := vars["cursor"].(string); ok && c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q", c)
		}
		start = n
	}
	perPage := len(matched)
	if p, ok := vars["perPage"].(float64); ok && p > 0 {
		perPage = int(p)
	}
	end := start + perPage
	if end > len(matched) {
		end = len(matched)
	}

	edges := make([]map[string]interface{}, 0, end-start)
	for i := start; i < end; i++ {
		edges = append(edges, map[string]interface{}{
			"node":   node(matched[i]),
			"cursor": strconv.Itoa(i + 1),
		})
	}

	return map[string]interface{}{
		"project": map[string]interface{}{
			"runs": map[string]interface{}{
				"edges": edges,
				"pageInfo": map[string]interface{}{
					"endCursor":   strconv.Itoa(end),
					"hasNextPage": end < len(matched),
				},
			},
		},
	}, nil
}

func node(run Run) map[string]interface{} {
	lastStep := -1.0
	for _, row := range run.History {
		if step, ok := row["_step"]; ok {
			if f, ok := toFloat(step); ok && f > lastStep {
				lastStep = f
			}
		}
	}
	summary := map[string]interface{}{}
	for k, v := range run.Summary {
		summary[k] = v
	}
	if lastStep >= 0 {
		summary["_step"] = lastStep
	}
	summaryJSON, _ := json.Marshal(summary)

	tags := run.Tags
	if tags == nil {
		tags = []string{}
	}

	return map[string]interface{}{
		"id":               "id-" + run.ID,
		"name":             run.ID,
		"displayName":      run.Name,
		"group":            run.Group,
		"jobType":          run.JobType,
		"tags":             tags,
		"historyLineCount": len(run.History),
		"summaryMetrics":   string(summaryJSON),
	}
}

func (s *Server) findRun(vars map[string]interface{}) (Run, bool) {
	runs, _ := s.lookup(vars)
	id, _ := vars["run"].(string)
	for _, run := range runs {
		if run.ID == id {
			return run, true
		}
	}
	return Run{}, false
}

func (s *Server) history(vars map[string]interface{}) interface{} {
	run, ok := s.findRun(vars)
	if !ok {
		return map[string]interface{}{"project": map[string]interface{}{"run": nil}}
	}

	minStep, _ := toFloat(vars["minStep"])
	maxStep, _ := toFloat(vars["maxStep"])

	rows := []string{}
	for _, row := range run.History {
		step, _ := toFloat(row["_step"])
		if step >= minStep && step < maxStep {
			rows = append(rows, encodeRow(row))
		}
	}

	return map[string]interface{}{
		"project": map[string]interface{}{
			"run": map[string]interface{}{"history": rows},
		},
	}
}

func (s *Server) sampledHistory(vars map[string]interface{}) (interface{}, error) {
	run, ok := s.findRun(vars)
	if !ok {
		return map[string]interface{}{"project": map[string]interface{}{"run": nil}}, nil
	}

	rawSpecs, _ := vars["specs"].([]interface{})
	out := make([]string, 0, len(rawSpecs))
	for _, raw := range rawSpecs {
		str, _ := raw.(string)
		var spec struct {
			Keys    []string `json:"keys"`
			Samples int      `json:"samples"`
		}
		if err := json.Unmarshal([]byte(str), &spec); err != nil {
			return nil, fmt.Errorf("invalid spec: %w", err)
		}

		var rows []Row
		for _, row := range run.History {
			if hasKeys(row, spec.Keys) {
				rows = append(rows, pick(row, spec.Keys))
			}
		}
		rows = sample(rows, spec.Samples)

		encoded := make([]string, len(rows))
		for i, row := range rows {
			encoded[i] = encodeRow(row)
		}
		out = append(out, "["+strings.Join(encoded, ",")+"]")
	}

	return map[string]interface{}{
		"project": map[string]interface{}{
			"run": map[string]interface{}{"sampledHistory": out},
		},
	}, nil
}

func hasKeys(row Row, keys []string) bool {
	for _, k := range keys {
		if _, ok := row[k]; !ok {
			return false
		}
	}
	return true
}

func pick(row Row, keys []string) Row {
	out := make(Row, len(keys))
	for _, k := range keys {
		out[k] = row[k]
	}
	return out
}

// sample keeps n evenly spaced rows including the first and the last
func sample(rows []Row, n int) []Row {
	if n <= 0 || len(rows) <= n {
		return rows
	}
	if n == 1 {
		return rows[:1]
	}
	out := make([]Row, 0, n)
	for i := 0; i < n; i++ {
		idx := int(math.Round(float64(i) * float64(len(rows)-1) / float64(n-1)))
		out = append(out, rows[idx])
	}
	return out
}

// encodeRow writes a row with sorted keys, using NaN and Infinity tokens
// for non-finite floats
func encodeRow(row Row) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		b.Write(kb)
		b.WriteByte(':')
		b.WriteString(encodeValue(row[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func encodeValue(v interface{}) string {
	if f, ok := v.(float64); ok {
		switch {
		case math.IsNaN(f):
			return "NaN"
		case math.IsInf(f, 1):
			return "Infinity"
		case math.IsInf(f, -1):
			return "-Infinity"
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
