// Package chi serves the HTTP API consumed by the rendering layer and the
// notification ingress used by the host bridge.
package chi

import (
	"encoding/json"
	"fmt"
	"net/http"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/casetable/internal/domain/collection"
	"github.com/kailas-cloud/casetable/internal/domain/layout"
	domrel "github.com/kailas-cloud/casetable/internal/domain/relocation"
	"github.com/kailas-cloud/casetable/internal/host"
	logpkg "github.com/kailas-cloud/casetable/internal/logger"
	healthuc "github.com/kailas-cloud/casetable/internal/usecase/health"
	"github.com/kailas-cloud/casetable/internal/version"
)

// maxBodyBytes bounds request bodies; notifications carry whole case lists at most.
const maxBodyBytes = 4 << 20

// Server holds the HTTP handlers.
type Server struct {
	model         Model
	relocator     Relocator
	sync          Synchronizer
	dispatcher    Dispatcher
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	model Model,
	relocator Relocator,
	sync Synchronizer,
	dispatcher Dispatcher,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		model:         model,
		relocator:     relocator,
		sync:          sync,
		dispatcher:    dispatcher,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chirouter.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Get("/version", s.Version)

	r.Get("/datasets", s.ListDatasets)
	r.Post("/datasets/{name}/select", s.SelectDataset)
	r.Delete("/datasets/active", s.DeselectDataset)

	r.Get("/state", s.GetState)
	r.Post("/state/reload", s.Reload)
	r.Put("/layout", s.SetLayout)
	r.Post("/sort", s.Sort)

	r.Post("/collections", s.CreateCollection)
	r.Post("/collections/{collectionName}/attributes", s.CreateAttribute)
	r.Patch("/collections/{collectionName}/attributes/{attrID}", s.RenameAttribute)
	r.Get("/attributes", s.FindAttributes)
	r.Post("/attributes/move", s.MoveAttribute)
	r.Put("/cases/{caseID}/values/{attrTitle}", s.EditCaseValue)

	r.Post("/host/notifications", s.ReceiveNotification)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}
	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// Version handles GET /version.
func (s *Server) Version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

// ListDatasets handles GET /datasets.
func (s *Server) ListDatasets(w http.ResponseWriter, r *http.Request) {
	infos, err := s.sync.RefreshDatasets(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": infos})
}

// FindAttributes handles GET /attributes?q=.
func (s *Server) FindAttributes(w http.ResponseWriter, r *http.Request) {
	var q string
	if err := runtime.BindQueryParameter("form", true, true, "q", r.URL.Query(), &q); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid query parameter q")
		return
	}
	matches := s.model.FindAttributes(q)
	if matches == nil {
		matches = []collection.AttrMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": matches})
}

// SelectDataset handles POST /datasets/{name}/select.
func (s *Server) SelectDataset(w http.ResponseWriter, r *http.Request) {
	var name string
	if !bindPath(w, r, "name", &name) {
		return
	}
	if err := s.sync.SelectDataset(r.Context(), name); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

// DeselectDataset handles DELETE /datasets/active.
func (s *Server) DeselectDataset(w http.ResponseWriter, _ *http.Request) {
	s.sync.Deselect()
	w.WriteHeader(http.StatusNoContent)
}

// GetState handles GET /state.
func (s *Server) GetState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

// Reload handles POST /state/reload.
func (s *Server) Reload(w http.ResponseWriter, r *http.Request) {
	if err := s.model.Reload(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.state())
}

// SetLayout handles PUT /layout.
func (s *Server) SetLayout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	l, err := layout.Parse(req.Layout)
	if err == nil {
		err = s.model.SetLayout(r.Context(), l)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"layout": s.model.Snapshot().Layout.String()})
}

// Sort handles POST /sort.
func (s *Server) Sort(w http.ResponseWriter, r *http.Request) {
	var req sortRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.model.Sort(r.Context(), req.Attr, req.Descending); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// CreateCollection handles POST /collections.
func (s *Server) CreateCollection(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.model.AddCollection(r.Context(), req.Name); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.state())
}

// CreateAttribute handles POST /collections/{collectionName}/attributes.
func (s *Server) CreateAttribute(w http.ResponseWriter, r *http.Request) {
	var collectionName string
	if !bindPath(w, r, "collectionName", &collectionName) {
		return
	}
	var req nameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.model.AddAttribute(r.Context(), collectionName, req.Name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// RenameAttribute handles PATCH /collections/{collectionName}/attributes/{attrID}.
func (s *Server) RenameAttribute(w http.ResponseWriter, r *http.Request) {
	var (
		collectionName string
		attrID         int
	)
	if !bindPath(w, r, "collectionName", &collectionName) || !bindPath(w, r, "attrID", &attrID) {
		return
	}
	var req renameRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.model.RenameAttribute(r.Context(), collectionName, attrID, req.OldName, req.NewName); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveAttribute handles POST /attributes/move.
func (s *Server) MoveAttribute(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	switch req.Side {
	case domrel.Left, domrel.Right:
	case "":
		req.Side = domrel.Left
	default:
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "side must be \"left\" or \"right\"")
		return
	}
	plan, err := s.relocator.Move(r.Context(), req.Source, req.Target, req.Side, req.Geometry)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if plan == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// EditCaseValue handles PUT /cases/{caseID}/values/{attrTitle}.
func (s *Server) EditCaseValue(w http.ResponseWriter, r *http.Request) {
	var (
		caseID    int
		attrTitle string
	)
	if !bindPath(w, r, "caseID", &caseID) || !bindPath(w, r, "attrTitle", &attrTitle) {
		return
	}
	var req editRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.model.EditCaseValue(r.Context(), req.Value, caseID, attrTitle)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ReceiveNotification handles POST /host/notifications.
func (s *Server) ReceiveNotification(w http.ResponseWriter, r *http.Request) {
	var n host.Notification
	if !decodeBody(w, r, &n) {
		return
	}
	if n.Resource == "" {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "resource is required")
		return
	}
	delivered := s.dispatcher.Dispatch(r.Context(), n)
	writeJSON(w, http.StatusAccepted, dispatchResponse{Delivered: delivered})
}

func (s *Server) state() stateResponse {
	snap := s.model.Snapshot()
	warnings := make([]string, len(snap.Warnings))
	for i, w := range snap.Warnings {
		warnings[i] = w.String()
	}
	pending := snap.Pending
	if pending == nil {
		pending = []string{}
	}
	return stateResponse{
		Dataset:      snap.Dataset,
		Subscription: string(s.sync.State()),
		Layout:       snap.Layout.String(),
		Preference:   snap.Preference.String(),
		Collections:  snap.Collections,
		Classes:      snap.Classes,
		NewAttribute: snap.NewAttribute,
		Pending:      pending,
		Stale:        snap.Stale,
		StaleReason:  snap.StaleReason,
		Warnings:     warnings,
		Lineage:      s.sync.Lineage(),
		Precisions:   s.model.AttrPrecisions(),
		Types:        s.model.AttrTypes(),
		Visibilities: s.model.AttrVisibilities(),
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log, ok := logpkg.Lookup(r.Context())
	if !ok {
		log = s.logger
	}
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// bindPath binds a chi path parameter with the OpenAPI simple style.
func bindPath(w http.ResponseWriter, r *http.Request, name string, dst any) bool {
	err := runtime.BindStyledParameterWithOptions("simple", name, chirouter.URLParam(r, name), dst,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("Invalid path parameter %s", name))
		return false
	}
	return true
}
