package explore

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/pagegraph/graph"
)

// Routes returns the HTTP JSON API over the service. Errors come back as
// {"error": "..."} with the status mapped from the error type.
func (svc *Service) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/graphs", svc.handleList)
	r.Post("/graphs", svc.handleLoad)
	r.Route("/graphs/{handle}", func(r chi.Router) {
		r.Get("/stats", svc.handleStats)
		r.Get("/identify/{id}", svc.handleIdentify)
		r.Get("/downstream/{edge}", svc.handleDownstream)
		r.Get("/requests/{edge}", svc.handleRequests)
		r.Get("/request-info/{request}", svc.handleRequestInfo)
		r.Get("/modifications/{node}", svc.handleModifications)
		r.Get("/hot-elements", svc.handleHotElements)
		r.Post("/match", svc.handleMatch)
	})
	return r
}

func (svc *Service) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, svc.List())
}

func (svc *Service) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, fmt.Errorf("decode body: %w", err))
		return
	}
	if req.Path == "" {
		writeError(w, 400, errors.New("path is required"))
		return
	}
	info, err := svc.Load(r.Context(), req.Path)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, 201, info)
}

func (svc *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := svc.Stats(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, 200, st)
}

func (svc *Service) handleIdentify(w http.ResponseWriter, r *http.Request) {
	rep, err := svc.Identify(chi.URLParam(r, "handle"), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, 200, rep)
}

func (svc *Service) handleDownstream(w http.ResponseWriter, r *http.Request) {
	rep, err := svc.Downstream(chi.URLParam(r, "handle"), chi.URLParam(r, "edge"))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, 200, rep)
}

func (svc *Service) handleRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := svc.DownstreamRequests(chi.URLParam(r, "handle"), chi.URLParam(r, "edge"))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, 200, reqs)
}

func (svc *Service) handleRequestInfo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "request"), 10, 64)
	if err != nil {
		writeError(w, 400, fmt.Errorf("request id must be an integer: %w", err))
		return
	}
	info, err := svc.RequestInfo(chi.URLParam(r, "handle"), id, r.URL.Query().Get("frame"))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, 200, info)
}

func (svc *Service) handleModifications(w http.ResponseWriter, r *http.Request) {
	rep, err := svc.Modifications(chi.URLParam(r, "handle"), chi.URLParam(r, "node"))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, 200, rep)
}

func (svc *Service) handleHotElements(w http.ResponseWriter, r *http.Request) {
	els, err := svc.HotElements(chi.URLParam(r, "handle"), queryInt(r, "threshold", 0))
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, 200, els)
}

func (svc *Service) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rules          []string `json:"rules"`
		OnlyExceptions bool     `json:"only_exceptions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, fmt.Errorf("decode body: %w", err))
		return
	}
	matches, err := svc.MatchFilters(chi.URLParam(r, "handle"), req.Rules, req.OnlyExceptions)
	if err != nil {
		writeError(w, errorStatus(err), err)
		return
	}
	writeJSON(w, 200, matches)
}

// errorStatus maps service and graph errors to HTTP statuses. Ill-formed ids
// and unsupported queries are the caller's fault; graph inconsistencies are
// not.
func errorStatus(err error) int {
	var notLoaded *ErrGraphNotLoaded
	var idGone *ErrIDNotFound
	var notFound *graph.ErrNotFound
	var badID *ErrBadID
	var badGraphID *graph.ErrBadID
	var unimpl *graph.ErrUnimplemented
	switch {
	case errors.As(err, &notLoaded), errors.As(err, &idGone), errors.As(err, &notFound):
		return 404
	case errors.As(err, &badID), errors.As(err, &badGraphID), errors.As(err, &unimpl),
		errors.Is(err, ErrNoFilterEngine):
		return 400
	}
	return 500
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
