package handlers

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/sherpa/internal/infra/worker"
)

// PassHandler runs a pass on demand and returns its report. The request
// context bounds the run; a client that disconnects cancels the pass between
// leads.
type PassHandler struct {
	passes   map[string]worker.PassFunc
	observer worker.Observer
}

func NewPassHandler(passes map[string]worker.PassFunc, observer worker.Observer) *PassHandler {
	return &PassHandler{passes: passes, observer: observer}
}

func (h *PassHandler) Run(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	run, ok := h.passes[name]
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown pass " + name, Code: "NOT_FOUND"})
		return
	}

	report, err := run(r.Context())
	if h.observer != nil {
		h.observer.ObservePass(report, err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *PassHandler) List(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.passes))
	for name := range h.passes {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, names)
}
