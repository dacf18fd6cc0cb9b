package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/usecase"
)

type ExampleHandler struct {
	examples *usecase.ExamplesUseCase
}

func NewExampleHandler(examples *usecase.ExamplesUseCase) *ExampleHandler {
	return &ExampleHandler{examples: examples}
}

func (h *ExampleHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.examples.List(r.Context(), r.URL.Query().Get("channel"))
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []*entity.TrainingExample{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *ExampleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input usecase.CreateExampleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	ex, err := h.examples.Create(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ex)
}

func (h *ExampleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.examples.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
