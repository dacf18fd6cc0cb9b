package handlers

import (
	"net/http"

	"github.com/xavierca1/sherpa/internal/usecase"
)

type ReportHandler struct {
	report *usecase.ReportUseCase
}

func NewReportHandler(report *usecase.ReportUseCase) *ReportHandler {
	return &ReportHandler{report: report}
}

func (h *ReportHandler) Handle(w http.ResponseWriter, r *http.Request) {
	rep, err := h.report.Execute(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
