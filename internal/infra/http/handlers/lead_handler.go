package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/sherpa/internal/entity"
	"github.com/xavierca1/sherpa/internal/usecase"
)

type LeadHandler struct {
	create      *usecase.CreateLeadUseCase
	gate        *usecase.ApprovalGate
	leads       entity.LeadRepositoryInterface
	deliveries  entity.DeliveryRepositoryInterface
	rateLimiter *RateLimiter
}

func NewLeadHandler(create *usecase.CreateLeadUseCase, gate *usecase.ApprovalGate, leads entity.LeadRepositoryInterface, deliveries entity.DeliveryRepositoryInterface) *LeadHandler {
	return &LeadHandler{
		create:      create,
		gate:        gate,
		leads:       leads,
		deliveries:  deliveries,
		rateLimiter: NewRateLimiter(10, time.Minute), // 10 req/min per IP
	}
}

// LeadView is a lead plus its delivery ledger.
type LeadView struct {
	*entity.Lead
	Deliveries []entity.Delivery `json:"deliveries"`
}

func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.rateLimiter.Allow(getClientIP(r)) {
		writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
			Error: "too many requests, try again later",
			Code:  "RATE_LIMITED",
		})
		return
	}

	var input usecase.CreateLeadInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		badRequest(w, "invalid JSON")
		return
	}

	lead, err := h.create.Execute(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := entity.LeadFilter{Limit: 100}
	q := r.URL.Query()

	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s, err := entity.ParseStatus(strings.TrimSpace(part))
			if err != nil {
				badRequest(w, err.Error())
				return
			}
			filter.Statuses = append(filter.Statuses, s)
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	leads, err := h.leads.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if leads == nil {
		leads = []*entity.Lead{}
	}
	writeJSON(w, http.StatusOK, leads)
}

func (h *LeadHandler) Get(w http.ResponseWriter, r *http.Request) {
	lead, err := h.leads.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	view := LeadView{Lead: lead, Deliveries: []entity.Delivery{}}
	if h.deliveries != nil {
		ds, err := h.deliveries.ListDeliveries(r.Context(), lead.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if ds != nil {
			view.Deliveries = ds
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *LeadHandler) EditDraft(w http.ResponseWriter, r *http.Request) {
	edits, err := decodeDraft(r)
	if err != nil || edits == nil {
		badRequest(w, "body must be a draft object")
		return
	}
	h.respond(w)(h.gate.EditDraft(r.Context(), chi.URLParam(r, "id"), *edits))
}

// Approve accepts an optional draft body whose non-null fields replace the
// generated text.
func (h *LeadHandler) Approve(w http.ResponseWriter, r *http.Request) {
	edits, err := decodeDraft(r)
	if err != nil {
		badRequest(w, "body must be a draft object")
		return
	}
	h.respond(w)(h.gate.Approve(r.Context(), chi.URLParam(r, "id"), edits))
}

func (h *LeadHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.gate.Reject(r.Context(), chi.URLParam(r, "id")))
}

func (h *LeadHandler) Regenerate(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.gate.Regenerate(r.Context(), chi.URLParam(r, "id")))
}

func (h *LeadHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.respond(w)(h.gate.Reactivate(r.Context(), chi.URLParam(r, "id")))
}

func (h *LeadHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	res, err := h.gate.BulkApprove(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if res.Approved == nil {
		res.Approved = []string{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *LeadHandler) respond(w http.ResponseWriter) func(*entity.Lead, error) {
	return func(lead *entity.Lead, err error) {
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, lead)
	}
}

// decodeDraft returns nil for an empty body.
func decodeDraft(r *http.Request) (*entity.Draft, error) {
	var d entity.Draft
	err := json.NewDecoder(r.Body).Decode(&d)
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}

// RateLimiter is a fixed-window counter per client.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    int
	window   time.Duration
	now      func() time.Time
}

type visitor struct {
	count     int
	lastReset time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.evict(now)

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{count: 1, lastReset: now}
		return true
	}

	if now.Sub(v.lastReset) > rl.window {
		v.count = 1
		v.lastReset = now
		return true
	}

	v.count++
	return v.count <= rl.limit
}

// evict drops idle visitors once the map grows; called with mu held.
func (rl *RateLimiter) evict(now time.Time) {
	if len(rl.visitors) < 1024 {
		return
	}
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}
