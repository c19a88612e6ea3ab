package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/newcomer/internal/engine"
	"github.com/lazypower/newcomer/internal/ledger"
	"github.com/lazypower/newcomer/internal/member"
	"github.com/lazypower/newcomer/internal/panel"
	"github.com/lazypower/newcomer/internal/stats"
)

type eventRequest struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	Channel  string `json:"channel"`
	Action   string `json:"action"`
}

// maxBodySize caps inbound JSON bodies. Events and panel commands are a
// handful of short fields.
const maxBodySize = 16 << 10

// decodeJSON reads a size-capped JSON body into v, answering 413 or 400
// itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func decodeEvent(w http.ResponseWriter, r *http.Request) (eventRequest, bool) {
	var req eventRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if req.MemberID == "" {
		writeError(w, http.StatusBadRequest, "member_id required")
		return req, false
	}
	return req, true
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvent(w, r)
	if !ok {
		return
	}

	res, err := s.deps.Tracker.Join(r.Context(), req.MemberID, req.Name)
	switch {
	case errors.Is(err, engine.ErrJoinInFlight):
		writeError(w, http.StatusConflict, "join already being processed")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleActivity(record func(id, channel string) (member.Record, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeEvent(w, r)
		if !ok {
			return
		}
		rec, err := record(req.MemberID, req.Channel)
		s.writeActivity(w, rec, err)
	}
}

func (s *Server) handleButton(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeEvent(w, r)
	if !ok {
		return
	}
	rec, err := s.deps.Tracker.ButtonClick(req.MemberID, req.Action)
	s.writeActivity(w, rec, err)
}

// writeActivity answers an activity event. Activity from untracked members
// is ignored, not an error.
func (s *Server) writeActivity(w http.ResponseWriter, rec member.Record, err error) {
	switch {
	case errors.Is(err, engine.ErrNotTracked):
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	case err != nil:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"status":     "recorded",
			"risk_score": rec.RiskScore,
		})
	}
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	records := s.deps.Store.List()

	if band := r.URL.Query().Get("band"); band != "" {
		filtered := records[:0]
		for _, rec := range records {
			if string(member.BandFor(rec.RiskScore, s.deps.Bands.High, s.deps.Bands.Medium)) == band {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if r.URL.Query().Get("pending") == "true" {
		filtered := records[:0]
		for _, rec := range records {
			if !rec.OutreachSent {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}

	limit := queryInt(r, "limit", 0)
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"members": records,
		"count":   len(records),
	})
}

func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "memberID")
	rec, ok := s.deps.Store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}

	resp := map[string]any{
		"member":   rec,
		"band":     member.BandFor(rec.RiskScore, s.deps.Bands.High, s.deps.Bands.Medium),
		"decision": engine.Evaluate(rec, s.deps.Now().UTC(), s.deps.Thresholds),
	}
	if s.deps.Ledger != nil {
		attempts, err := s.deps.Ledger.ListOutreach(id, 10)
		if err != nil {
			s.logger.Warn("list outreach", "member_id", id, "error", err)
		}
		resp["outreach"] = nonNil(attempts)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	records := s.deps.Store.List()
	limit := queryInt(r, "limit", 5)

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   stats.Compute(records, s.deps.Now().UTC(), s.deps.Bands),
		"high_risk": stats.HighRiskMembers(records, s.deps.Bands, limit),
		"healthy":   stats.HealthyMembers(records, s.deps.Bands, limit),
		"recent":    stats.RecentInteractions(records, limit),
	})
}

func (s *Server) handleGetPanel(w http.ResponseWriter, r *http.Request) {
	if s.deps.Panel == nil {
		writeError(w, http.StatusServiceUnavailable, "panel not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Panel.State())
}

func (s *Server) handleUpdatePanel(w http.ResponseWriter, r *http.Request) {
	if s.deps.Panel == nil {
		writeError(w, http.StatusServiceUnavailable, "panel not configured")
		return
	}

	var req struct {
		Command  string      `json:"command"` // "toggle", "cycle_mode" or "set"
		Executor string      `json:"executor"`
		Active   *bool       `json:"active"`
		Mode     *panel.Mode `json:"mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Executor == "" {
		writeError(w, http.StatusBadRequest, "executor required")
		return
	}

	var (
		st  panel.State
		err error
	)
	switch req.Command {
	case "toggle":
		st, err = s.deps.Panel.Toggle(req.Executor)
	case "cycle_mode":
		st, err = s.deps.Panel.CycleMode(req.Executor)
	case "set", "":
		if req.Mode != nil && !req.Mode.Valid() {
			writeError(w, http.StatusBadRequest, "unknown mode")
			return
		}
		st, err = s.deps.Panel.Update(panel.Patch{Active: req.Active, Mode: req.Mode}, "set", req.Executor)
	default:
		writeError(w, http.StatusBadRequest, "unknown command")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handlePreview renders outreach for a synthetic member so operators can
// check the templates without messaging anyone.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Presenter == nil {
		writeError(w, http.StatusServiceUnavailable, "presenter not configured")
		return
	}

	var req struct {
		Kind     string `json:"kind"`
		Name     string `json:"name"`
		Executor string `json:"executor"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Executor == "" {
		writeError(w, http.StatusBadRequest, "executor required")
		return
	}
	kind := engine.Kind(strings.ToLower(req.Kind))
	switch kind {
	case "":
		kind = engine.KindRetention
	case engine.KindRetention, engine.KindEncouragement:
	default:
		writeError(w, http.StatusBadRequest, "kind must be retention or encouragement")
		return
	}
	if req.Name == "" {
		req.Name = "New Member"
	}

	rec := member.New("preview", req.Name, s.deps.Now())
	msg, err := s.deps.Presenter.Render(rec, string(kind))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s.deps.Ledger != nil {
		if err := s.deps.Ledger.RecordPanelAction("preview:"+string(kind), req.Executor); err != nil {
			s.logger.Warn("journal panel preview", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "member": rec, "message": msg})
}

func (s *Server) handleListOutreach(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ledger == nil {
		writeError(w, http.StatusServiceUnavailable, "ledger not configured")
		return
	}
	attempts, err := s.deps.Ledger.ListOutreach(r.URL.Query().Get("member_id"), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": nonNil(attempts)})
}

func (s *Server) handleRunCycle(w http.ResponseWriter, r *http.Request) {
	if s.deps.Scheduler == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler not configured")
		return
	}
	report, ran := s.deps.Scheduler.RunCycle(r.Context())
	if !ran {
		writeError(w, http.StatusConflict, "a cycle is already running")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func nonNil(a []ledger.OutreachAttempt) []ledger.OutreachAttempt {
	if a == nil {
		return []ledger.OutreachAttempt{}
	}
	return a
}
