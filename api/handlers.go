/*
handlers.go - HTTP handlers for the attendance engine

PURPOSE:
  Thin glue between HTTP and the engine. Parses requests, reads the
  trusted identity headers, delegates to the services, serializes the
  result. No business rules live here.

IDENTITY:
  The identity/role provider is an external collaborator that has already
  authenticated the request. It supplies:
    X-Person-ID  the caller's id
    X-Role       "admin" or "member"
  The engine trusts these and performs no credential checks.

ERROR HANDLING:
  Engine errors are mapped via the taxonomy helpers:
  - 400: validation (malformed range, reason, filter)
  - 404: unknown id / no such record
  - 409: conflict (already marked, overlap, already reviewed, window
         closed, on leave)
  - 500: store or other dependency failure

SEE ALSO:
  - dto.go: request/response shapes
  - server.go: routing and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/attendance-engine/engine"
	"github.com/warp/attendance-engine/reconcile"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *engine.Ledger
	Leaves *engine.LeaveService
	Grader *engine.Grader
	Users  engine.UserStore
	Jobs   *reconcile.Jobs
}

func NewHandler(ledger *engine.Ledger, leaves *engine.LeaveService, grader *engine.Grader, users engine.UserStore, jobs *reconcile.Jobs) *Handler {
	return &Handler{Ledger: ledger, Leaves: leaves, Grader: grader, Users: users, Jobs: jobs}
}

// =============================================================================
// ATTENDANCE
// =============================================================================

// MarkAttendance handles POST /api/attendance.
func (h *Handler) MarkAttendance(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.identity(w, r)
	if !ok {
		return
	}

	rec, err := h.Ledger.MarkPresent(r.Context(), personID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceDTO(*rec))
}

// QueryAttendance handles GET /api/attendance.
// Query params: date, from, to, window (7|30|365), status.
func (h *Handler) QueryAttendance(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.identity(w, r)
	if !ok {
		return
	}

	q, err := parseAttendanceQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	records, err := h.Ledger.Query(r.Context(), personID, q)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]AttendanceDTO, 0, len(records))
	for _, rec := range records {
		dtos = append(dtos, toAttendanceDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func parseAttendanceQuery(r *http.Request) (engine.AttendanceQuery, error) {
	var q engine.AttendanceQuery
	params := r.URL.Query()

	parseDay := func(key string) (*engine.Day, error) {
		v := params.Get(key)
		if v == "" {
			return nil, nil
		}
		d, err := engine.ParseDay(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %v: %w", key, err, engine.ErrInvalidQuery)
		}
		return &d, nil
	}

	var err error
	if q.Date, err = parseDay("date"); err != nil {
		return q, err
	}
	if q.From, err = parseDay("from"); err != nil {
		return q, err
	}
	if q.To, err = parseDay("to"); err != nil {
		return q, err
	}
	switch params.Get("window") {
	case "":
	case "7":
		q.LastDays = engine.WindowWeek
	case "30":
		q.LastDays = engine.WindowMonth
	case "365":
		q.LastDays = engine.WindowYear
	default:
		return q, fmt.Errorf("window %q: %w", params.Get("window"), engine.ErrInvalidQuery)
	}
	q.Status = engine.AttendanceStatus(params.Get("status"))
	return q, nil
}

// =============================================================================
// LEAVES
// =============================================================================

// SubmitLeave handles POST /api/leaves.
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	start, err := engine.ParseDay(req.StartDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid start_date"))
		return
	}
	end, err := engine.ParseDay(req.EndDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid end_date"))
		return
	}

	leave, err := h.Leaves.Submit(r.Context(), personID, start, end, engine.LeaveReason(req.Reason))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveDTO(*leave))
}

// QueryLeaves handles GET /api/leaves.
// Query params: id, status, reason, filter (today|past|upcoming|week|month|year).
func (h *Handler) QueryLeaves(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.identity(w, r)
	if !ok {
		return
	}

	params := r.URL.Query()
	q := engine.LeaveQuery{
		ID:     params.Get("id"),
		Status: engine.LeaveStatus(params.Get("status")),
		Reason: engine.LeaveReason(params.Get("reason")),
		Filter: engine.LeaveFilter(params.Get("filter")),
	}

	leaves, err := h.Leaves.Query(r.Context(), personID, q)
	if err != nil {
		writeError(w, err)
		return
	}

	dtos := make([]LeaveDTO, 0, len(leaves))
	for _, l := range leaves {
		dtos = append(dtos, toLeaveDTO(l))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AmendLeave handles PATCH /api/leaves/{id}.
func (h *Handler) AmendLeave(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req AmendLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	leave, err := h.Leaves.Amend(r.Context(), chi.URLParam(r, "id"), personID, engine.LeaveReason(req.Reason))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveDTO(*leave))
}

// ReviewLeave handles POST /api/admin/leaves/{id}/approve and /reject.
func (h *Handler) ReviewLeave(decision engine.ReviewDecision) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reviewerID, ok := h.requireAdmin(w, r)
		if !ok {
			return
		}

		leave, err := h.Leaves.Review(r.Context(), chi.URLParam(r, "id"), decision, reviewerID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toLeaveDTO(*leave))
	}
}

// =============================================================================
// GRADES
// =============================================================================

// GetGrade handles GET /api/grade: recompute-on-read for the caller.
func (h *Handler) GetGrade(w http.ResponseWriter, r *http.Request) {
	personID, ok := h.identity(w, r)
	if !ok {
		return
	}

	summary, err := h.Grader.Compute(r.Context(), personID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGradeDTO(*summary))
}

// GradeReport handles GET /api/admin/grades: recompute for all members.
func (h *Handler) GradeReport(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	members, err := h.Users.ListMembers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}

	summaries, failures := h.Grader.ComputeAll(r.Context(), ids)
	dtos := make([]GradeDTO, 0, len(summaries))
	for _, s := range summaries {
		dtos = append(dtos, toGradeDTO(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"grades": dtos,
		"failed": len(failures),
	})
}

// =============================================================================
// ADMIN: USERS AND JOBS
// =============================================================================

// SaveUser handles PUT /api/admin/users: upserts a roster entry as
// supplied by the external identity provider.
func (h *Handler) SaveUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	var req SaveUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ID == "" || (req.Role != string(engine.RoleAdmin) && req.Role != string(engine.RoleMember)) {
		writeJSON(w, http.StatusBadRequest, errorBody("id and a valid role are required"))
		return
	}

	u := engine.User{
		ID:       req.ID,
		Username: req.Username,
		Email:    req.Email,
		Role:     engine.Role(req.Role),
		Active:   req.Active,
		Approved: req.Approved,
	}
	if err := h.Users.SaveUser(r.Context(), u); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": u.ID})
}

// TriggerJob handles POST /api/admin/jobs/{name} for manual runs.
func (h *Handler) TriggerJob(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}

	name := chi.URLParam(r, "name")
	var (
		affected int
		err      error
	)
	switch name {
	case "sweep":
		affected, err = h.Jobs.SweepAbsences(r.Context())
	case "reject":
		affected, err = h.Jobs.RejectStalePending(r.Context())
	case "remind":
		affected, err = h.Jobs.RemindPendingApprovals(r.Context())
	default:
		writeJSON(w, http.StatusNotFound, errorBody("unknown job"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JobResultDTO{Job: name, Affected: affected})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	personID := r.Header.Get("X-Person-ID")
	if personID == "" {
		writeJSON(w, http.StatusUnauthorized, errorBody("missing identity"))
		return "", false
	}
	return personID, true
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) (string, bool) {
	personID, ok := h.identity(w, r)
	if !ok {
		return "", false
	}
	if r.Header.Get("X-Role") != string(engine.RoleAdmin) {
		writeJSON(w, http.StatusForbidden, errorBody("admin role required"))
		return "", false
	}
	return personID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case engine.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case engine.IsConflict(err):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
