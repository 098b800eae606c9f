package task

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kelo-robotics/fmlib/internal/action"
	"github.com/kelo-robotics/fmlib/internal/environment"
	"github.com/kelo-robotics/fmlib/internal/request"
	"github.com/kelo-robotics/fmlib/pkg/cerr"
)

// Server exposes the task lifecycle over HTTP/JSON.
type Server struct {
	service  *Service
	requests request.Repository
}

func NewServer(service *Service, requests request.Repository) *Server {
	return &Server{service: service, requests: requests}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/tasks", func(r chi.Router) {
		r.Post("/", s.create)
		r.Get("/", s.list)
		r.Get("/archive", s.listArchived)
		r.Get("/earliest", s.earliest)
		r.Route("/{taskID}", func(r chi.Router) {
			r.Get("/", s.get)
			r.Get("/status", s.getStatus)
			r.Get("/parents", s.parents)
			r.Get("/times", s.times)
			r.Post("/assign", s.assign)
			r.Post("/unassign", s.unassign)
			r.Put("/plan", s.updatePlan)
			r.Put("/schedule", s.schedule)
			r.Put("/constraints/start", s.updateStartConstraint)
			r.Put("/constraints/work-time", s.updateWorkTime)
			r.Put("/constraints/travel-time", s.updateTravelTime)
			r.Put("/constraints/alternative-start", s.updateAlternativeStart)
			r.Put("/status", s.updateStatus)
			r.Put("/recovery", s.setRecovery)
			r.Post("/pause", s.pause)
			r.Post("/resume", s.resume)
			r.Post("/progress", s.progress)
			r.Post("/requests", s.deriveRequest)
		})
	})
}

func taskID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		return uuid.Nil, cerr.NewError(cerr.InvalidArgument, "invalid task id", err)
	}
	return id, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "invalid request body", err)
	}
	return nil
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body struct {
		RequestID uuid.UUID `json:"request_id"`
	}
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	req, err := s.requests.Get(ctx, body.RequestID)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if !req.Valid {
		cerr.SetNewJSONError(ctx, cerr.FailedPrecondition, "request is invalid", nil)
		return
	}
	t, err := s.service.Create(ctx, req)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func filterFromQuery(r *http.Request) (Filter, error) {
	var f Filter
	q := r.URL.Query()
	f.Robots = q["robot"]
	for _, raw := range q["status"] {
		var st Status
		if err := json.Unmarshal([]byte(raw), &st); err != nil || !st.Valid() {
			return f, cerr.NewError(cerr.InvalidArgument, "invalid status filter", err)
		}
		f.Status = append(f.Status, st)
	}
	if v := q.Get("request"); v != "" {
		rid, err := uuid.Parse(v)
		if err != nil {
			return f, cerr.NewError(cerr.InvalidArgument, "invalid request filter", err)
		}
		f.RequestID = &rid
	}
	if v := q.Get("recurrent"); v != "" {
		b := v == "true"
		f.Recurrent = &b
	}
	if v := q.Get("repetitive"); v != "" {
		b := v == "true"
		f.Repetitive = &b
	}
	return f, nil
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := filterFromQuery(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := s.service.List(ctx, f)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"tasks": tasks})
}

func (s *Server) listArchived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f, err := filterFromQuery(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	tasks, err := s.service.ListArchived(ctx, f)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"tasks": tasks})
}

func (s *Server) earliest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.service.Earliest(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if t == nil {
		cerr.SetNewJSONError(ctx, cerr.NotFound, "no task with a start constraint", nil)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.Get(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.Get(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t.Status)
}

func (s *Server) parents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	chain, err := s.service.ParentChain(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"tasks": chain})
}

type timesResponse struct {
	DepartureTime *time.Time `json:"departure_time,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	FinishTime    *time.Time `json:"finish_time,omitempty"`
}

func (s *Server) times(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var resp timesResponse
	if at, ok, err := s.service.DepartureTime(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	} else if ok {
		resp.DepartureTime = &at
	}
	if at, ok, err := s.service.StartTime(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	} else if ok {
		resp.StartTime = &at
	}
	if at, ok, err := s.service.FinishTime(ctx, id); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	} else if ok {
		resp.FinishTime = &at
	}
	cerr.SetJSONResponse(ctx, resp)
}

func (s *Server) assign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body struct {
		Robots []string `json:"robots"`
	}
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.AssignRobots(ctx, id, body.Robots)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) unassign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.UnassignRobots(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) updatePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body struct {
		Actions []*action.Action `json:"actions"`
	}
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.UpdatePlan(ctx, id, body.Actions)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body struct {
		DepartureTime time.Time `json:"departure_time"`
		StartTime     time.Time `json:"start_time"`
		FinishTime    time.Time `json:"finish_time"`
	}
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.Schedule(ctx, id, body.DepartureTime, body.StartTime, body.FinishTime)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

type windowBody struct {
	EarliestTime time.Time `json:"earliest_time"`
	LatestTime   time.Time `json:"latest_time"`
}

type estimateBody struct {
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

func (s *Server) updateStartConstraint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body windowBody
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.UpdateStartConstraint(ctx, id, body.EarliestTime, body.LatestTime)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) updateWorkTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body estimateBody
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.UpdateWorkTime(ctx, id, body.Mean, body.Variance)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) updateTravelTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body estimateBody
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.UpdateTravelTime(ctx, id, body.Mean, body.Variance)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) updateAlternativeStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body windowBody
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.UpdateAlternativeStartTime(ctx, id, body.EarliestTime, body.LatestTime)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body struct {
		Status Status `json:"status"`
	}
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.UpdateStatus(ctx, id, body.Status)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) setRecovery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body struct {
		Method RecoveryMethod `json:"method"`
	}
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.SetRecoveryMethod(ctx, id, body.Method)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) pause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.Pause(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) resume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.Resume(ctx, id)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) deriveRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body struct {
		Kind request.Kind `json:"kind"`
	}
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	req, err := s.service.DeriveRequest(ctx, id, body.Kind)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, req)
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := taskID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	var body struct {
		ActionID   uuid.UUID             `json:"action_id"`
		Status     action.Status         `json:"status"`
		Pose       *environment.Position `json:"pose,omitempty"`
		StartTime  *time.Time            `json:"start_time,omitempty"`
		FinishTime *time.Time            `json:"finish_time,omitempty"`
	}
	if err := decode(r, &body); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	t, err := s.service.UpdateProgress(ctx, id, ProgressUpdate{
		ActionID:     body.ActionID,
		ActionStatus: body.Status,
		Pose:         body.Pose,
		StartTime:    body.StartTime,
		FinishTime:   body.FinishTime,
	})
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}
