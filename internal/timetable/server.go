package timetable

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kelo-robotics/fmlib/internal/eventbus"
	"github.com/kelo-robotics/fmlib/pkg/cerr"
)

// Publisher is the event fan-out notified when a timetable changes.
type Publisher interface {
	PublishNew(eventType, resourceID string, payload map[string]any)
}

// Server exposes per-robot timetables over HTTP/JSON. Saves replace the
// whole dispatchable graph; there is no partial edge update.
type Server struct {
	repo      Repository
	publisher Publisher
}

func NewServer(repo Repository, publisher Publisher) *Server {
	return &Server{repo: repo, publisher: publisher}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/timetables", func(r chi.Router) {
		r.Get("/", s.list)
		r.Route("/{robotID}", func(r chi.Router) {
			r.Get("/", s.get)
			r.Put("/", s.save)
			r.Delete("/", s.delete)
			r.Get("/archive", s.getArchived)
			r.Post("/archive", s.archive)
			r.Get("/tasks", s.tasks)
			r.Get("/time", s.nodeTime)
		})
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := s.repo.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"timetables": all})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.repo.Get(ctx, chi.URLParam(r, "robotID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) getArchived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.repo.GetArchived(ctx, chi.URLParam(r, "robotID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	robotID := chi.URLParam(r, "robotID")
	var body struct {
		ZTP   time.Time         `json:"ztp"`
		Graph DispatchableGraph `json:"dispatchable_graph"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	t := New(robotID, body.ZTP, body.Graph)
	if err := s.repo.Save(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.publisher.PublishNew(eventbus.TypeTimetableUpdate, robotID, map[string]any{
		"ztp":   t.ZTP,
		"tasks": t.TaskIDs(),
	})
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	robotID := chi.URLParam(r, "robotID")
	if err := s.repo.Delete(ctx, robotID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"robot_id": robotID})
}

func (s *Server) archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	robotID := chi.URLParam(r, "robotID")
	t, err := s.repo.Get(ctx, robotID)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			if archived, archErr := s.repo.GetArchived(ctx, robotID); archErr == nil {
				cerr.SetJSONResponse(ctx, archived)
				return
			}
		}
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Archive(ctx, t); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, t)
}

func (s *Server) tasks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t, err := s.repo.Get(ctx, chi.URLParam(r, "robotID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"tasks": t.TaskIDs()})
}

// nodeTime resolves a single node's time from the dispatchable graph. A
// task/node pair absent from the graph yields scheduled=false, not an
// error.
func (s *Server) nodeTime(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	taskID := q.Get("task")
	nodeType := q.Get("node")
	if taskID == "" || nodeType == "" {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "task and node query parameters are required", nil)
		return
	}
	switch nodeType {
	case NodeDeparture, NodeStart, NodeFinish:
	default:
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "unknown node type", nil)
		return
	}
	lowerBound := q.Get("bound") != "upper"

	t, err := s.repo.Get(ctx, chi.URLParam(r, "robotID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	at, ok := t.GetTime(taskID, nodeType, lowerBound)
	resp := map[string]any{"scheduled": ok}
	if ok {
		resp["time"] = at
	}
	cerr.SetJSONResponse(ctx, resp)
}
