package request

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kelo-robotics/fmlib/internal/eventbus"
	"github.com/kelo-robotics/fmlib/pkg/cerr"
)

// Publisher is the event fan-out notified when a request is accepted.
type Publisher interface {
	PublishNew(eventType, resourceID string, payload map[string]any)
}

// Server exposes request intake over HTTP/JSON. Submitted envelopes are
// validated against the path planner before they are accepted; envelopes
// that fail validation are stored marked invalid so the rejection can be
// audited.
type Server struct {
	repo      Repository
	planner   PathPlanner
	publisher Publisher
}

func NewServer(repo Repository, planner PathPlanner, publisher Publisher) *Server {
	return &Server{repo: repo, planner: planner, publisher: publisher}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/requests", func(r chi.Router) {
		r.Post("/", s.create)
		r.Get("/", s.list)
		r.Get("/archive", s.listArchived)
		r.Route("/{requestID}", func(r chi.Router) {
			r.Get("/", s.get)
			r.Post("/archive", s.archive)
		})
	})
}

func requestID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "requestID"))
	if err != nil {
		return uuid.Nil, cerr.NewError(cerr.InvalidArgument, "invalid request id", err)
	}
	return id, nil
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "invalid request body", err)
		return
	}
	if req.RequestID == uuid.Nil {
		req.RequestID = uuid.New()
	}
	req.Valid = true

	if err := req.Validate(s.planner, time.Now()); err != nil {
		if !errors.Is(err, ErrInvalidRequest) {
			cerr.SetJSONError(ctx, err)
			return
		}
		req.MarkInvalid()
		if storeErr := s.repo.Create(ctx, &req); storeErr != nil {
			cerr.SetJSONError(ctx, storeErr)
			return
		}
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, err.Error(), err)
		return
	}

	if err := s.repo.Create(ctx, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	s.publisher.PublishNew(eventbus.TypeRequestCreated, req.RequestID.String(), map[string]any{
		"kind": string(req.Kind),
	})
	cerr.SetJSONResponse(ctx, &req)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := s.repo.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"requests": all})
}

func (s *Server) listArchived(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := s.repo.ListArchived(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"requests": all})
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := requestID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		if !cerr.IsCode(err, cerr.NotFound) {
			cerr.SetJSONError(ctx, err)
			return
		}
		req, err = s.repo.GetArchived(ctx, id)
		if err != nil {
			cerr.SetJSONError(ctx, err)
			return
		}
	}
	cerr.SetJSONResponse(ctx, req)
}

func (s *Server) archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := requestID(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	req, err := s.repo.Get(ctx, id)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			// Get either archived the record itself (deprecated format) or
			// it was archived before; both count as done.
			if archived, archErr := s.repo.GetArchived(ctx, id); archErr == nil {
				cerr.SetJSONResponse(ctx, archived)
				return
			}
		}
		cerr.SetJSONError(ctx, err)
		return
	}
	if err := s.repo.Archive(ctx, req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, req)
}
