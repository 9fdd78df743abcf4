package daemon

import (
	"net/http"
	"strconv"

	"padsynth/internal/api"
	"padsynth/internal/history"
	"padsynth/internal/logging"
)

const defaultRevisionLimit = 50

func (s *apiServer) historyStore(w http.ResponseWriter) *history.Store {
	if s.daemon.history == nil {
		s.writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return nil
	}
	return s.daemon.history
}

func (s *apiServer) handleListRevisions(w http.ResponseWriter, r *http.Request) {
	store := s.historyStore(w)
	if store == nil {
		return
	}
	limit := defaultRevisionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	revisions, err := store.ListRevisions(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if revisions == nil {
		revisions = []history.Revision{}
	}
	s.writeJSON(w, http.StatusOK, api.RevisionsResponse{Revisions: revisions})
}

// revision resolves the {id} path value, writing the error response itself.
func (s *apiServer) revision(w http.ResponseWriter, r *http.Request) *history.Revision {
	store := s.historyStore(w)
	if store == nil {
		return nil
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid revision id")
		return nil
	}
	rev, err := store.GetRevision(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil
	}
	if rev == nil {
		s.writeError(w, http.StatusNotFound, "revision not found")
		return nil
	}
	return rev
}

func (s *apiServer) handleGetRevision(w http.ResponseWriter, r *http.Request) {
	rev := s.revision(w, r)
	if rev == nil {
		return
	}
	s.writeJSON(w, http.StatusOK, api.RevisionResponse{Revision: *rev})
}

func (s *apiServer) handleRestoreRevision(w http.ResponseWriter, r *http.Request) {
	rev := s.revision(w, r)
	if rev == nil {
		return
	}
	cfg, err := s.ctrl.Restore([]byte(rev.YAML))
	if err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	s.requestLog(r).Info("mapping revision restored",
		logging.String(logging.FieldEventType, "history_restored"),
		logging.Revision(rev.ID),
	)
	s.writeJSON(w, http.StatusOK, api.ConfigResponse{Config: cfg})
}

func (s *apiServer) handleKeyStats(w http.ResponseWriter, r *http.Request) {
	store := s.historyStore(w)
	if store == nil {
		return
	}
	stats, err := store.KeyStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if stats == nil {
		stats = []history.KeyStat{}
	}
	s.writeJSON(w, http.StatusOK, api.KeyStatsResponse{Keys: stats})
}
