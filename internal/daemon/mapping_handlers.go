package daemon

import (
	"encoding/json"
	"net/http"

	"padsynth/internal/api"
	"padsynth/internal/mapping"
)

func (s *apiServer) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	snap := s.ctrl.Snapshot()
	s.writeJSON(w, http.StatusOK, api.ConfigResponse{Config: snap.Config, State: snap.State})
}

func (s *apiServer) handleReplaceConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := mapping.DecodeJSON(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	applied, err := s.ctrl.Replace(cfg)
	if err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ConfigResponse{Config: applied})
}

func (s *apiServer) handleReloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.ctrl.Reload()
	if err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ConfigResponse{Config: cfg})
}

func (s *apiServer) handleSetKeyNote(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var note string
	raw, ok := fields["note"]
	if !ok || json.Unmarshal(raw, &note) != nil {
		s.writeError(w, http.StatusBadRequest, "note must be a string")
		return
	}
	if _, err := s.ctrl.SetKeyNote(r.PathValue("id"), note); err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (s *apiServer) handleUpdateEncoder(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.ctrl.UpdateEncoder(r.PathValue("name"), fields); err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (s *apiServer) handleUpdateSynth(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeFields(w, r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.ctrl.UpdateSynth(fields); err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.OKResponse{OK: true})
}

func (s *apiServer) handleTestNote(w http.ResponseWriter, r *http.Request) {
	preview, err := s.ctrl.TestKey(r.PathValue("id"))
	if err != nil {
		s.writeMutationError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PreviewResponse{
		ID:        preview.ID,
		Note:      preview.Note,
		Frequency: preview.Frequency,
	})
}

func (s *apiServer) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}
