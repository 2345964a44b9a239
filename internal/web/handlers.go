package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/camera"
)

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	res := s.deps.Session.Capture(r.Context())
	if res.Status != "OK" {
		writeJSON(w, http.StatusInternalServerError, res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Session.Status(r.Context()))
}

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Session.DetectCameras(r.Context()))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Monitor.Last())
}

// ---- Live view hold ----

func (s *Server) handleLiveStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		WaitSeconds int `json:"wait_seconds"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.WaitSeconds == 0 {
		req.WaitSeconds = s.deps.Supervisor.HoldStatus().WaitSeconds
	}

	if err := s.deps.Supervisor.StartHold(req.WaitSeconds); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	st := s.deps.Supervisor.HoldStatus()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "OK",
		"running":      true,
		"wait_seconds": st.WaitSeconds,
	})
}

func (s *Server) handleLiveStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.deps.Supervisor.StopHold()
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "OK", "running": false})
}

func (s *Server) handleLiveStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Supervisor.HoldStatus())
}

func (s *Server) handleLiveStreamStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.deps.Supervisor.MovieRunning() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no stream"})
		return
	}
	s.deps.Supervisor.StopMovie()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// ---- Import job ----

func (s *Server) handleImportStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Mode    string `json:"mode"`
		Session *bool  `json:"session"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	mode := camera.ImportNew
	if strings.EqualFold(req.Mode, string(camera.ImportAll)) {
		mode = camera.ImportAll
	}
	useSession := true
	if req.Session != nil {
		useSession = *req.Session
	}

	if err := s.deps.Importer.Start(mode, useSession); err != nil {
		if errors.Is(err, camera.ErrJobRunning) {
			writeError(w, http.StatusConflict, "import already running")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	st := s.deps.Importer.Status()
	st.LatestFile = s.deps.Photos.LatestName()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleImportStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.deps.Importer.Stop() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no import running"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
}

// ---- Intervalometer ----

func (s *Server) handleIntervalStart(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Interval float64 `json:"interval"`
		Count    int     `json:"count"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.Interval < 0 || req.Count <= 0 {
		writeError(w, http.StatusBadRequest, "invalid interval or count")
		return
	}

	interval := time.Duration(req.Interval * float64(time.Second))
	if err := s.deps.Interval.Start(interval, req.Count); err != nil {
		if errors.Is(err, camera.ErrJobRunning) {
			writeError(w, http.StatusConflict, "interval already running")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleIntervalStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	s.deps.Interval.Stop()
	writeJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

func (s *Server) handleIntervalStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Interval.Status())
}

// ---- Camera settings ----

func (s *Server) handleQuickConfig(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Session.QuickSettings(r.Context(), false))
}

func (s *Server) handleQuickConfigForce(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Session.QuickSettings(r.Context(), true))
}

func (s *Server) handleConfigSet(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	req.Key = strings.TrimSpace(req.Key)
	req.Value = strings.TrimSpace(req.Value)
	if req.Key == "" || req.Value == "" {
		writeError(w, http.StatusBadRequest, "missing key or value")
		return
	}

	key, current, err := s.deps.Session.SetSetting(r.Context(), req.Key, req.Value)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "OK",
		"key":    key,
		"value":  current,
	})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Session.Presets())
}

func (s *Server) handlePresetsApply(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	applied, failed, err := s.deps.Session.ApplyPreset(r.Context(), strings.TrimSpace(req.Name))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "OK",
		"name":    req.Name,
		"applied": applied,
		"failed":  failed,
	})
}

// ---- Card mirror ----

func (s *Server) handleMirrorConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": s.deps.Mirror.Enabled()})
	case http.MethodPost:
		var req struct {
			Enabled bool `json:"enabled"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if err := s.deps.Mirror.SetEnabled(req.Enabled); err != nil {
			writeError(w, http.StatusInternalServerError, "could not write mirror config")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "OK", "enabled": req.Enabled})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// ---- History ----

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := s.deps.History.Recent(limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read history")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// ---- Gallery ----

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Photos.List())
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/file/")
	path, err := s.deps.Photos.SafePath(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleBulkDelete(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Names []string `json:"names"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if len(req.Names) == 0 {
		writeError(w, http.StatusBadRequest, "no files given")
		return
	}
	deleted, err := s.deps.Photos.BulkDelete(req.Names)
	resp := map[string]interface{}{"status": "OK", "deleted": deleted}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBulkMove(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Names  []string `json:"names"`
		Folder string   `json:"folder"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if len(req.Names) == 0 || req.Folder == "" {
		writeError(w, http.StatusBadRequest, "missing files or folder")
		return
	}
	moved, err := s.deps.Photos.BulkMove(req.Names, req.Folder)
	if err != nil && moved == 0 {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := map[string]interface{}{"status": "OK", "moved": moved}
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
