package web

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/camera"
)

// 1x1 transparent GIF served when no image is available yet, so the UI
// never shows a broken image icon.
var placeholderGIF = []byte(
	"GIF89a\x01\x00\x01\x00\x80\x00\x00\x00\x00\x00\xff\xff\xff!" +
		"\xf9\x04\x01\x00\x00\x00\x00,\x00\x00\x00\x00\x01\x00\x01\x00" +
		"\x00\x02\x02D\x01\x00;")

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}

func (s *Server) handleLatestJPEG(w http.ResponseWriter, r *http.Request) {
	noCache(w)

	path := s.deps.Photos.LatestPath()
	ext := strings.ToLower(filepath.Ext(path))
	if path != "" && (ext == ".jpg" || ext == ".jpeg") {
		http.ServeFile(w, r, path)
		return
	}

	w.Header().Set("Content-Type", "image/gif")
	_, _ = w.Write(placeholderGIF)
}

func (s *Server) handleLatestInfo(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	// Mirror the latest camera shot into the photo root first, so shots
	// taken on the camera body show up as "latest" too.
	s.deps.Mirror.PullLatest(r.Context())

	path := s.deps.Photos.LatestPath()
	if path == "" {
		writeJSON(w, http.StatusOK, map[string]interface{}{})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": filepath.Base(path)})
}

func (s *Server) handleLiveFrame(w http.ResponseWriter, r *http.Request) {
	data, err := s.deps.Session.PreviewFrame(r.Context())
	if err != nil {
		if errors.Is(err, camera.ErrHoldActive) {
			writeError(w, http.StatusConflict,
				"liveview hold is running; stop it before requesting single preview frames")
			return
		}
		log.Error().Err(err).Msg("Preview frame failed")
		writeError(w, http.StatusInternalServerError, "live preview failed")
		return
	}
	noCache(w)
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(data)
}

// handleLiveStream serves an MJPEG multipart stream from the movie
// subprocess. The stream runs until the client disconnects, the
// subprocess exits, or someone calls /api/live_stream/stop.
func (s *Server) handleLiveStream(w http.ResponseWriter, r *http.Request) {
	if s.deps.Supervisor.HoldRunning() {
		writeError(w, http.StatusConflict,
			"liveview hold is running; stop it before streaming")
		return
	}

	stream, err := s.deps.Supervisor.StartMovie()
	if err != nil {
		if errors.Is(err, camera.ErrStreamActive) {
			writeError(w, http.StatusConflict, "movie stream already active")
			return
		}
		log.Error().Err(err).Msg("Failed to start movie stream")
		writeError(w, http.StatusInternalServerError, "could not start movie stream")
		return
	}
	defer s.deps.Supervisor.StopMovie()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.WriteHeader(http.StatusOK)

	frames := camera.NewFrameReader(stream)
	for {
		select {
		case <-r.Context().Done():
			return
		default:
		}

		frame, err := frames.Next()
		if err != nil {
			// Source closed: process exited or was stopped. A trailing
			// partial frame was already discarded by the demuxer.
			return
		}

		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}
