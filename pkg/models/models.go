package models

import "time"

// CameraStatus is the camera status snapshot returned by /api/status.
// Battery and shooting mode fall back to the last known good value when
// the camera is busy, so the UI does not flicker to empty fields.
type CameraStatus struct {
	Battery        string       `json:"battery"`
	ShootingMode   string       `json:"shooting_mode"`
	LensName       string       `json:"lens_name"`
	ShutterCounter string       `json:"shutter_counter"`
	AvailableShots string       `json:"available_shots"`
	ImagesLeft     int64        `json:"images_left"`
	ImagesCapacity int64        `json:"images_capacity"`
	FreeBytes      int64        `json:"free_bytes"`
	CapacityBytes  int64        `json:"capacity_bytes"`
	Cameras        []CameraInfo `json:"cameras"`
	LatestFile     string       `json:"latest_file"`
}

// CameraInfo is one detected camera.
type CameraInfo struct {
	Model string `json:"model"`
	Port  string `json:"port"`
}

// CaptureResult reports the outcome of one manual capture.
type CaptureResult struct {
	Status string `json:"status"`
	File   string `json:"file,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ImportStatus is the pollable progress snapshot of a card import job.
type ImportStatus struct {
	Running    bool       `json:"running"`
	Mode       string     `json:"mode"`   // "new" or "all"
	Target     string     `json:"target"` // "session" or "root"
	Total      int        `json:"total"`
	Done       int        `json:"done"`
	Imported   int        `json:"imported"`
	Skipped    int        `json:"skipped"`
	Errors     int        `json:"errors"`
	Current    string     `json:"current,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	LatestFile string     `json:"latest_file,omitempty"`
}

// IntervalStatus is the pollable progress snapshot of an intervalometer
// job.
type IntervalStatus struct {
	Running   bool    `json:"running"`
	Interval  float64 `json:"interval"`
	Remaining int     `json:"remaining"`
	Total     int     `json:"total"`
	LastError string  `json:"last_error,omitempty"`
}

// LiveViewStatus reports the live-view hold session state.
type LiveViewStatus struct {
	Running     bool   `json:"running"`
	WaitSeconds int    `json:"wait_seconds"`
	LastError   string `json:"last_error,omitempty"`
}

// GalleryEntry is one photo in the gallery listing.
type GalleryEntry struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// HistoryEvent is one row of the capture/import event journal.
type HistoryEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	OK        bool      `json:"ok"`
	Error     string    `json:"error,omitempty"`
}

// HostMetrics holds host performance data shown next to camera status.
type HostMetrics struct {
	CPUPercent       float64 `json:"cpu_percent"`
	MemoryUsedBytes  uint64  `json:"memory_used_bytes"`
	MemoryTotalBytes uint64  `json:"memory_total_bytes"`
	MemoryPercent    float64 `json:"memory_percent"`
	PhotosFreeBytes  uint64  `json:"photos_free_bytes"`
	PhotosTotalBytes uint64  `json:"photos_total_bytes"`
	PhotosFreeGB     float64 `json:"photos_free_gb"`
}

// PresetChange is one key applied (or refused) while switching presets.
type PresetChange struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
