package gphoto

import (
	"regexp"
	"strconv"
	"strings"
)

// gphoto2's textual output is effectively an unversioned wire format.
// Every prefix and substring matched on is collected in this file so the
// contract with the CLI stays in one place.

// ConfigValue is the parsed result of a --get-config call.
type ConfigValue struct {
	Value   string   `json:"value"`
	Choices []string `json:"choices"`
}

// FileRef is one entry of a --list-files listing.
type FileRef struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	TS    int64  `json:"ts"` // numeric trailing timestamp, 0 when absent
}

// StorageInfo is the parsed result of --storage-info. Fields the camera
// did not report stay at -1.
type StorageInfo struct {
	FreeImages     int64 `json:"free_images"`
	CapacityImages int64 `json:"capacity_images"`
	FreeBytes      int64 `json:"free_bytes"`
	CapacityBytes  int64 `json:"capacity_bytes"`
}

// Camera is one row of --auto-detect output.
type Camera struct {
	Model string `json:"model"`
	Port  string `json:"port"`
}

// ParseGetConfig extracts the current value and the choice list from
// --get-config output ("Current: ..." / "Choice: N value" lines).
func ParseGetConfig(out string) ConfigValue {
	var cv ConfigValue
	for _, line := range strings.Split(out, "\n") {
		s := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(s, "Current:"):
			cv.Value = strings.TrimSpace(strings.TrimPrefix(s, "Current:"))
		case strings.HasPrefix(s, "Choice:"):
			parts := strings.SplitN(s, " ", 3)
			if len(parts) >= 3 {
				cv.Choices = append(cv.Choices, strings.TrimSpace(parts[2]))
			}
		}
	}
	return cv
}

// ParseFileList extracts file entries from --list-files output. Only lines
// starting with an index marker ("#123 IMG_0001.JPG ...") are file rows.
// The last whitespace token is taken as a timestamp when it is all digits.
func ParseFileList(out string) []FileRef {
	var files []FileRef
	for _, line := range strings.Split(out, "\n") {
		s := strings.TrimSpace(line)
		if !strings.HasPrefix(s, "#") {
			continue
		}
		parts := strings.Fields(s)
		if len(parts) < 3 {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(parts[0], "#"))
		if err != nil {
			continue
		}
		ref := FileRef{Index: idx, Name: parts[1]}
		if ts, err := strconv.ParseInt(parts[len(parts)-1], 10, 64); err == nil {
			ref.TS = ts
		}
		files = append(files, ref)
	}
	return files
}

var digitsRe = regexp.MustCompile(`\d+`)

// ParseStorageInfo extracts image and byte counters from --storage-info.
func ParseStorageInfo(out string) StorageInfo {
	info := StorageInfo{FreeImages: -1, CapacityImages: -1, FreeBytes: -1, CapacityBytes: -1}
	for _, line := range strings.Split(out, "\n") {
		s := strings.ToLower(strings.TrimSpace(line))
		var target *int64
		switch {
		case strings.HasPrefix(s, "free space (images):"):
			target = &info.FreeImages
		case strings.HasPrefix(s, "capacity (images):"):
			target = &info.CapacityImages
		case strings.HasPrefix(s, "free space (bytes):"):
			target = &info.FreeBytes
		case strings.HasPrefix(s, "capacity (bytes):"):
			target = &info.CapacityBytes
		default:
			continue
		}
		_, rest, _ := strings.Cut(s, ":")
		if digits := digitsRe.FindString(rest); digits != "" {
			if v, err := strconv.ParseInt(digits, 10, 64); err == nil {
				*target = v
			}
		}
	}
	return info
}

var columnSplitRe = regexp.MustCompile(`\s{2,}`)

// ParseAutoDetect extracts model/port pairs from --auto-detect output.
// Rows follow a header line starting with "Model" and are split on runs
// of two or more spaces.
func ParseAutoDetect(out string) []Camera {
	var cams []Camera
	seenHeader := false
	for _, line := range strings.Split(out, "\n") {
		s := strings.TrimSpace(line)
		if !seenHeader {
			if strings.HasPrefix(s, "Model") {
				seenHeader = true
			}
			continue
		}
		parts := columnSplitRe.Split(s, -1)
		fields := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				fields = append(fields, p)
			}
		}
		if len(fields) >= 2 {
			cams = append(cams, Camera{Model: fields[0], Port: fields[1]})
		}
	}
	return cams
}

// SavedPath extracts the local path a --get-file / capture call wrote to,
// from "Saving file as <path>" or "Skip existing file <path>" lines.
func SavedPath(out string) string {
	for _, line := range strings.Split(out, "\n") {
		s := strings.TrimSpace(line)
		if _, after, ok := strings.Cut(s, "Saving file as"); ok {
			return strings.TrimSpace(after)
		}
		if _, after, ok := strings.Cut(s, "Skip existing file"); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}

// ReportsExisting reports whether a transfer output says the destination
// file was already present (--skip-existing refused to overwrite it).
func ReportsExisting(out string) bool {
	return strings.Contains(out, "File exists") ||
		strings.Contains(out, "already exists") ||
		strings.Contains(out, "Skip existing file")
}
