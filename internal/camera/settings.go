package camera

import (
	"context"
	"fmt"
	"sort"

	"github.com/Mojo24x7/canon-eos-studio-remote/internal/gphoto"
	"github.com/Mojo24x7/canon-eos-studio-remote/pkg/models"
)

// Status probe keys, multiple fallbacks per field; different bodies
// expose different names.
var (
	batteryKeys = []string{
		"/main/status/batterylevel",
		"/main/status/battery",
		"/main/status/batterystatus",
		"/main/status/batterycharge",
		"/main/status/Battery Level",
	}
	shootingModeKeys = []string{
		"/main/capturesettings/shootingmode",
		"/main/status/capturemode",
		"/main/capturesettings/capturemode",
		"/main/capturesettings/exposuremode",
		"/main/capturesettings/autoexposuremode",
		"/main/status/shootingmode",
	}
	lensKeys = []string{
		"/main/status/lensname",
		"/main/status/lens",
	}
	shutterCounterKeys = []string{
		"/main/status/shuttercounter",
	}
	availableShotsKeys = []string{
		"/main/status/availableshots",
	}
)

// Quick-settings fields shown in the UI, each with its key fallbacks.
var quickKeys = map[string][]string{
	"iso": {
		"/main/imgsettings/iso",
		"/main/capturesettings/iso",
		"/main/imgsettings/sensitivity",
	},
	"ss": {
		"/main/capturesettings/shutterspeed",
	},
	"ap": {
		"/main/capturesettings/aperture",
		"/main/capturesettings/f-number",
	},
	"dm": {
		"/main/capturesettings/drivemode",
	},
	"fm": {
		"/main/capturesettings/focusmode",
	},
	"afm": {
		"/main/capturesettings/afmethod",
		"/main/capturesettings/afmode",
	},
}

// Placeholder values shown when a field is unreadable on this body.
var quickDefaults = map[string]gphoto.ConfigValue{
	"iso": {Value: "Auto", Choices: []string{"Auto"}},
	"ss":  {Value: "Auto", Choices: []string{"Auto"}},
	"ap":  {Value: "Auto", Choices: []string{"Auto"}},
	"dm":  {Value: "Single", Choices: []string{"Single"}},
	"fm":  {Value: "AI Focus", Choices: []string{"AI Focus", "One Shot", "AI Servo"}},
	"afm": {Value: "Auto", Choices: []string{"Auto"}},
}

// Shooting presets applied key by key.
var presets = map[string]map[string]string{
	"Portrait": {
		"/main/imgsettings/iso":           "400",
		"/main/capturesettings/drivemode": "Single",
		"/main/capturesettings/focusmode": "AI Focus",
		"/main/capturesettings/afmethod":  "Auto",
	},
	"Low Light": {
		"/main/imgsettings/iso":           "1600",
		"/main/capturesettings/drivemode": "Single",
		"/main/capturesettings/focusmode": "One Shot",
	},
	"Action": {
		"/main/imgsettings/iso":           "800",
		"/main/capturesettings/drivemode": "Continuous",
		"/main/capturesettings/focusmode": "AI Servo",
	},
	"Studio": {
		"/main/imgsettings/iso":           "100",
		"/main/capturesettings/drivemode": "Single",
		"/main/capturesettings/focusmode": "One Shot",
	},
}

// QuickSettings probes the quick-settings fields, preferring the key that
// worked last time for each field. force drops the remembered keys first,
// useful after switching cameras.
func (s *Session) QuickSettings(ctx context.Context, force bool) map[string]gphoto.ConfigValue {
	if force {
		s.cacheMu.Lock()
		s.quickKey = make(map[string]string)
		s.cacheMu.Unlock()
	}

	result := make(map[string]gphoto.ConfigValue, len(quickKeys))
	for fieldID, keys := range quickKeys {
		tryKeys := keys
		s.cacheMu.Lock()
		if active, ok := s.quickKey[fieldID]; ok {
			tryKeys = append([]string{active}, withoutString(keys, active)...)
		}
		s.cacheMu.Unlock()

		found := false
		for _, key := range tryKeys {
			cv, ok := s.getConfigSafe(ctx, key)
			if !ok {
				continue
			}
			if len(cv.Choices) == 0 && (cv.Value == "" || cv.Value == "N/A") {
				continue
			}
			s.cacheMu.Lock()
			s.quickKey[fieldID] = key
			s.cacheMu.Unlock()
			result[fieldID] = cv
			found = true
			break
		}
		if !found {
			result[fieldID] = quickDefaults[fieldID]
		}
	}
	return result
}

// SetSetting sets a camera config entry. keyOrID may be a full gphoto2
// key or one of the logical quick-setting ids (iso/ss/ap/dm/fm/afm).
// Returns the key actually written and the value read back.
func (s *Session) SetSetting(ctx context.Context, keyOrID, value string) (key, current string, err error) {
	key = keyOrID
	if keys, ok := quickKeys[keyOrID]; ok {
		s.cacheMu.Lock()
		if active, found := s.quickKey[keyOrID]; found {
			key = active
		} else {
			key = keys[0]
		}
		s.cacheMu.Unlock()
	}

	err = s.lock.WithDevice(func() error {
		return s.setValueOrIndex(ctx, key, value)
	})
	if err != nil {
		return key, "", fmt.Errorf("set %s=%s: %w", key, value, err)
	}

	if cv, ok := s.getConfigSafe(ctx, key); ok {
		return key, cv.Value, nil
	}
	return key, value, nil
}

// Presets returns the available preset names, sorted.
func (s *Session) Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset sets every key of a preset, collecting which succeeded and
// which the camera refused. Unknown names return an error.
func (s *Session) ApplyPreset(ctx context.Context, name string) (applied, failed []models.PresetChange, err error) {
	preset, ok := presets[name]
	if !ok {
		return nil, nil, fmt.Errorf("unknown preset %q", name)
	}

	keys := make([]string, 0, len(preset))
	for k := range preset {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := preset[key]
		setErr := s.lock.WithDevice(func() error {
			return s.setValueOrIndex(ctx, key, val)
		})
		change := models.PresetChange{Key: key, Value: val}
		if setErr != nil {
			failed = append(failed, change)
		} else {
			applied = append(applied, change)
		}
	}
	return applied, failed, nil
}

func withoutString(list []string, drop string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
