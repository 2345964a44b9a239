package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Store persists the small pieces of state that must survive restarts:
// the import high-water mark, the card-mirror mark and the live-view hold
// default. One YAML file per concern, under the base directory.
//
// Write failures are the caller's problem only insofar as logging goes:
// every operation keeps working with in-memory state when the disk write
// fails.
type Store struct {
	dir string
}

// MirrorMark records the newest camera file already mirrored for preview.
type MirrorMark struct {
	LastIndex int
	LastTS    int64
	Enabled   bool
}

// NewStore returns a state store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) file(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) read(name string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(s.file(name))
	// Missing or corrupt state files fall back to defaults.
	_ = v.ReadInConfig()
	return v
}

func (s *Store) write(name string, set func(v *viper.Viper)) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigFile(s.file(name))
	set(v)
	return v.WriteConfig()
}

// LoadImportMark returns the highest camera file index already imported.
func (s *Store) LoadImportMark() int {
	return s.read("import.yaml").GetInt("last_index")
}

// SaveImportMark persists the import high-water mark.
func (s *Store) SaveImportMark(lastIndex int) error {
	return s.write("import.yaml", func(v *viper.Viper) {
		v.Set("last_index", lastIndex)
	})
}

// LoadMirrorMark returns the card-mirror state. Mirroring defaults to
// enabled when no state file exists yet.
func (s *Store) LoadMirrorMark() MirrorMark {
	v := s.read("mirror.yaml")
	v.SetDefault("enabled", true)
	return MirrorMark{
		LastIndex: v.GetInt("last_index"),
		LastTS:    v.GetInt64("last_ts"),
		Enabled:   v.GetBool("enabled"),
	}
}

// SaveMirrorMark persists the card-mirror state.
func (s *Store) SaveMirrorMark(m MirrorMark) error {
	return s.write("mirror.yaml", func(v *viper.Viper) {
		v.Set("last_index", m.LastIndex)
		v.Set("last_ts", m.LastTS)
		v.Set("enabled", m.Enabled)
	})
}

// LoadHoldWait returns the persisted live-view hold duration default.
func (s *Store) LoadHoldWait(fallback int) int {
	v := s.read("liveview.yaml")
	v.SetDefault("hold_wait", fallback)
	return v.GetInt("hold_wait")
}

// SaveHoldWait persists the live-view hold duration default.
func (s *Store) SaveHoldWait(seconds int) error {
	return s.write("liveview.yaml", func(v *viper.Viper) {
		v.Set("hold_wait", seconds)
	})
}
