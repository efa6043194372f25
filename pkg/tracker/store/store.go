// Package store persists game saves to disk, one JSON file per
// (user, matchup, date).
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c2FmZQ/storage"

	"github.com/phenomenon0/dugout-tracker/pkg/baseball/state"
)

// ErrNotFound is returned when no save exists for the key.
var ErrNotFound = errors.New("save not found")

// SavedGame is the on-disk save payload.
type SavedGame struct {
	User    string          `json:"user"`
	Away    string          `json:"away"`
	Home    string          `json:"home"`
	Date    string          `json:"date"` // yyyy-mm-dd
	State   state.GameState `json:"state"`
	SavedAt time.Time       `json:"savedAt"`
}

// Store persists saves under <dataDir>/saves/<user>/.
type Store struct {
	dataDir string
	storage *storage.Storage
}

// New creates a store rooted at dataDir. Saves are written atomically
// by the underlying storage layer.
func New(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		storage: storage.New(dataDir, nil),
	}
}

// savePath is relative to the storage root.
func savePath(user, away, home string, date time.Time) string {
	name := fmt.Sprintf("%s-%s-%s.json",
		strings.ToLower(away), strings.ToLower(home), date.Format("2006-01-02"))
	return filepath.Join("saves", sanitize(user), name)
}

// sanitize keeps user-supplied names from escaping the saves directory.
func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// Save writes the game state for the key, overwriting any prior save.
func (s *Store) Save(user, away, home string, date time.Time, gs state.GameState) error {
	saved := SavedGame{
		User:    user,
		Away:    away,
		Home:    home,
		Date:    date.Format("2006-01-02"),
		State:   gs,
		SavedAt: time.Now(),
	}

	path := savePath(user, away, home, date)
	if err := s.storage.SaveDataFile(path, &saved); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

// Load reads the save for the key. A missing save returns ErrNotFound.
func (s *Store) Load(user, away, home string, date time.Time) (*SavedGame, error) {
	path := savePath(user, away, home, date)

	var saved SavedGame
	if err := s.storage.ReadDataFile(path, &saved); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ReadDataFile: %w", err)
	}
	return &saved, nil
}

// Exists reports whether a save exists for the key.
func (s *Store) Exists(user, away, home string, date time.Time) (bool, error) {
	_, err := s.Load(user, away, home, date)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
