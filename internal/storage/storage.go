// Package storage persists small client-side JSON documents (the session
// and the dashboard filter) under the ttr data directory.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Tiliavir/ttr/internal/timecalc"
)

const filterFile = "filter.json"

// BaseDir returns the root data directory (~/.ttr).
func BaseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".ttr"), nil
}

// ReadJSON decodes the file at path into v. It reports false without error
// when the file does not exist. A file that is not valid JSON is moved
// aside to <path>.corrupt.
func ReadJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage error reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		backupPath := path + ".corrupt"
		_ = os.Rename(path, backupPath)
		return false, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", path, backupPath, err)
	}
	return true, nil
}

// WriteJSON atomically writes v to path with owner-only permissions.
func WriteJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}

	// Atomic write: write to temp file then rename.
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

// Remove deletes the file at path. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage error removing %s: %w", path, err)
	}
	return nil
}

// Filter is the persisted records filter.
type Filter struct {
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	SearchText string    `json:"searchText"`
}

// Preset names accepted by PresetFilter.
const (
	PresetToday = "today"
	PresetWeek  = "week"
	PresetMonth = "month"
)

// PresetFilter returns the date range of a named preset around now. Weeks
// start on Monday.
func PresetFilter(name string, now time.Time) (Filter, error) {
	var from, to time.Time
	switch strings.ToLower(name) {
	case PresetToday:
		from, to = timecalc.DayRange(now)
	case PresetWeek:
		from, to = timecalc.WeekRange(now)
	case PresetMonth:
		from, to = timecalc.MonthRange(now)
	default:
		return Filter{}, fmt.Errorf("unknown preset %q (want today, week or month)", name)
	}
	return Filter{StartDate: from, EndDate: to}, nil
}

// LoadFilter reads the filter saved in base. Without a saved filter the
// current month is returned.
func LoadFilter(base string, now time.Time) (Filter, error) {
	var f Filter
	found, err := ReadJSON(filepath.Join(base, filterFile), &f)
	if err != nil || !found || f.StartDate.IsZero() || f.EndDate.IsZero() {
		def, _ := PresetFilter(PresetMonth, now)
		if found || err != nil {
			def.SearchText = f.SearchText
		}
		return def, err
	}
	return Filter{
		StartDate:  f.StartDate.In(now.Location()),
		EndDate:    f.EndDate.In(now.Location()),
		SearchText: f.SearchText,
	}, nil
}

// SaveFilter stores f in base.
func SaveFilter(base string, f Filter) error {
	if f.EndDate.Before(f.StartDate) {
		return fmt.Errorf("end date %s is before start date %s", timecalc.DayKey(f.EndDate), timecalc.DayKey(f.StartDate))
	}
	return WriteJSON(filepath.Join(base, filterFile), f)
}
