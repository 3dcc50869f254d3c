package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeRecord is a single tracked time entry as exchanged with the backend.
// A record without EndTime is the active (running) record.
type TimeRecord struct {
	ID              string     `json:"id,omitempty"`
	TmpID           string     `json:"tmpId,omitempty"`
	StartTime       time.Time  `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	DurationMinutes *int64     `json:"durationMinutes"`
	Note            string     `json:"note"`
	UserID          string     `json:"userId,omitempty"`
}

// wireRecord mirrors TimeRecord with string timestamps so that empty or
// malformed end times from the server decode as "no end time".
type wireRecord struct {
	ID              string  `json:"id,omitempty"`
	TmpID           string  `json:"tmpId,omitempty"`
	StartTime       string  `json:"startTime"`
	EndTime         *string `json:"endTime"`
	DurationMinutes *int64  `json:"durationMinutes"`
	Note            string  `json:"note"`
	UserID          string  `json:"userId,omitempty"`
}

// UnmarshalJSON parses RFC 3339 timestamps. An unparsable endTime is
// treated as null; an unparsable startTime is an error.
func (r *TimeRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	start, err := ParseTimestamp(w.StartTime)
	if err != nil {
		return fmt.Errorf("record %q: invalid startTime: %w", w.ID, err)
	}
	*r = TimeRecord{
		ID:              w.ID,
		TmpID:           w.TmpID,
		StartTime:       start,
		DurationMinutes: w.DurationMinutes,
		Note:            w.Note,
		UserID:          w.UserID,
	}
	if w.EndTime != nil {
		if end, err := ParseTimestamp(*w.EndTime); err == nil {
			r.EndTime = &end
		}
	}
	return nil
}

// ParseTimestamp accepts RFC 3339 with or without fractional seconds.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Active reports whether the record is still running.
func (r TimeRecord) Active() bool {
	return r.EndTime == nil
}

// Clone returns a deep copy; pointer fields are not shared.
func (r TimeRecord) Clone() TimeRecord {
	c := r
	if r.EndTime != nil {
		end := *r.EndTime
		c.EndTime = &end
	}
	if r.DurationMinutes != nil {
		d := *r.DurationMinutes
		c.DurationMinutes = &d
	}
	return c
}

// WithComputedDuration sets DurationMinutes from start and end, or clears
// it for an active record.
func (r TimeRecord) WithComputedDuration() TimeRecord {
	c := r.Clone()
	if c.EndTime == nil {
		c.DurationMinutes = nil
		return c
	}
	d := int64(c.EndTime.Sub(c.StartTime) / time.Minute)
	c.DurationMinutes = &d
	return c
}

// Method identifies the kind of mutation applied to a record.
type Method string

const (
	MethodPut        Method = "PUT"
	MethodPost       Method = "POST"
	MethodDelete     Method = "DELETE"
	MethodUndoDelete Method = "UNDO_DELETE"
)

// Pending is a mutation that has been requested but not yet confirmed.
type Pending struct {
	Row    TimeRecord
	Method Method
}

// Validate checks the formal correctness of a record's timestamps and
// returns a field name to message map. An empty map means valid.
func Validate(r TimeRecord) map[string]string {
	errs := map[string]string{}
	if r.StartTime.IsZero() {
		errs["startTime"] = "Required"
	}
	if r.EndTime != nil {
		if r.EndTime.IsZero() {
			errs["endTime"] = "Invalid Date"
		} else if !r.StartTime.IsZero() && r.EndTime.Sub(r.StartTime)/time.Minute < 0 {
			errs["endTime"] = "End Time must be after Start Time"
		}
	}
	return errs
}
