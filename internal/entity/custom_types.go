package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

const timeSlotLayout = "15:04"

// TimeSlot is a sub-capacity window within an event. Slots are keyed by
// their exact formatted (start, end) pair; callers must supply bounds in
// the "15:04" layout used at event creation time.
type TimeSlot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Total     int    `json:"slots"`
	Available int    `json:"available"`
}

func (s *TimeSlot) HasCapacity() bool {
	return s.Available > 0
}

// Reserve takes one unit of capacity. Calling Reserve on a full slot is a
// contract violation: callers must check HasCapacity first.
func (s *TimeSlot) Reserve() error {
	if s.Available <= 0 {
		return fmt.Errorf("reserve on full slot %s-%s: %w", s.Start, s.End, ErrSlotFull)
	}
	s.Available--
	return nil
}

// Release returns one unit of capacity, clamped at the slot total.
func (s *TimeSlot) Release() {
	if s.Available < s.Total {
		s.Available++
	}
}

func (s *TimeSlot) validate() error {
	for _, bound := range []string{s.Start, s.End} {
		if _, err := time.Parse(timeSlotLayout, bound); err != nil {
			return fmt.Errorf("slot bound %q: must be in %s format", bound, timeSlotLayout)
		}
	}
	if s.Start >= s.End {
		return fmt.Errorf("slot %s-%s: start must be before end", s.Start, s.End)
	}
	if s.Total < 1 {
		return fmt.Errorf("slot %s-%s: total must be positive", s.Start, s.End)
	}
	if s.Available < 0 || s.Available > s.Total {
		return fmt.Errorf("slot %s-%s: available %d out of range [0, %d]", s.Start, s.End, s.Available, s.Total)
	}
	return nil
}

// TimeSlotList is the ordered slot collection owned by an event. It is
// persisted as a single JSON column and always written as a unit.
type TimeSlotList []TimeSlot

// Find returns the slot matching the exact (start, end) pair, or nil.
func (l TimeSlotList) Find(start, end string) *TimeSlot {
	for i := range l {
		if l[i].Start == start && l[i].End == end {
			return &l[i]
		}
	}
	return nil
}

// Validate checks every slot's capacity invariant and bound format, and
// rejects duplicate (start, end) pairs.
func (l TimeSlotList) Validate() error {
	seen := make(map[string]struct{}, len(l))
	for i := range l {
		if err := l[i].validate(); err != nil {
			return err
		}
		key := l[i].Start + "-" + l[i].End
		if _, ok := seen[key]; ok {
			return fmt.Errorf("duplicate slot %s", key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func (l TimeSlotList) Value() (driver.Value, error) {
	if len(l) == 0 {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *TimeSlotList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan type %T into TimeSlotList", value)
	}
}
