package models

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	"github.com/cmsp-lab/lab-orders-api/apperrors"
)

// Status is the processing state of an order, persisted as 0/1/2 in the stato column.
type Status int

const (
	StatusNew        Status = 0
	StatusInProgress Status = 1
	StatusShipped    Status = 2
)

// MsgStatusNotValid is returned when an order cannot move forward.
const MsgStatusNotValid = "status not valid, contact an administrator"

// Forward returns the state that follows s on the forward path.
// Shipped is terminal and yields an InvalidState error.
func (s Status) Forward() (Status, error) {
	switch s {
	case StatusNew:
		return StatusInProgress, nil
	case StatusInProgress:
		return StatusShipped, nil
	default:
		return s, apperrors.InvalidState(MsgStatusNotValid)
	}
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	return s >= StatusNew && s <= StatusShipped
}

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusInProgress:
		return "in_progress"
	case StatusShipped:
		return "shipped"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ParseStatus accepts the names returned by String and the numeric encoding.
func ParseStatus(v string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "new", "0":
		return StatusNew, nil
	case "in_progress", "1":
		return StatusInProgress, nil
	case "shipped", "2":
		return StatusShipped, nil
	}
	return 0, apperrors.Validation(fmt.Sprintf("unknown status %q", v))
}

// Value stores the status as its integer code.
func (s Status) Value() (driver.Value, error) {
	return int64(s), nil
}

func (s *Status) Scan(src interface{}) error {
	switch v := src.(type) {
	case int64:
		*s = Status(v)
	case []byte:
		n, err := strconv.Atoi(string(v))
		if err != nil {
			return fmt.Errorf("invalid status %q: %w", v, err)
		}
		*s = Status(n)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid status %q: %w", v, err)
		}
		*s = Status(n)
	default:
		return fmt.Errorf("unsupported status type %T", src)
	}
	return nil
}
