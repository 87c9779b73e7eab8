package models

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UUIDArray maps a Postgres uuid[] column onto []uuid.UUID for sqlx scans.
type UUIDArray []uuid.UUID

// Value implements driver.Valuer.
func (a UUIDArray) Value() (driver.Value, error) {
	strs := make([]string, len(a))
	for i, id := range a {
		strs[i] = id.String()
	}
	return pq.StringArray(strs).Value()
}

// Scan implements sql.Scanner.
func (a *UUIDArray) Scan(src interface{}) error {
	var strs pq.StringArray
	if err := strs.Scan(src); err != nil {
		return fmt.Errorf("scan uuid array: %w", err)
	}
	out := make(UUIDArray, 0, len(strs))
	for _, s := range strs {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("scan uuid array element %q: %w", s, err)
		}
		out = append(out, id)
	}
	*a = out
	return nil
}

// Contains reports whether id is already present.
func (a UUIDArray) Contains(id uuid.UUID) bool {
	for _, v := range a {
		if v == id {
			return true
		}
	}
	return false
}
