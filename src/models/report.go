package models

import (
	"fmt"
	"time"
)

// ReportID identifies one statement file. CreatedAt is the file instant
// observed in the store, so a file recreated under the same name gets a
// new identity and is never confused with its predecessor.
type ReportID struct {
	Name      string
	CreatedAt time.Time
}

func (id ReportID) String() string {
	return fmt.Sprintf("%s@%s", id.Name, id.CreatedAt.Format(time.RFC3339))
}

// Report is a statement file with its operations in file order. The
// operation slice is rebuilt from the file on every load and is never
// cached between processing runs.
type Report struct {
	ID         ReportID
	Operations []Operation
}
