package parsers

import (
	"io"

	"github.com/username/bankimport/src/models"
)

// Parser converts one statement export into canonical operations,
// preserving file order.
type Parser interface {
	Parse(r io.Reader) ([]models.Operation, error)
}
