// backend/src/storage/report_store.go
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/username/bankimport/src/models"
	"github.com/username/bankimport/src/parsers"
)

const (
	csvExt = ".csv"
	ofxExt = ".ofx"

	csvProcessed = "_processed.csv"
	ofxProcessed = "_processed.ofx"
)

// ErrReportNotFound is returned when a report id does not resolve to a
// readable file anymore, e.g. because a concurrent run already renamed it.
var ErrReportNotFound = errors.New("report file not found")

// Store keeps statement reports as plain files in a single directory.
// The file name suffix is the only processing state there is: a report is
// unprocessed until its extension is swapped for the processed marker,
// and that rename is the commit point of a processing run.
type Store struct {
	dir       string
	csvParser parsers.Parser
	ofxParser parsers.Parser
}

func NewStore(dir string, csvParser, ofxParser parsers.Parser) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("report store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("report store: %s is not a directory", dir)
	}
	return &Store{dir: dir, csvParser: csvParser, ofxParser: ofxParser}, nil
}

// FindAll lists every report in the directory, processed or not, sorted by name.
func (s *Store) FindAll() ([]models.ReportID, error) {
	return s.list(func(name string) bool {
		return strings.HasSuffix(name, csvExt) || strings.HasSuffix(name, ofxExt)
	})
}

// FindUnprocessed lists the reports still waiting for processing, sorted by name.
func (s *Store) FindUnprocessed() ([]models.ReportID, error) {
	return s.list(func(name string) bool {
		return (strings.HasSuffix(name, csvExt) && !strings.HasSuffix(name, csvProcessed)) ||
			(strings.HasSuffix(name, ofxExt) && !strings.HasSuffix(name, ofxProcessed))
	})
}

func (s *Store) list(match func(lowerName string) bool) ([]models.ReportID, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("report store: %w", err)
	}

	var ids []models.ReportID
	for _, entry := range entries {
		if entry.IsDir() || !match(strings.ToLower(entry.Name())) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("report store: %s: %w", entry.Name(), err)
		}
		ids = append(ids, models.ReportID{Name: entry.Name(), CreatedAt: info.ModTime()})
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Name < ids[j].Name })
	return ids, nil
}

// Find loads a report and parses its operations. Parsing happens on every
// call; operations are never cached across calls.
func (s *Store) Find(id models.ReportID) (*models.Report, error) {
	parser, err := s.parserFor(id.Name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.dir, id.Name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrReportNotFound, id.Name)
		}
		return nil, fmt.Errorf("report store: open %s: %w", id.Name, err)
	}
	defer file.Close()

	operations, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("report %s: %w", id.Name, err)
	}
	return &models.Report{ID: id, Operations: operations}, nil
}

// MarkProcessed renames the report file to its processed counterpart.
// The link-then-remove sequence makes the transition atomic: when two
// runs race on the same file, only one link call can succeed, and losing
// the race never overwrites an earlier processed artifact.
func (s *Store) MarkProcessed(id models.ReportID) error {
	source := filepath.Join(s.dir, id.Name)
	target := filepath.Join(s.dir, processedName(id.Name))

	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrReportNotFound, id.Name)
		}
		return fmt.Errorf("report store: %s: %w", id.Name, err)
	}

	if err := os.Link(source, target); err != nil {
		return fmt.Errorf("report store: mark %s processed: %w", id.Name, err)
	}
	if err := os.Remove(source); err != nil {
		return fmt.Errorf("report store: remove %s after rename: %w", id.Name, err)
	}
	return nil
}

// Save stores new report content under the given name and returns its
// identity. Names with unknown extensions, names that already look
// processed, and names whose file (or processed counterpart) already
// exists are all rejected.
func (s *Store) Save(name string, content io.Reader) (models.ReportID, error) {
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, csvExt) && !strings.HasSuffix(lower, ofxExt) {
		return models.ReportID{}, fmt.Errorf("report store: invalid report name %q", name)
	}
	if strings.HasSuffix(lower, csvProcessed) || strings.HasSuffix(lower, ofxProcessed) {
		return models.ReportID{}, fmt.Errorf("report store: saving already processed reports is not allowed: %q", name)
	}
	// A processed counterpart in either format blocks the save: the same
	// statement may have been imported as the other export earlier.
	base := strings.TrimSuffix(name, filepath.Ext(name))
	for _, processed := range []string{base + csvProcessed, base + ofxProcessed} {
		if _, err := os.Stat(filepath.Join(s.dir, processed)); err == nil {
			return models.ReportID{}, fmt.Errorf("report store: report %q was already processed earlier", name)
		}
	}

	file, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return models.ReportID{}, fmt.Errorf("report store: report file %q already exists", name)
		}
		return models.ReportID{}, fmt.Errorf("report store: save %s: %w", name, err)
	}
	defer file.Close()

	if _, err := io.Copy(file, content); err != nil {
		return models.ReportID{}, fmt.Errorf("report store: save %s: %w", name, err)
	}

	info, err := file.Stat()
	if err != nil {
		return models.ReportID{}, fmt.Errorf("report store: save %s: %w", name, err)
	}
	return models.ReportID{Name: name, CreatedAt: info.ModTime()}, nil
}

func (s *Store) parserFor(name string) (parsers.Parser, error) {
	switch {
	case strings.HasSuffix(strings.ToLower(name), csvExt):
		return s.csvParser, nil
	case strings.HasSuffix(strings.ToLower(name), ofxExt):
		return s.ofxParser, nil
	default:
		return nil, fmt.Errorf("report store: unknown report format: %q", name)
	}
}

func processedName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if strings.HasSuffix(strings.ToLower(name), csvExt) {
		return base + csvProcessed
	}
	return base + ofxProcessed
}
