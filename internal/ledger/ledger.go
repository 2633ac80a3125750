// Package ledger persists the outcome of every sync attempt so unchanged
// documents can be skipped on later runs.
package ledger

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/klauern/ifcsync/internal/detect"
	"github.com/klauern/ifcsync/internal/logging"
	"github.com/klauern/ifcsync/internal/util"
)

// Version is written into every ledger file.
const Version = "1.0"

//go:embed schema.json
var schemaJSON string

// Record is the outcome of the last attempt for one document.
type Record struct {
	Source   string    `json:"source"`
	Target   string    `json:"target"`
	ModTime  time.Time `json:"mtime"`
	Hash     string    `json:"hash"`
	SyncedAt time.Time `json:"synced_at"`
	Success  bool      `json:"success"`
}

// Entry pairs a record with its document identity.
type Entry struct {
	Key string
	Record
}

// Stats summarizes the ledger.
type Stats struct {
	Total    int
	Success  int
	Failed   int
	LastSync *time.Time
}

// Ledger is the in-memory view of the ledger file. It is rewritten on disk
// after every mutation.
type Ledger struct {
	Version   string            `json:"version"`
	LastSync  *time.Time        `json:"last_sync"`
	LastRunID string            `json:"last_run_id,omitempty"`
	Files     map[string]Record `json:"files"`

	path   string
	now    func() time.Time
	logger *slog.Logger
}

// Open loads the ledger at path. A missing file yields an empty ledger; an
// unreadable, malformed or schema-invalid file is logged and replaced by an
// empty ledger on the next save.
func Open(path string, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = logging.Default()
	}
	l := empty(path, logger)

	// #nosec G304 - path is the configured ledger location
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("ledger unreadable, starting fresh", logging.Path(path), logging.Err(err))
		}
		return l
	}

	if err := validate(data); err != nil {
		logger.Warn("ledger invalid, starting fresh", logging.Path(path), logging.Err(err))
		return l
	}

	var loaded Ledger
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.Warn("ledger corrupted, starting fresh", logging.Path(path), logging.Err(err))
		return l
	}
	if loaded.Version != Version {
		logger.Warn("ledger version mismatch, starting fresh",
			logging.Path(path), slog.String("version", loaded.Version))
		return l
	}

	l.LastSync = loaded.LastSync
	l.LastRunID = loaded.LastRunID
	if loaded.Files != nil {
		l.Files = loaded.Files
	}
	return l
}

func empty(path string, logger *slog.Logger) *Ledger {
	return &Ledger{
		Version: Version,
		Files:   make(map[string]Record),
		path:    path,
		now:     time.Now,
		logger:  logger,
	}
}

// ValidationError lists the schema violations of a ledger file.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "schema validation failed: " + strings.Join(e.Errors, "; ")
}

func validate(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to parse ledger: %w", err)
	}
	if result.Valid() {
		return nil
	}
	ve := &ValidationError{}
	for _, re := range result.Errors() {
		ve.Errors = append(ve.Errors, fmt.Sprintf("%s: %s", re.Field(), re.Description()))
	}
	return ve
}

// SetClock overrides the time source used for synced_at and last_sync.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// SetRunID tags subsequent saves with the given run identifier.
func (l *Ledger) SetRunID(id string) {
	l.LastRunID = id
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Get returns the record for a document identity.
func (l *Ledger) Get(key string) (Record, bool) {
	r, ok := l.Files[key]
	return r, ok
}

// IsCurrent reports whether doc was synced successfully and is unchanged
// since: both modification time and content hash must match. Failed
// attempts are never current so they are retried on the next run.
func (l *Ledger) IsCurrent(doc detect.Document) bool {
	rec, ok := l.Files[doc.RelPath]
	if !ok || !rec.Success {
		return false
	}
	info, err := os.Stat(doc.AbsPath)
	if err != nil {
		return false
	}
	if !info.ModTime().Equal(rec.ModTime) {
		return false
	}
	hash, err := util.FileHash(doc.AbsPath)
	if err != nil {
		return false
	}
	return hash == rec.Hash
}

// RecordOutcome stores the result of an attempt and persists the ledger.
func (l *Ledger) RecordOutcome(doc detect.Document, target string, success bool) error {
	info, err := os.Stat(doc.AbsPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", doc.AbsPath, err)
	}
	hash, err := util.FileHash(doc.AbsPath)
	if err != nil {
		return fmt.Errorf("failed to hash %s: %w", doc.AbsPath, err)
	}

	now := l.now()
	l.Files[doc.RelPath] = Record{
		Source:   doc.AbsPath,
		Target:   target,
		ModTime:  info.ModTime(),
		Hash:     hash,
		SyncedAt: now,
		Success:  success,
	}
	l.LastSync = &now
	return l.Save()
}

// Reset drops every record and persists the empty ledger.
func (l *Ledger) Reset() error {
	l.Files = make(map[string]Record)
	l.LastSync = nil
	return l.Save()
}

// Stats counts records by outcome.
func (l *Ledger) Stats() Stats {
	s := Stats{Total: len(l.Files), LastSync: l.LastSync}
	for _, r := range l.Files {
		if r.Success {
			s.Success++
		} else {
			s.Failed++
		}
	}
	return s
}

// Recent returns up to n entries, most recently synced first. n <= 0
// returns all entries.
func (l *Ledger) Recent(n int) []Entry {
	entries := make([]Entry, 0, len(l.Files))
	for k, r := range l.Files {
		entries = append(entries, Entry{Key: k, Record: r})
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].SyncedAt.Equal(entries[j].SyncedAt) {
			return entries[i].SyncedAt.After(entries[j].SyncedAt)
		}
		return entries[i].Key < entries[j].Key
	})
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Save writes the ledger atomically.
func (l *Ledger) Save() error {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	// #nosec G306 - ledger is meant to be readable by the user
	if err := util.WriteFileAtomic(l.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save ledger: %w", err)
	}
	l.logger.Debug("ledger saved", logging.Path(l.path), logging.Count(len(l.Files)))
	return nil
}
