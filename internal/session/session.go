// Package session drives the interactive merge-and-clean workflow.
//
// A session moves through four stages:
//
//	awaiting_files -> files_loaded -> columns_selected -> cleaned
//
// Uploading files (again) from any stage starts over at files_loaded; Reset
// returns to awaiting_files. All state lives in memory and is discarded when
// the session expires.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/sheetclean/internal/core"
)

// Stage is a step of the workflow.
type Stage string

const (
	StageAwaitingFiles   Stage = "awaiting_files"
	StageFilesLoaded     Stage = "files_loaded"
	StageColumnsSelected Stage = "columns_selected"
	StageCleaned         Stage = "cleaned"
)

func (s Stage) rank() int {
	switch s {
	case StageFilesLoaded:
		return 1
	case StageColumnsSelected:
		return 2
	case StageCleaned:
		return 3
	default:
		return 0
	}
}

// ErrInvalidStage is returned when an operation runs before its prerequisite step.
var ErrInvalidStage = errors.New("invalid session stage")

func stageError(op string, have, need Stage) error {
	return fmt.Errorf("%w: %s needs %s, session is %s", ErrInvalidStage, op, need, have)
}

// File is one uploaded spreadsheet.
type File struct {
	Name string
	Data []byte
}

// Export is a finished workbook ready for download.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Session is one user's workflow state. Fields are guarded by mu; lastSeen
// belongs to the owning Store.
type Session struct {
	id        string
	createdAt time.Time
	lastSeen  time.Time

	mu         sync.Mutex
	stage      Stage
	sources    []string
	warnings   []string
	merged     core.MergedTable
	nameCol    string
	contactCol string
	cleaned    core.CleanedTable
	export     *Export
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

func (s *Session) reset() {
	s.stage = StageAwaitingFiles
	s.sources = nil
	s.warnings = nil
	s.merged = core.MergedTable{}
	s.clearSelection()
}

func (s *Session) clearSelection() {
	s.nameCol = ""
	s.contactCol = ""
	s.clearOutput()
}

func (s *Session) clearOutput() {
	s.cleaned = core.CleanedTable{}
	s.export = nil
}

// Snapshot is a read-only view of a session for rendering.
type Snapshot struct {
	ID            string            `json:"id"`
	Stage         Stage             `json:"stage"`
	Sources       []string          `json:"sources,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	Columns       []string          `json:"columns,omitempty"`
	MergedPreview core.Preview      `json:"merged_preview"`
	NameColumn    string            `json:"name_column,omitempty"`
	ContactColumn string            `json:"contact_column,omitempty"`
	Cleaned       []core.CleanedRow `json:"cleaned_preview,omitempty"`
	Stats         core.CleanStats   `json:"stats"`
	ExportName    string            `json:"export_name,omitempty"`
}

// HasFiles reports whether merged data is available.
func (s Snapshot) HasFiles() bool { return s.Stage.rank() >= StageFilesLoaded.rank() }

// IsCleaned reports whether a download is available.
func (s Snapshot) IsCleaned() bool { return s.Stage == StageCleaned }

// snapshot must be called with s.mu held.
func (s *Session) snapshot(mergedRows, cleanedRows int) Snapshot {
	snap := Snapshot{
		ID:            s.id,
		Stage:         s.stage,
		Sources:       append([]string(nil), s.sources...),
		Warnings:      append([]string(nil), s.warnings...),
		Columns:       append([]string(nil), s.merged.Columns...),
		NameColumn:    s.nameCol,
		ContactColumn: s.contactCol,
	}
	if s.stage.rank() >= StageFilesLoaded.rank() {
		snap.MergedPreview = s.merged.Head(mergedRows)
	}
	if s.stage == StageCleaned {
		snap.Cleaned = s.cleaned.Head(cleanedRows)
		snap.Stats = s.cleaned.Stats()
		if s.export != nil {
			snap.ExportName = s.export.Filename
		}
	}
	return snap
}
