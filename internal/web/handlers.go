package web

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetclean/internal/core"
	"github.com/JonMunkholm/sheetclean/internal/logging"
	"github.com/JonMunkholm/sheetclean/internal/session"
	"github.com/JonMunkholm/sheetclean/internal/web/templates"
)

// multipartMemory is the part of a multipart form kept in memory; the rest
// spills to temporary files.
const multipartMemory = 32 << 20

// handleIndex renders the workspace for the caller's session.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.currentSession(w, r)
	s.renderPage(w, r, http.StatusOK, templates.View{Snapshot: snap})
}

// handleUpload loads the uploaded files into the session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	snap := s.currentSession(w, r)

	files, err := s.readUploads(w, r)
	if err != nil {
		s.respondError(w, r, snap, err)
		return
	}

	if _, err := s.flow.Load(r.Context(), snap.ID, files); err != nil {
		s.respondError(w, r, snap, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleClean selects the two columns and runs the cleaning step.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	snap := s.currentSession(w, r)

	nameCol := r.FormValue("name_column")
	contactCol := r.FormValue("contact_column")

	if _, err := s.flow.Select(r.Context(), snap.ID, nameCol, contactCol); err != nil {
		s.respondError(w, r, snap, err)
		return
	}
	if _, err := s.flow.Clean(r.Context(), snap.ID); err != nil {
		s.respondError(w, r, snap, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleDownload sends the cleaned workbook.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	snap := s.currentSession(w, r)

	export, err := s.flow.Export(snap.ID)
	if err != nil {
		s.respondError(w, r, snap, err)
		return
	}

	logging.WithFields(r.Context(), "session_id", snap.ID).Info("export downloaded",
		"file", export.Filename,
		"bytes", len(export.Data),
	)
	writeAttachment(w, export)
}

// handleReset discards the session's data.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	snap := s.currentSession(w, r)

	if _, err := s.flow.Reset(snap.ID); err != nil {
		s.respondError(w, r, snap, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// columnsResponse is the body of POST /api/columns.
type columnsResponse struct {
	Columns  []string     `json:"columns"`
	Rows     int          `json:"rows"`
	Preview  core.Preview `json:"preview"`
	Warnings []string     `json:"warnings,omitempty"`
}

// handleAPIColumns merges the uploaded files and reports the merged columns.
func (s *Server) handleAPIColumns(w http.ResponseWriter, r *http.Request) {
	files, err := s.readUploads(w, r)
	if err != nil {
		s.respondError(w, r, session.Snapshot{}, err)
		return
	}

	merged, warnings, err := s.flow.Inspect(r.Context(), files)
	if err != nil {
		s.respondError(w, r, session.Snapshot{}, err)
		return
	}

	previewRows, _ := s.flow.PreviewRows()
	writeJSON(w, http.StatusOK, columnsResponse{
		Columns:  merged.Columns,
		Rows:     merged.Len(),
		Preview:  merged.Head(previewRows),
		Warnings: warnings,
	})
}

// handleAPIClean runs the whole pipeline on the uploaded files and returns
// the workbook.
func (s *Server) handleAPIClean(w http.ResponseWriter, r *http.Request) {
	files, err := s.readUploads(w, r)
	if err != nil {
		s.respondError(w, r, session.Snapshot{}, err)
		return
	}

	res, err := s.flow.Process(r.Context(), files,
		r.FormValue("name_column"),
		r.FormValue("contact_column"),
	)
	if err != nil {
		s.respondError(w, r, session.Snapshot{}, err)
		return
	}

	h := w.Header()
	h.Set("X-Rows", strconv.Itoa(res.Stats.Rows))
	h.Set("X-Contacts-Full", strconv.Itoa(res.Stats.Full))
	h.Set("X-Contacts-Short", strconv.Itoa(res.Stats.Short))
	h.Set("X-Contacts-Empty", strconv.Itoa(res.Stats.Empty))
	if len(res.Warnings) > 0 {
		h.Set("X-Skipped-Files", strconv.Itoa(len(res.Warnings)))
	}
	writeAttachment(w, res.Export)
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status   string                `json:"status"`
	Sessions int                   `json:"sessions"`
	Uploads  session.LimiterStatus `json:"uploads"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Sessions: s.flow.Store().Len(),
	}
	if l := s.flow.Limiter(); l != nil {
		resp.Uploads = l.Status()
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUploads reads the "files" parts of a multipart request into memory.
// The body is capped at MaxFiles * MaxFileSize, and each file at MaxFileSize.
func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]session.File, error) {
	maxFile := s.cfg.Upload.MaxFileSize
	maxFiles := int64(s.cfg.Upload.MaxFiles)
	r.Body = http.MaxBytesReader(w, r.Body, maxFile*maxFiles+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return nil, fmt.Errorf("%w: upload exceeds %d bytes", errFileTooLarge, maxFile*maxFiles)
		}
		return nil, fmt.Errorf("%w: %v", errBadForm, err)
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, session.ErrNoFiles
	}
	if int64(len(headers)) > maxFiles {
		return nil, fmt.Errorf("%w: %d uploaded, limit is %d", session.ErrTooManyFiles, len(headers), maxFiles)
	}

	files := make([]session.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > maxFile {
			return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d", errFileTooLarge, fh.Filename, fh.Size, maxFile)
		}
		data, err := readPart(fh)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errBadForm, fh.Filename, err)
		}
		files = append(files, session.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// writeAttachment sends an export as a file download.
func writeAttachment(w http.ResponseWriter, export session.Export) {
	h := w.Header()
	h.Set("Content-Type", export.ContentType)
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	h.Set("Content-Length", strconv.Itoa(len(export.Data)))
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}
