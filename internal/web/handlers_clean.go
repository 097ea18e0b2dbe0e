package web

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/DataClean/internal/cleaning"
	"github.com/JonMunkholm/DataClean/internal/core"
	"github.com/JonMunkholm/DataClean/internal/logging"
	"github.com/JonMunkholm/DataClean/internal/report"
)

type cleanResponse struct {
	Message         string                `json:"message"`
	CleanedFile     string                `json:"cleaned_file"`
	CleaningSummary []cleaning.StepResult `json:"cleaning_summary"`
	CleanedFileID   int64                 `json:"cleaned_file_id"`
	OriginalRows    int                   `json:"original_rows"`
	CleanedRows     int                   `json:"cleaned_rows"`
	UserPrompt      string                `json:"user_prompt"`
	AIResponse      core.AgentResponse    `json:"ai_response"`
}

type historyItem struct {
	ID            int64     `json:"id"`
	FileID        int64     `json:"file_id"`
	CleanedFile   string    `json:"cleaned_file"`
	CleaningSteps string    `json:"cleaning_steps"`
	Instruction   string    `json:"instruction,omitempty"`
	OriginalRows  *int      `json:"original_rows,omitempty"`
	CleanedRows   *int      `json:"cleaned_rows,omitempty"`
	CleanedAt     time.Time `json:"cleaned_at"`
}

// handleClean runs the pipeline over one of the caller's uploads.
func (s *Server) handleClean(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	fileID, err := pathID(r, "fileID")
	if err != nil {
		fail(w, r, err)
		return
	}

	res, err := s.service.Clean(r.Context(), user.ID, fileID, r.URL.Query().Get("prompt"))
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, cleanResponse{
		Message:         "File cleaned successfully",
		CleanedFile:     res.CleanedFile,
		CleaningSummary: res.Run.Steps,
		CleanedFileID:   res.Record.ID,
		OriginalRows:    res.Run.OriginalRows,
		CleanedRows:     res.Run.CleanedRows,
		UserPrompt:      res.Run.Instruction,
		AIResponse:      res.Agent,
	})
}

// handleDownload streams a cleaned CSV as an attachment.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	cleanedID, err := pathID(r, "cleanedID")
	if err != nil {
		fail(w, r, err)
		return
	}

	rc, name, err := s.service.OpenCleaned(r.Context(), user.ID, cleanedID)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", attachment(name))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logCopyError(r, err)
	}
}

// handleHistory lists the caller's cleaning runs.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	userID, err := pathID(r, "userID")
	if err != nil {
		fail(w, r, err)
		return
	}

	recs, err := s.service.History(r.Context(), user.ID, userID)
	if err != nil {
		fail(w, r, err)
		return
	}

	items := make([]historyItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, historyItem{
			ID:            rec.ID,
			FileID:        rec.FileID,
			CleanedFile:   filepath.Base(rec.CleanedFilePath),
			CleaningSteps: rec.CleaningSteps,
			Instruction:   rec.Instruction,
			OriginalRows:  rec.OriginalRows,
			CleanedRows:   rec.CleanedRows,
			CleanedAt:     rec.CreatedAt,
		})
	}
	writeJSON(w, r, http.StatusOK, items)
}

// handleReport renders the report of a run. CSV is the default; "xlsx" and
// "html" are selected with ?format=.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	cleanedID, err := pathID(r, "cleanedID")
	if err != nil {
		fail(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "", "csv", "xlsx", "html":
	default:
		fail(w, r, fmt.Errorf("%w: unknown report format %q", errBadRequest, format))
		return
	}

	rows, err := s.service.Report(r.Context(), user.ID, cleanedID)
	if err != nil {
		fail(w, r, err)
		return
	}

	base := fmt.Sprintf("cleaning_report_%d", cleanedID)
	var buf bytes.Buffer
	var contentType, filename string
	switch format {
	case "xlsx":
		err = report.WriteXLSX(&buf, rows)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = base + ".xlsx"
	case "html":
		err = report.Page(fmt.Sprintf("Cleaning report %d", cleanedID), rows).Render(r.Context(), &buf)
		contentType = "text/html; charset=utf-8"
	default:
		err = report.WriteCSV(&buf, rows)
		contentType = "text/csv"
		filename = base + ".csv"
	}
	if err != nil {
		fail(w, r, fmt.Errorf("render %s report %d: %w", format, cleanedID, err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	if filename != "" {
		w.Header().Set("Content-Disposition", attachment(filename))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logCopyError(r, err)
	}
}

func (s *Server) logCopyError(r *http.Request, err error) {
	logging.FromContext(r.Context()).Warn("write response body failed", "path", r.URL.Path, "error", err)
}

// attachment builds a Content-Disposition header for a download.
func attachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
