package web

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/DataClean/internal/core"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to a temp file.
const multipartMemory = 8 << 20

type uploadResponse struct {
	ID         int64     `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploaded_at"`
	Message    string    `json:"message"`
}

// handleUpload stores the multipart "file" field for the caller.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	// Leave room for multipart framing around the file itself
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			fail(w, r, fmt.Errorf("file too large: %w", err))
			return
		}
		fail(w, r, fmt.Errorf("%w: parse upload: %v", errBadRequest, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		fail(w, r, fmt.Errorf("%w: no file provided", errBadRequest))
		return
	}
	if err != nil {
		fail(w, r, fmt.Errorf("%w: read upload: %v", errBadRequest, err))
		return
	}
	defer file.Close()

	if header.Size > s.cfg.Upload.MaxFileSize {
		respondError(w, r, fmt.Errorf("file too large: %d bytes", header.Size), http.StatusRequestEntityTooLarge)
		return
	}

	up, err := s.service.Upload(r.Context(), user.ID, header.Filename, file)
	if err != nil {
		fail(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, uploadResponse{
		ID:         up.ID,
		Filename:   up.OriginalFilename,
		UploadedAt: up.UploadedAt,
		Message:    "File uploaded successfully",
	})
}

// handleListFiles lists the caller's uploads, newest first.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	uploads, err := s.service.ListUploads(r.Context(), user.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if uploads == nil {
		uploads = []core.FileUpload{}
	}
	writeJSON(w, r, http.StatusOK, uploads)
}
