package httpapi

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/saiaj/openapitest/internal/httpapi/response"
)

type uploadedFile struct {
	Field string `json:"field"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
}

type uploadResponse struct {
	Title string         `json:"title"`
	Files []uploadedFile `json:"files"`
}

func (a *App) handleUpload(w http.ResponseWriter, r *http.Request) error {
	if a.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	}

	if err := r.ParseMultipartForm(a.maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errRequestTooLarge()
		}
		return errBadRequest("invalid multipart body")
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			a.logger.Warn("remove multipart files failed", "err", err)
		}
	}()

	var errs response.ValidationErrors
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		errs.Add("title", "is required")
	}

	fields := make([]string, 0, len(r.MultipartForm.File))
	for field := range r.MultipartForm.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	files := make([]uploadedFile, 0, len(fields))
	for _, field := range fields {
		for _, header := range r.MultipartForm.File[field] {
			files = append(files, uploadedFile{Field: field, Name: header.Filename, Size: header.Size})
		}
	}
	if len(files) == 0 {
		errs.Add("attachment", "is required")
	}

	if errs.Any() {
		return errValidation(errs)
	}

	a.writeJSON(w, r, http.StatusCreated, uploadResponse{Title: title, Files: files})
	return nil
}
