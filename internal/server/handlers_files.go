package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"fstore/internal/api"
)

const (
	uploadFileField = "file"
	maxFormFieldLen = 4 << 10 // 4 KiB
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ownerID := callerFromContext(r.Context())
	if ownerID == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("X-User-Id header is required to upload"), ErrCodeMissingRequired))
		return
	}
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}

	query := r.URL.Query()
	visibility := query.Get("visibility")
	tags := splitCSV(query["tags"])

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
			return
		}

		switch part.FormName() {
		case "visibility", "tags":
			value, err := readFormField(part)
			if err != nil {
				s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
				return
			}
			if part.FormName() == "visibility" {
				visibility = firstNonEmpty(value, visibility)
			} else {
				tags = append(tags, splitCSV([]string{value})...)
			}
		case uploadFileField:
			view, err := s.files.Upload(r.Context(), UploadInput{
				OwnerID:     ownerID,
				Filename:    part.FileName(),
				ContentType: part.Header.Get("Content-Type"),
				Visibility:  visibility,
				Tags:        tags,
				Content:     part,
			})
			_ = part.Close()
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			if name := trailingUploadField(reader); name != "" {
				if err := s.files.Delete(r.Context(), view.ID, ownerID); err != nil {
					s.log().Warn("rollback of upload with trailing field failed", "id", view.ID, "error", err)
				}
				s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("multipart field %q must precede the %q part", name, uploadFileField), ErrCodeInvalidArgument))
				return
			}
			s.writeJSON(w, http.StatusCreated, toFileResponse(view))
			return
		}
		_ = part.Close()
	}

	s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("multipart field %q is required", uploadFileField), ErrCodeMissingRequired))
}

// trailingUploadField returns the name of the first upload field found after
// the file part, or "" when the rest of the form carries none.
func trailingUploadField(reader *multipart.Reader) string {
	for {
		part, err := reader.NextPart()
		if err != nil {
			return ""
		}
		name := part.FormName()
		_ = part.Close()
		switch name {
		case "visibility", "tags", uploadFileField:
			return name
		}
	}
}

func readFormField(part io.Reader) (string, error) {
	value, err := io.ReadAll(io.LimitReader(part, maxFormFieldLen+1))
	if err != nil {
		return "", err
	}
	if len(value) > maxFormFieldLen {
		return "", fmt.Errorf("form field exceeds %d bytes", maxFormFieldLen)
	}
	return strings.TrimSpace(string(value)), nil
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	page, err := queryIntDefault(r, "page", 0)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	size, err := queryIntDefault(r, "size", 0)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	query := r.URL.Query()
	result, err := s.files.List(r.Context(), ListInput{
		OwnerID:    callerFromContext(r.Context()),
		Visibility: query.Get("visibility"),
		Tag:        query.Get("tag"),
		SortBy:     query.Get("sortBy"),
		Direction:  query.Get("direction"),
		Page:       page,
		Size:       size,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.ListResponse{
		Files: toFileResponses(result.Files),
		Total: result.Total,
		Page:  result.Page,
		Size:  result.Size,
	})
}

func (s *Server) handleListPublic(w http.ResponseWriter, r *http.Request) {
	views, err := s.files.ListPublic(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toFileResponses(views))
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.files.Delete(r.Context(), r.PathValue("id"), callerFromContext(r.Context())); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	var req api.RenameRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	view, err := s.files.Rename(r.Context(), r.PathValue("id"), callerFromContext(r.Context()), req.Filename)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toFileResponse(view))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	content, err := s.files.ResolveDownload(r.Context(), r.PathValue("token"), callerFromContext(r.Context()))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer content.Reader.Close()

	w.Header().Set("Content-Type", content.ContentType)
	w.Header().Set("Content-Length", strconv.FormatInt(content.SizeBytes, 10))
	w.Header().Set("Content-Disposition", contentDisposition(content.Filename))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content.Reader); err != nil {
		s.log().Warn("download interrupted", "path", r.URL.Path, "error", err)
	}
}

func contentDisposition(filename string) string {
	if value := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); value != "" {
		return value
	}
	return "attachment"
}
