package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/application-tracker/internal/auth"
	"github.com/jonathan/application-tracker/internal/server/middleware"
	"github.com/jonathan/application-tracker/internal/tracker"
	"github.com/jonathan/application-tracker/internal/types"
)

// maxImportBody bounds CSV uploads.
const maxImportBody = 5 << 20

// errNoSession is reported when a gated handler runs without a user in its
// context, which means the route was registered without RequireSession.
var errNoSession = auth.ErrUnauthenticated

// owner returns the id of the signed-in user.
func owner(r *http.Request) (uuid.UUID, error) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		return uuid.Nil, errNoSession
	}
	return user.ID, nil
}

// parseID reads the {id} path segment. A malformed id cannot name a record,
// so it is reported as not found.
func parseID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, tracker.ErrNotFound
	}
	return id, nil
}

// ownerAndID resolves both the caller and the addressed record id.
func ownerAndID(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	o, err := owner(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := parseID(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return o, id, nil
}

func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var d types.Draft
	if err := decodeJSON(w, r, &d); err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.tracker.Create(r.Context(), o, d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.ok(w, http.StatusCreated, app)
}

// handleListApplications serves one filtered, sorted page of the caller's
// records.
func (s *Server) handleListApplications(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	criteria, err := types.ParseListCriteria(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	page, err := s.tracker.List(r.Context(), o, criteria)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, Envelope{
		Success: true,
		Data:    page.Items,
		Pagination: &Pagination{
			Page:  page.Page,
			Limit: page.Limit,
			Total: page.Total,
			Pages: page.Pages,
		},
	})
}

// handleFollowUps lists records due for follow-up as of the asOf query
// parameter, or now. A bare date covers the whole day.
func (s *Server) handleFollowUps(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var asOf time.Time
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		t, dateOnly, err := types.ParseDateTime(raw)
		if err != nil {
			s.writeError(w, r, types.NewValidationError([]types.FieldError{
				{Field: "asOf", Reason: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp"},
			}))
			return
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Microsecond)
		}
		asOf = t
	}

	apps, err := s.tracker.DueFollowUps(r.Context(), o, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, apps)
}

// handleExport streams the caller's records as a CSV attachment. The document
// is rendered before any header is sent so a store failure still gets a JSON
// error.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := s.tracker.Export(r.Context(), o, &buf); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=applications.csv")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("failed to write export", zap.Error(err))
	}
}

// handleImport accepts a CSV document either as the "file" field of a
// multipart form or as a raw text/csv body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	o, err := owner(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	doc, err := readUpload(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.tracker.Import(r.Context(), o, bytes.NewReader(doc))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	msg := fmt.Sprintf("Successfully imported %d applications", len(result.Created))
	if n := len(result.Failed); n > 0 {
		msg += fmt.Sprintf(", %d rows failed", n)
	}
	s.jsonResponse(w, http.StatusOK, Envelope{
		Success: true,
		Message: msg,
		Data:    result.Created,
		Failed:  result.Failed,
	})
}

func readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)
	missing := types.NewValidationError([]types.FieldError{{Field: "file", Reason: "is required"}})

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var src io.Reader = r.Body
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(maxImportBody); err != nil {
			return nil, uploadError(err)
		}
		file, _, err := r.FormFile("file")
		if errors.Is(err, http.ErrMissingFile) {
			return nil, missing
		}
		if err != nil {
			return nil, uploadError(err)
		}
		defer file.Close()
		src = file
	}

	doc, err := io.ReadAll(src)
	if err != nil {
		return nil, uploadError(err)
	}
	if len(bytes.TrimSpace(doc)) == 0 {
		return nil, missing
	}
	return doc, nil
}

func uploadError(err error) error {
	reason := "could not be read"
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		reason = "is too large"
	}
	return types.NewValidationError([]types.FieldError{{Field: "file", Reason: reason}})
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request) {
	o, id, err := ownerAndID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	app, err := s.tracker.Get(r.Context(), o, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, app)
}

// handleUpdateApplication applies a partial update. A status change is
// recorded in the record's history by the tracker.
func (s *Server) handleUpdateApplication(w http.ResponseWriter, r *http.Request) {
	o, id, err := ownerAndID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var p types.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.tracker.Update(r.Context(), o, id, p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.ok(w, http.StatusOK, app)
}

func (s *Server) handleDeleteApplication(w http.ResponseWriter, r *http.Request) {
	o, id, err := ownerAndID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.tracker.Delete(r.Context(), o, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, Envelope{Success: true, Message: "Application deleted successfully"})
}

func (s *Server) handleAddInteraction(w http.ResponseWriter, r *http.Request) {
	o, id, err := ownerAndID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var d types.InteractionDraft
	if err := decodeJSON(w, r, &d); err != nil {
		s.writeError(w, r, err)
		return
	}

	app, err := s.tracker.AddInteraction(r.Context(), o, id, d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.ok(w, http.StatusCreated, app)
}
