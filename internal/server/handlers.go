package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/blob"
	"github.com/dharsanguruparan/RestorePortal/internal/gateway"
	"github.com/dharsanguruparan/RestorePortal/internal/intake"
	"github.com/dharsanguruparan/RestorePortal/internal/lifecycle"
	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

const loginPath = "/ngo/login"

// presigner is implemented by upload backends that can hand out direct URLs.
type presigner interface {
	PresignURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, err := s.readRegistration(w, r)
	if err != nil {
		s.metrics.Registration("rejected")
		s.writeError(w, r, err, "")
		return
	}
	app, err := s.lifecycle.Register(r.Context(), req)
	if err != nil {
		redirect := ""
		if errors.Is(err, model.ErrDuplicateEmail) {
			redirect = loginPath
			s.metrics.Registration("duplicate")
		} else {
			s.metrics.Registration("rejected")
		}
		s.writeError(w, r, err, redirect)
		return
	}
	s.metrics.Registration("created")
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":       app.ID,
		"status":   app.Status,
		"redirect": fmt.Sprintf("/ngo/status/%d", app.ID),
	})
}

// readRegistration accepts multipart forms (with documents) and plain
// urlencoded forms (without). File parts are streamed one at a time and read
// only up to one byte past the size limit.
func (s *Server) readRegistration(w http.ResponseWriter, r *http.Request) (lifecycle.Registration, error) {
	var req lifecycle.Registration
	limit := int64(len(model.ArtifactKinds))*s.cfg.MaxFileSize + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := r.ParseForm(); err != nil {
			return req, model.ValidationError{Field: "form", Reason: "unreadable form body"}
		}
		fillRegistration(&req, r.PostForm)
		return req, nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return req, model.ValidationError{Field: "form", Reason: "expecting multipart form"}
	}
	fields := url.Values{}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return req, model.ValidationError{Field: "form", Reason: "failed to read upload"}
		}
		name := part.FormName()
		kind := model.ArtifactKind(name)
		if part.FileName() == "" {
			if kind.Valid() {
				// A file input left empty by the browser.
				part.Close()
				continue
			}
			value, err := io.ReadAll(io.LimitReader(part, 64<<10))
			part.Close()
			if err != nil {
				return req, model.ValidationError{Field: name, Reason: "unreadable field"}
			}
			fields.Add(name, string(value))
			continue
		}
		if !kind.Valid() {
			part.Close()
			continue
		}
		data, err := io.ReadAll(io.LimitReader(part, s.cfg.MaxFileSize+1))
		part.Close()
		if err != nil {
			return req, model.InvalidFileError{Kind: kind, Reason: "failed to read upload"}
		}
		req.Uploads = append(req.Uploads, intake.Upload{Kind: kind, Filename: part.FileName(), Data: data})
	}
	fillRegistration(&req, fields)
	return req, nil
}

func fillRegistration(req *lifecycle.Registration, form url.Values) {
	req.OrgName = form.Get("org_name")
	req.Email = form.Get("email")
	req.Password = form.Get("password")
	req.OrgType = model.OrgType(form.Get("org_type"))
	req.ProjectTitle = form.Get("project_title")
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, model.ValidationError{Field: "form", Reason: "unreadable form body"}, "")
		return
	}
	app, err := s.lifecycle.Login(r.Context(), r.PostForm.Get("email"), r.PostForm.Get("password"))
	if err != nil {
		s.metrics.Login("rejected")
		s.writeError(w, r, err, loginPath)
		return
	}
	s.metrics.Login("issued")
	token := *app.SessionToken
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"id":              app.ID,
		"professional_id": *app.ProfessionalID,
		"session_token":   token,
		"redirect":        fmt.Sprintf("/ngo/dashboard/%d?session_id=%s", app.ID, url.QueryEscape(token)),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, r, model.ValidationError{Field: "id", Reason: "must be a number"}, loginPath)
		return
	}
	app, err := s.lifecycle.AuthorizeSession(r.Context(), id, sessionToken(r))
	if err != nil {
		s.writeError(w, r, err, loginPath)
		return
	}
	respondJSON(w, http.StatusOK, app)
}

// sessionToken reads the dashboard credential from the query string or an
// Authorization bearer header.
func sessionToken(r *http.Request) string {
	q := r.URL.Query()
	if token := q.Get("session_id"); token != "" {
		return token
	}
	if token := q.Get("session_token"); token != "" {
		return token
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

// statusView is the public, credential-free view of an application.
type statusView struct {
	ID           int64         `json:"id"`
	OrgName      string        `json:"org_name"`
	OrgType      model.OrgType `json:"org_type"`
	ProjectTitle string        `json:"project_title"`
	Status       model.Status  `json:"status"`
	Documents    []string      `json:"documents"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		s.writeError(w, r, model.ValidationError{Field: "id", Reason: "must be a number"}, "")
		return
	}
	app, err := s.lifecycle.Application(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, loginPath)
		return
	}
	view := statusView{
		ID:           app.ID,
		OrgName:      app.OrgName,
		OrgType:      app.OrgType,
		ProjectTitle: app.ProjectTitle,
		Status:       app.Status,
		Documents:    []string{},
	}
	for kind := range app.Files {
		view.Documents = append(view.Documents, string(kind))
	}
	sort.Strings(view.Documents)
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req gateway.Request
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil {
		s.metrics.APILogin("bad_request")
		respondJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid JSON body"})
		return
	}
	projection, err := s.gateway.Authenticate(r.Context(), req)
	if err != nil {
		status, _ := classify(err)
		message := err.Error()
		switch status {
		case http.StatusBadRequest:
			s.metrics.APILogin("bad_request")
		case http.StatusUnauthorized:
			s.metrics.APILogin("unauthorized")
		default:
			s.metrics.APILogin("error")
			message = "internal error"
			s.log.WithError(err).Error("api login failed")
		}
		respondJSON(w, status, apiResponse{Message: message})
		return
	}
	s.metrics.APILogin("ok")
	respondJSON(w, http.StatusOK, apiResponse{Success: true, Data: projection})
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	all, err := s.lifecycle.Applications(r.Context(), "")
	if err != nil {
		s.writeError(w, r, err, "")
		return
	}
	pending := make([]*model.Application, 0, len(all))
	for _, app := range all {
		if app.Status == model.StatusPending {
			pending = append(pending, app)
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"applications": all,
		"pending":      pending,
	})
}

// handleUpdateStatus accepts form fields ngo_id and status. An unknown id is
// reported but not treated as a failure.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, r, model.ValidationError{Field: "form", Reason: "unreadable form body"}, "")
		return
	}
	id, err := strconv.ParseInt(strings.TrimSpace(r.PostForm.Get("ngo_id")), 10, 64)
	if err != nil {
		s.writeError(w, r, model.ValidationError{Field: "ngo_id", Reason: "must be a number"}, "")
		return
	}
	status := model.Status(strings.TrimSpace(r.PostForm.Get("status")))
	app, err := s.lifecycle.SetStatus(r.Context(), id, status)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.log.WithField("application_id", id).Info("status update for unknown application ignored")
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"updated":  false,
				"redirect": "/admin/dashboard",
			})
			return
		}
		s.writeError(w, r, err, "")
		return
	}
	s.metrics.StatusUpdate(string(status))
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"updated":     true,
		"application": app,
		"message":     fmt.Sprintf("%s application has been %s", app.OrgType, app.Status),
		"redirect":    "/admin/dashboard",
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	if !blob.ValidName(name) {
		s.writeError(w, r, model.ValidationError{Field: "filename", Reason: "invalid name"}, "")
		return
	}
	if p, ok := s.blobs.(presigner); ok {
		target, err := p.PresignURL(r.Context(), name, s.cfg.SignedURLTTL)
		if err != nil {
			s.writeError(w, r, err, "")
			return
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}
	rc, err := s.blobs.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, blob.ErrNotExist) {
			err = model.NotFoundError{Resource: "upload"}
		}
		s.writeError(w, r, err, "")
		return
	}
	defer rc.Close()
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.log.WithFields(logrus.Fields{"file": name}).WithError(err).Warn("stream upload failed")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil
}
