// Package lifecycle enacts the application state machine: registration into
// pending, login with credential issuance, the dashboard session gate and the
// administrative accept/decline decision.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/credential"
	"github.com/dharsanguruparan/RestorePortal/internal/intake"
	"github.com/dharsanguruparan/RestorePortal/internal/model"
	"github.com/dharsanguruparan/RestorePortal/internal/queue"
	"github.com/dharsanguruparan/RestorePortal/internal/storage"
)

// Registration carries the fields of a registration request.
type Registration struct {
	OrgName      string
	Email        string
	Password     string
	OrgType      model.OrgType
	ProjectTitle string
	Uploads      []intake.Upload
}

// Controller is the only component that changes application state.
type Controller struct {
	store     storage.Store
	intake    *intake.Validator
	issuer    *credential.Issuer
	passwords PasswordChecker
	reviews   queue.Dispatcher
	log       logrus.FieldLogger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithPasswordChecker replaces the default AcceptAnyPassword policy.
func WithPasswordChecker(p PasswordChecker) Option {
	return func(c *Controller) { c.passwords = p }
}

// WithReviewDispatcher enables post-registration document review.
func WithReviewDispatcher(d queue.Dispatcher) Option {
	return func(c *Controller) { c.reviews = d }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = log }
}

// New wires a Controller.
func New(store storage.Store, validator *intake.Validator, issuer *credential.Issuer, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		intake:    validator,
		issuer:    issuer,
		passwords: AcceptAnyPassword{},
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register validates the request, stores its documents and creates a pending
// application without credentials. Documents are written before the record
// exists; if the record cannot be created they are removed again.
func (c *Controller) Register(ctx context.Context, req Registration) (*model.Application, error) {
	req.OrgName = strings.TrimSpace(req.OrgName)
	req.Email = strings.TrimSpace(req.Email)
	req.OrgType = model.OrgType(strings.TrimSpace(string(req.OrgType)))
	req.ProjectTitle = strings.TrimSpace(req.ProjectTitle)
	if err := requireFields(
		"org_name", req.OrgName,
		"email", req.Email,
		"password", strings.TrimSpace(req.Password),
		"org_type", string(req.OrgType),
		"project_title", req.ProjectTitle,
	); err != nil {
		return nil, err
	}
	if !req.OrgType.Valid() {
		return nil, model.ValidationError{Field: "org_type", Reason: "must be NGO or Panchayat"}
	}

	if _, err := c.store.FindByEmail(ctx, req.Email); err == nil {
		return nil, model.ErrDuplicateEmail
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, fmt.Errorf("lookup email: %w", err)
	}

	// Validation needs no id, so a rejected upload never consumes one.
	if _, err := c.intake.CheckAll(req.Uploads); err != nil {
		return nil, err
	}
	id, err := c.store.ReserveID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve id: %w", err)
	}
	files, err := c.intake.Persist(ctx, id, req.Uploads)
	if err != nil {
		return nil, err
	}
	draft := &model.Application{
		ID:           id,
		OrgName:      req.OrgName,
		Email:        req.Email,
		OrgType:      req.OrgType,
		ProjectTitle: req.ProjectTitle,
		Status:       model.StatusPending,
		Files:        files,
	}
	if _, err := c.store.Create(ctx, draft); err != nil {
		c.intake.Discard(ctx, files)
		if errors.Is(err, model.ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("create application: %w", err)
	}
	app, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload application: %w", err)
	}
	c.log.WithFields(logrus.Fields{
		"application_id": app.ID,
		"org_type":       app.OrgType,
		"documents":      len(app.Files),
	}).Info("application registered")
	c.dispatchReview(ctx, app)
	return app, nil
}

func (c *Controller) dispatchReview(ctx context.Context, app *model.Application) {
	if c.reviews == nil || len(app.Files) == 0 {
		return
	}
	files := make(map[string]string, len(app.Files))
	for kind, name := range app.Files {
		files[string(kind)] = name
	}
	err := c.reviews.DispatchReview(ctx, queue.ReviewPayload{ApplicationID: app.ID, Files: files})
	if err != nil {
		c.log.WithError(err).WithField("application_id", app.ID).Warn("dispatch document review")
	}
}

// Login looks the organization up by email, checks the password through the
// configured PasswordChecker and issues fresh credentials, invalidating any
// earlier session.
func (c *Controller) Login(ctx context.Context, email, password string) (*model.Application, error) {
	email = strings.TrimSpace(email)
	if err := requireFields("email", email, "password", strings.TrimSpace(password)); err != nil {
		return nil, err
	}
	found, err := c.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.ErrUnknownEmail
		}
		return nil, fmt.Errorf("lookup email: %w", err)
	}
	if err := c.passwords.CheckPassword(ctx, found, password); err != nil {
		return nil, err
	}
	app, err := c.store.Update(ctx, found.ID, func(a *model.Application) error {
		_, err := c.issuer.Issue(a)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("issue credentials: %w", err)
	}
	c.log.WithFields(logrus.Fields{
		"application_id":  app.ID,
		"professional_id": *app.ProfessionalID,
	}).Info("credentials issued")
	return app, nil
}

// AuthorizeSession is the gate in front of every dashboard read. An
// application that never logged in has no token and rejects every attempt,
// including an empty one.
func (c *Controller) AuthorizeSession(ctx context.Context, id int64, token string) (*model.Application, error) {
	app, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if token == "" || app.SessionToken == nil || !credential.Equal(token, *app.SessionToken) {
		return nil, model.ErrInvalidSession
	}
	return app, nil
}

// SetStatus overwrites the review status. Any of the three states may follow
// any other, so a decision can be revisited.
func (c *Controller) SetStatus(ctx context.Context, id int64, status model.Status) (*model.Application, error) {
	if !status.Valid() {
		return nil, model.ValidationError{Field: "status", Reason: "must be pending, accepted or declined"}
	}
	app, err := c.store.Update(ctx, id, func(a *model.Application) error {
		a.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"application_id": id, "status": status}).Info("status updated")
	return app, nil
}

// Application returns the record with the given id.
func (c *Controller) Application(ctx context.Context, id int64) (*model.Application, error) {
	return c.store.Get(ctx, id)
}

// Applications lists every application, or only those with status when it
// is non-empty.
func (c *Controller) Applications(ctx context.Context, status model.Status) ([]*model.Application, error) {
	if status == "" {
		return c.store.List(ctx)
	}
	if !status.Valid() {
		return nil, model.ValidationError{Field: "status", Reason: "must be pending, accepted or declined"}
	}
	return c.store.ListByStatus(ctx, status)
}

// requireFields takes name/value pairs and reports the first blank value.
func requireFields(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return model.ValidationError{Field: pairs[i]}
		}
	}
	return nil
}
