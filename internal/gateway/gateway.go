// Package gateway is the machine-to-machine read path used by the mobile
// client: it trades a professional ID and session token for a read-only
// projection of the application.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/model"
	"github.com/dharsanguruparan/RestorePortal/internal/storage"
)

// Request is the body of an API login.
type Request struct {
	ProfessionalID string `json:"professional_id"`
	SessionToken   string `json:"session_token"`
}

// Gateway authenticates machine clients against the record store.
type Gateway struct {
	store storage.Store
	log   logrus.FieldLogger
}

// New creates a Gateway.
func New(store storage.Store, log logrus.FieldLogger) *Gateway {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Gateway{store: store, log: log}
}

// Authenticate returns the projection of the application whose professional
// ID and session token both match exactly. A missing or blank field is a
// client error (ErrMissingCredentials), a mismatch is ErrInvalidCredentials.
func (g *Gateway) Authenticate(ctx context.Context, req Request) (*model.Projection, error) {
	pid, token := req.ProfessionalID, req.SessionToken
	if strings.TrimSpace(pid) == "" || strings.TrimSpace(token) == "" {
		return nil, model.ErrMissingCredentials
	}
	app, err := g.store.FindByCredentials(ctx, pid, token)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			g.log.WithField("professional_id", pid).Info("api login rejected")
			return nil, model.ErrInvalidCredentials
		}
		return nil, err
	}
	projection := app.Project()
	return &projection, nil
}
