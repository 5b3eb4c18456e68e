// Package model contains the struct definitions shared across packages: the
// Application record, its enumerations, and the read-only projection handed
// to machine clients.
package model

import (
	"time"
)

// Status describes where an application sits in the review lifecycle. A
// named string type keeps arbitrary strings from being assigned by accident.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Valid reports whether s is one of the three review states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusDeclined:
		return true
	}
	return false
}

// OrgType is the kind of organization submitting the application.
type OrgType string

const (
	OrgNGO       OrgType = "NGO"
	OrgPanchayat OrgType = "Panchayat"
)

// Valid reports whether t is a supported organization type.
func (t OrgType) Valid() bool {
	return t == OrgNGO || t == OrgPanchayat
}

// ArtifactKind names one of the documents an organization can attach.
type ArtifactKind string

const (
	ArtifactRegistrationCertificate ArtifactKind = "registration_certificate"
	ArtifactPANCard                 ArtifactKind = "pan_card"
	ArtifactTaxCertificate          ArtifactKind = "tax_certificate"
)

// ArtifactKinds lists the accepted kinds in form order.
var ArtifactKinds = []ArtifactKind{
	ArtifactRegistrationCertificate,
	ArtifactPANCard,
	ArtifactTaxCertificate,
}

// Valid reports whether k is a known artifact kind.
func (k ArtifactKind) Valid() bool {
	for _, known := range ArtifactKinds {
		if k == known {
			return true
		}
	}
	return false
}

// Application is the record of one organization's submission. Credentials are
// nil until the first login and are always written as a pair.
type Application struct {
	ID             int64                   `json:"id"`
	OrgName        string                  `json:"org_name"`
	Email          string                  `json:"email"`
	OrgType        OrgType                 `json:"org_type"`
	ProjectTitle   string                  `json:"project_title"`
	Status         Status                  `json:"status"`
	Files          map[ArtifactKind]string `json:"files"`
	ProfessionalID *string                 `json:"professional_id,omitempty"`
	// SessionToken never leaves the process through JSON.
	SessionToken *string   `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can hold a snapshot without sharing the
// Files map or credential pointers with the store.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	out := *a
	if a.Files != nil {
		out.Files = make(map[ArtifactKind]string, len(a.Files))
		for k, v := range a.Files {
			out.Files[k] = v
		}
	}
	if a.ProfessionalID != nil {
		id := *a.ProfessionalID
		out.ProfessionalID = &id
	}
	if a.SessionToken != nil {
		token := *a.SessionToken
		out.SessionToken = &token
	}
	return &out
}

// SetCredentials replaces both credentials at once.
func (a *Application) SetCredentials(professionalID, sessionToken string) {
	a.ProfessionalID = &professionalID
	a.SessionToken = &sessionToken
}

// HasSession reports whether credentials have been issued.
func (a *Application) HasSession() bool {
	return a.SessionToken != nil && a.ProfessionalID != nil
}

// Projection is the subset of an Application exposed to machine clients. The
// session token is deliberately absent.
type Projection struct {
	ID             int64   `json:"ngo_id"`
	OrgName        string  `json:"org_name"`
	OrgType        OrgType `json:"org_type"`
	ProjectTitle   string  `json:"project_title"`
	Email          string  `json:"email"`
	Status         Status  `json:"status"`
	ProfessionalID string  `json:"professional_id"`
}

// Project builds the machine-client projection of a.
func (a *Application) Project() Projection {
	p := Projection{
		ID:           a.ID,
		OrgName:      a.OrgName,
		OrgType:      a.OrgType,
		ProjectTitle: a.ProjectTitle,
		Email:        a.Email,
		Status:       a.Status,
	}
	if a.ProfessionalID != nil {
		p.ProfessionalID = *a.ProfessionalID
	}
	return p
}
