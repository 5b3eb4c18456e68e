package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

// DemoApplications returns the applications the portal ships with for
// demonstrations. They carry legacy credentials so the mobile client can be
// exercised before anyone logs in.
func DemoApplications() []*model.Application {
	demo := func(id int64, name string, orgType model.OrgType, title, email string, status model.Status, prefix, pid, token string) *model.Application {
		app := &model.Application{
			ID:           id,
			OrgName:      name,
			OrgType:      orgType,
			ProjectTitle: title,
			Email:        email,
			Status:       status,
			Files: map[model.ArtifactKind]string{
				model.ArtifactRegistrationCertificate: prefix + "_reg.pdf",
				model.ArtifactPANCard:                 prefix + "_pan.pdf",
				model.ArtifactTaxCertificate:          prefix + "_tax.pdf",
			},
		}
		app.SetCredentials(pid, token)
		return app
	}
	return []*model.Application{
		demo(1, "Green Earth Foundation", model.OrgNGO, "Mangrove Conservation Initiative", "info@greenearth.org", model.StatusPending, "green_earth", "NGO001", "sess_001"),
		demo(2, "Coastal Village Panchayat", model.OrgPanchayat, "Blue Carbon Credit Program", "admin@coastalvillage.gov.in", model.StatusAccepted, "coastal_panchayat", "PAN001", "sess_002"),
		demo(3, "Ocean Conservation Society", model.OrgNGO, "Marine Ecosystem Restoration", "contact@oceanconservation.org", model.StatusDeclined, "ocean_society", "NGO002", "sess_003"),
		demo(4, "Sundarbans Development Trust", model.OrgNGO, "Wetland Protection Project", "trust@sundarbans.org", model.StatusPending, "sundarbans", "NGO003", "sess_004"),
		demo(5, "Kerala Coastal Panchayat", model.OrgPanchayat, "Sustainable Fishing Initiative", "kerala@coastalpanchayat.gov.in", model.StatusPending, "kerala_panchayat", "PAN002", "sess_005"),
	}
}

// Seed inserts apps into store, skipping emails that already exist so it can
// run against a persistent store on every start.
func Seed(ctx context.Context, store Store, apps []*model.Application) error {
	for _, app := range apps {
		if _, err := store.Create(ctx, app); err != nil {
			if errors.Is(err, model.ErrDuplicateEmail) {
				continue
			}
			return fmt.Errorf("seed %s: %w", app.Email, err)
		}
	}
	return nil
}
