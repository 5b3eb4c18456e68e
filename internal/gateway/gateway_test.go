package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/RestorePortal/internal/model"
	"github.com/dharsanguruparan/RestorePortal/internal/storage"
)

func newGateway(t *testing.T) *Gateway {
	t.Helper()
	store := storage.NewMemoryStore()
	require.NoError(t, storage.Seed(context.Background(), store, storage.DemoApplications()))
	logger, _ := test.NewNullLogger()
	return New(store, logger)
}

func TestAuthenticateSuccess(t *testing.T) {
	g := newGateway(t)
	p, err := g.Authenticate(context.Background(), Request{ProfessionalID: "PAN001", SessionToken: "sess_002"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.ID)
	assert.Equal(t, "Coastal Village Panchayat", p.OrgName)
	assert.Equal(t, model.StatusAccepted, p.Status)
	assert.Equal(t, "PAN001", p.ProfessionalID)
}

func TestAuthenticateNeverEchoesToken(t *testing.T) {
	g := newGateway(t)
	p, err := g.Authenticate(context.Background(), Request{ProfessionalID: "NGO001", SessionToken: "sess_001"})
	require.NoError(t, err)
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sess_001")
	assert.NotContains(t, string(raw), "session_token")
	assert.Contains(t, string(raw), `"ngo_id":1`)
}

func TestAuthenticateMissingFields(t *testing.T) {
	g := newGateway(t)
	for _, req := range []Request{
		{},
		{ProfessionalID: "NGO001"},
		{SessionToken: "sess_001"},
		{ProfessionalID: "  ", SessionToken: "sess_001"},
	} {
		_, err := g.Authenticate(context.Background(), req)
		assert.ErrorIs(t, err, model.ErrMissingCredentials)
	}
}

func TestAuthenticateRequiresBothOnSameRecord(t *testing.T) {
	g := newGateway(t)
	for _, req := range []Request{
		{ProfessionalID: "NGO001", SessionToken: "WRONG"},
		{ProfessionalID: "WRONG", SessionToken: "sess_001"},
		{ProfessionalID: "NGO001", SessionToken: "sess_002"},
		{ProfessionalID: "NGO001", SessionToken: " sess_001 "},
		{ProfessionalID: " NGO001", SessionToken: "sess_001"},
		{ProfessionalID: "NGO001", SessionToken: "SESS_001"},
	} {
		_, err := g.Authenticate(context.Background(), req)
		assert.ErrorIs(t, err, model.ErrInvalidCredentials)
	}
}
