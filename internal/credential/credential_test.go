package credential

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

var (
	professionalIDPattern = regexp.MustCompile(`^(NGO|PAN)-\d{4}-\d{6}$`)
	tokenPattern          = regexp.MustCompile(`^[0-9A-F]{16}$`)
)

func TestProfessionalID(t *testing.T) {
	assert.Equal(t, "NGO-0007-000123", ProfessionalID(model.OrgNGO, 7, 1700000123))
	assert.Equal(t, "PAN-0042-654321", ProfessionalID(model.OrgPanchayat, 42, 1987654321))
	assert.Equal(t, "PAN-12345-000099", ProfessionalID(model.OrgType("Other"), 12345, 99))
}

func TestDigestTokenMatchesFormula(t *testing.T) {
	sum := sha256.Sum256([]byte("t@x.org" + "1700000123" + "6"))
	want := strings.ToUpper(hex.EncodeToString(sum[:]))[:16]
	assert.Equal(t, want, DigestToken("t@x.org", 1700000123, 6))
	assert.Regexp(t, tokenPattern, want)
}

func TestDigestTokenDistinguishesApplications(t *testing.T) {
	a := DigestToken("a@x.org", 1700000123, 1)
	b := DigestToken("b@x.org", 1700000123, 2)
	assert.NotEqual(t, a, b)
}

func TestIssueWritesPairOntoRecord(t *testing.T) {
	now := time.Unix(1700000123, 0)
	issuer := NewIssuer(ModeDigest, WithClock(func() time.Time { return now }))
	app := &model.Application{ID: 6, Email: "t@x.org", OrgType: model.OrgNGO}

	creds, err := issuer.Issue(app)
	require.NoError(t, err)
	require.NotNil(t, app.ProfessionalID)
	require.NotNil(t, app.SessionToken)
	assert.Equal(t, creds.ProfessionalID, *app.ProfessionalID)
	assert.Equal(t, creds.SessionToken, *app.SessionToken)
	assert.Regexp(t, professionalIDPattern, creds.ProfessionalID)
	assert.Regexp(t, tokenPattern, creds.SessionToken)
	assert.Equal(t, "NGO-0006-000123", creds.ProfessionalID)
}

func TestIssueReplacesPreviousCredentials(t *testing.T) {
	now := time.Unix(1700000123, 0)
	issuer := NewIssuer(ModeDigest, WithClock(func() time.Time { return now }))
	app := &model.Application{ID: 6, Email: "t@x.org", OrgType: model.OrgNGO}
	first, err := issuer.Issue(app)
	require.NoError(t, err)
	now = now.Add(time.Second)
	second, err := issuer.Issue(app)
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionToken, second.SessionToken)
	assert.Equal(t, second.SessionToken, *app.SessionToken)
}

func TestIssueInSameSecondStillReplacesToken(t *testing.T) {
	now := time.Unix(1700000123, 0)
	issuer := NewIssuer(ModeDigest, WithClock(func() time.Time { return now }))
	app := &model.Application{ID: 6, Email: "t@x.org", OrgType: model.OrgNGO}

	seen := map[string]bool{}
	for n := 0; n < 3; n++ {
		creds, err := issuer.Issue(app)
		require.NoError(t, err)
		assert.False(t, seen[creds.SessionToken], "token %s issued twice", creds.SessionToken)
		seen[creds.SessionToken] = true
		assert.Equal(t, DigestToken("t@x.org", 1700000123+int64(n), 6), creds.SessionToken)
		assert.Equal(t, ProfessionalID(model.OrgNGO, 6, 1700000123+int64(n)), creds.ProfessionalID)
	}
}

func TestIssueSkipsTokenAlreadyOnRecord(t *testing.T) {
	now := time.Unix(1700000123, 0)
	issuer := NewIssuer(ModeDigest, WithClock(func() time.Time { return now }))
	stale := DigestToken("t@x.org", 1700000123, 6)
	app := &model.Application{ID: 6, Email: "t@x.org", OrgType: model.OrgNGO}
	app.SetCredentials("NGO-0006-000123", stale)

	creds, err := issuer.Issue(app)
	require.NoError(t, err)
	assert.NotEqual(t, stale, creds.SessionToken)
	assert.Equal(t, "NGO-0006-000124", creds.ProfessionalID)
}

func TestRandomModeRedrawsCurrentToken(t *testing.T) {
	entropy := bytes.NewReader([]byte{
		0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02, 0x03,
		0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01, 0x01,
	})
	issuer := NewIssuer(ModeRandom, WithRandom(entropy))
	app := &model.Application{ID: 2, Email: "p@x.org", OrgType: model.OrgPanchayat}
	app.SetCredentials("PAN-0002-000000", "DEADBEEF00010203")
	creds, err := issuer.Issue(app)
	require.NoError(t, err)
	assert.Equal(t, "0101010101010101", creds.SessionToken)
}

func TestRandomModeKeepsShape(t *testing.T) {
	entropy := bytes.NewReader([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01, 0x02, 0x03})
	issuer := NewIssuer(ModeRandom, WithRandom(entropy))
	app := &model.Application{ID: 2, Email: "p@x.org", OrgType: model.OrgPanchayat}
	creds, err := issuer.Issue(app)
	require.NoError(t, err)
	assert.Equal(t, "DEADBEEF00010203", creds.SessionToken)
	assert.Regexp(t, professionalIDPattern, creds.ProfessionalID)
	assert.True(t, strings.HasPrefix(creds.ProfessionalID, "PAN-0002-"))
}

func TestRandomModeFailsOnShortEntropy(t *testing.T) {
	issuer := NewIssuer(ModeRandom, WithRandom(bytes.NewReader([]byte{1, 2})))
	app := &model.Application{ID: 2, Email: "p@x.org"}
	_, err := issuer.Issue(app)
	assert.Error(t, err)
	assert.Nil(t, app.SessionToken)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("ABC", "ABC"))
	assert.False(t, Equal("ABC", "ABD"))
	assert.False(t, Equal("", "ABC"))
}
