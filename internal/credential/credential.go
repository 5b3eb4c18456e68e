// Package credential mints the professional ID and session token handed to an
// organization when it logs in.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

// TokenLength is the length of every session token.
const TokenLength = 16

// Mode selects how session tokens are derived.
type Mode string

const (
	// ModeDigest derives the token from sha256(email ++ unix ++ id). Tokens
	// are reproducible by anyone who knows those inputs.
	ModeDigest Mode = "digest"
	// ModeRandom draws the token from crypto/rand with the same shape.
	ModeRandom Mode = "random"
)

// Credentials is one issued professional ID / session token pair.
type Credentials struct {
	ProfessionalID string
	SessionToken   string
	IssuedAt       time.Time
}

// Issuer mints credentials.
type Issuer struct {
	now    func() time.Time
	mode   Mode
	random io.Reader

	mu sync.Mutex
	// last issuance second per application id.
	last map[int64]int64
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithClock overrides the issuance clock.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithRandom overrides the entropy source used in ModeRandom.
func WithRandom(r io.Reader) Option {
	return func(i *Issuer) { i.random = r }
}

// NewIssuer creates an Issuer. Unknown modes fall back to ModeDigest.
func NewIssuer(mode Mode, opts ...Option) *Issuer {
	if mode != ModeRandom {
		mode = ModeDigest
	}
	i := &Issuer{now: time.Now, mode: mode, random: rand.Reader, last: make(map[int64]int64)}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints a fresh pair for app and writes it onto the record, replacing
// whatever was there before. The new token never equals the one it replaces:
// in ModeDigest the issuance second moves forward past the last one used for
// the same application.
func (i *Issuer) Issue(app *model.Application) (Credentials, error) {
	issuedAt := i.now()
	t := i.stamp(app.ID, issuedAt.Unix())
	var current string
	if app.SessionToken != nil {
		current = *app.SessionToken
	}
	creds := Credentials{IssuedAt: issuedAt}
	switch i.mode {
	case ModeRandom:
		for {
			token, err := RandomToken(i.random)
			if err != nil {
				return Credentials{}, err
			}
			if token != current {
				creds.SessionToken = token
				break
			}
		}
	default:
		token := DigestToken(app.Email, t, app.ID)
		if token == current {
			// Issued by another process in the same second.
			t = i.stamp(app.ID, t+1)
			token = DigestToken(app.Email, t, app.ID)
		}
		creds.SessionToken = token
	}
	creds.ProfessionalID = ProfessionalID(app.OrgType, app.ID, t)
	app.SetCredentials(creds.ProfessionalID, creds.SessionToken)
	return creds, nil
}

// stamp returns the issuance second for id: unix, or one past the previous
// second issued for id when that is not earlier.
func (i *Issuer) stamp(id, unix int64) int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if last, ok := i.last[id]; ok && unix <= last {
		unix = last + 1
	}
	i.last[id] = unix
	return unix
}

// TypeCode is NGO for NGOs and PAN for everything else.
func TypeCode(orgType model.OrgType) string {
	if orgType == model.OrgNGO {
		return "NGO"
	}
	return "PAN"
}

// ProfessionalID formats {TYPECODE}-{id:04}-{last six digits of unix}.
func ProfessionalID(orgType model.OrgType, id int64, unix int64) string {
	stamp := strconv.FormatInt(unix, 10)
	if len(stamp) > 6 {
		stamp = stamp[len(stamp)-6:]
	} else {
		stamp = strings.Repeat("0", 6-len(stamp)) + stamp
	}
	return fmt.Sprintf("%s-%04d-%s", TypeCode(orgType), id, stamp)
}

// DigestToken returns the first 16 upper-case hex characters of
// sha256(email ++ unix ++ id).
func DigestToken(email string, unix int64, id int64) string {
	sum := sha256.Sum256([]byte(email + strconv.FormatInt(unix, 10) + strconv.FormatInt(id, 10)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))[:TokenLength]
}

// RandomToken returns 16 upper-case hex characters read from r.
func RandomToken(r io.Reader) (string, error) {
	buf := make([]byte, TokenLength/2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Equal compares a presented token with the stored one in constant time.
func Equal(presented, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
