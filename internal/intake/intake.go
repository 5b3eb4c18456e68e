// Package intake decides whether uploaded documents are acceptable, names them
// for storage and persists them all-or-nothing before the owning application
// record exists.
package intake

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/blob"
	"github.com/dharsanguruparan/RestorePortal/internal/model"
)

// Upload is one candidate artifact from a registration request.
type Upload struct {
	Kind     model.ArtifactKind
	Filename string
	Data     []byte
}

// Validator checks uploads against the extension whitelist and size limit and
// writes accepted ones to the blob store.
type Validator struct {
	allowed map[string]struct{}
	maxSize int64
	blobs   blob.Store
	namer   *namer
	log     logrus.FieldLogger
}

// Option customizes a Validator.
type Option func(*Validator)

// WithClock overrides the time source used in stored names.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.namer.now = now }
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(v *Validator) { v.log = log }
}

// New builds a Validator. A non-positive maxSize disables the size check.
func New(blobs blob.Store, extensions []string, maxSize int64, opts ...Option) *Validator {
	allowed := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		allowed[ext] = struct{}{}
	}
	v := &Validator{
		allowed: allowed,
		maxSize: maxSize,
		blobs:   blobs,
		namer:   newNamer(time.Now),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Allowed reports whether filename carries a whitelisted extension.
func (v *Validator) Allowed(filename string) bool {
	ext := Extension(filename)
	if ext == "" {
		return false
	}
	_, ok := v.allowed[ext]
	return ok
}

// Check validates a single upload and returns its sanitized base name.
func (v *Validator) Check(u Upload) (string, error) {
	if !u.Kind.Valid() {
		return "", model.InvalidFileError{Kind: u.Kind, Reason: "unknown document kind"}
	}
	if u.Filename == "" {
		return "", model.InvalidFileError{Kind: u.Kind, Reason: "missing filename"}
	}
	if !v.Allowed(u.Filename) {
		return "", model.InvalidFileError{Kind: u.Kind, Reason: "file type not allowed"}
	}
	if v.maxSize > 0 && int64(len(u.Data)) > v.maxSize {
		return "", model.InvalidFileError{Kind: u.Kind, Reason: "file exceeds limit"}
	}
	safe := SanitizeFilename(u.Filename)
	// Sanitizing can strip the name down to nothing or eat the extension.
	if !v.Allowed(safe) {
		return "", model.InvalidFileError{Kind: u.Kind, Reason: "unsafe filename"}
	}
	return safe, nil
}

// StoredName composes the collision-free name for an accepted upload.
func (v *Validator) StoredName(applicationID int64, kind model.ArtifactKind, sanitized string) string {
	return v.namer.name(applicationID, kind, sanitized)
}

// CheckAll validates a whole request without touching storage and returns
// the sanitized names in upload order. A kind may appear only once.
func (v *Validator) CheckAll(uploads []Upload) ([]string, error) {
	seen := make(map[model.ArtifactKind]bool, len(uploads))
	names := make([]string, 0, len(uploads))
	for _, u := range uploads {
		if seen[u.Kind] {
			return nil, model.InvalidFileError{Kind: u.Kind, Reason: "duplicate document"}
		}
		seen[u.Kind] = true
		safe, err := v.Check(u)
		if err != nil {
			return nil, err
		}
		names = append(names, safe)
	}
	return names, nil
}

// Persist validates every upload before writing any of them, then stores them
// and returns the kind → stored name map. If a write fails, artifacts already
// written for this call are removed.
func (v *Validator) Persist(ctx context.Context, applicationID int64, uploads []Upload) (map[model.ArtifactKind]string, error) {
	type accepted struct {
		upload Upload
		name   string
	}
	names, err := v.CheckAll(uploads)
	if err != nil {
		return nil, err
	}
	ready := make([]accepted, 0, len(uploads))
	for i, u := range uploads {
		ready = append(ready, accepted{upload: u, name: v.StoredName(applicationID, u.Kind, names[i])})
	}

	files := make(map[model.ArtifactKind]string, len(ready))
	for _, a := range ready {
		contentType := http.DetectContentType(a.upload.Data)
		err := v.blobs.Put(ctx, a.name, bytes.NewReader(a.upload.Data), int64(len(a.upload.Data)), contentType)
		if err != nil {
			v.Discard(ctx, files)
			return nil, fmt.Errorf("store %s: %w", a.upload.Kind, err)
		}
		files[a.upload.Kind] = a.name
		v.log.WithFields(logrus.Fields{
			"application_id": applicationID,
			"kind":           a.upload.Kind,
			"stored_name":    a.name,
			"bytes":          len(a.upload.Data),
		}).Debug("artifact stored")
	}
	return files, nil
}

// Discard removes stored artifacts that will not be referenced by a record.
// Failures are logged, not returned.
func (v *Validator) Discard(ctx context.Context, files map[model.ArtifactKind]string) {
	for kind, name := range files {
		if err := v.blobs.Delete(ctx, name); err != nil {
			v.log.WithError(err).WithField("kind", kind).Warn("remove orphaned artifact")
		}
	}
}

// namer issues stored names of the form {id}_{kind}_{unix}_{name}. When the
// same name would be issued twice within one second, later ones get a -N
// suffix on the timestamp segment.
type namer struct {
	mu     sync.Mutex
	now    func() time.Time
	second int64
	issued map[string]int
}

func newNamer(now func() time.Time) *namer {
	return &namer{now: now, issued: make(map[string]int)}
}

func (n *namer) name(applicationID int64, kind model.ArtifactKind, sanitized string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	ts := n.now().Unix()
	if ts != n.second {
		n.second = ts
		n.issued = make(map[string]int)
	}
	stamp := strconv.FormatInt(ts, 10)
	base := fmt.Sprintf("%d_%s_%s_%s", applicationID, kind, stamp, sanitized)
	count := n.issued[base]
	n.issued[base] = count + 1
	if count == 0 {
		return base
	}
	return fmt.Sprintf("%d_%s_%s-%d_%s", applicationID, kind, stamp, count, sanitized)
}
