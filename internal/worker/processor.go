package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/RestorePortal/internal/blob"
	"github.com/dharsanguruparan/RestorePortal/internal/intake"
	pdfutil "github.com/dharsanguruparan/RestorePortal/internal/pdf"
	"github.com/dharsanguruparan/RestorePortal/internal/queue"
)

// Reviewer prepares registration documents for the administrative reviewer:
// text is extracted from every stored PDF and written next to it as
// <stored-name>.txt.
type Reviewer struct {
	blobs blob.Store
	log   logrus.FieldLogger
}

// NewReviewer constructs a Reviewer.
func NewReviewer(blobs blob.Store, log logrus.FieldLogger) *Reviewer {
	return &Reviewer{blobs: blobs, log: log}
}

// Handler registers the review task handler for asynq.
func (r *Reviewer) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ReviewDocumentsTask, r.handleReview)
	return mux
}

func (r *Reviewer) handleReview(ctx context.Context, task *asynq.Task) error {
	payload, err := queue.DecodeReviewPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return r.Review(ctx, payload)
}

// Review extracts every PDF of one application. Non-PDF artifacts are
// skipped. The first failure is returned after all files were attempted.
func (r *Reviewer) Review(ctx context.Context, payload queue.ReviewPayload) error {
	kinds := make([]string, 0, len(payload.Files))
	for kind := range payload.Files {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	var firstErr error
	for _, kind := range kinds {
		name := payload.Files[kind]
		log := r.log.WithFields(logrus.Fields{
			"application_id": payload.ApplicationID,
			"kind":           kind,
		})
		if intake.Extension(name) != "pdf" {
			continue
		}
		n, err := r.extract(ctx, name)
		if err != nil {
			log.WithError(err).Warn("document review failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", kind, err)
			}
			continue
		}
		log.WithField("chars", n).Info("document text extracted")
	}
	return firstErr
}

func (r *Reviewer) extract(ctx context.Context, name string) (int, error) {
	rc, err := r.blobs.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	text, err := pdfutil.ExtractFromReader(rc)
	if err != nil {
		return 0, err
	}
	if err := r.blobs.Put(ctx, TextName(name), strings.NewReader(text), int64(len(text)), "text/plain; charset=utf-8"); err != nil {
		return 0, err
	}
	return len(text), nil
}

// TextName is where the extracted text of a stored PDF is kept.
func TextName(storedName string) string {
	return storedName + ".txt"
}
