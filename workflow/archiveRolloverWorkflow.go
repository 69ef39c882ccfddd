package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/pos_ledger/config"
	"github.com/mmdatafocus/pos_ledger/models"
	"github.com/mmdatafocus/pos_ledger/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const EventArchiveSealed = "ArchiveSealed"

// ArchiveSealedEvent is the payload published after a period is sealed.
type ArchiveSealedEvent struct {
	ArchiveID     int       `json:"archive_id"`
	Path          string    `json:"path"`
	ObjectName    string    `json:"object_name,omitempty"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Checks        int       `json:"checks"`
	Drawers       int       `json:"drawers"`
	CorrelationId string    `json:"correlation_id"`
}

// ColdStore keeps a copy of sealed archive files off the terminal.
type ColdStore interface {
	Upload(ctx context.Context, objectName, path string) error
}

// EventPublisher delivers ledger events and returns the message id.
type EventPublisher interface {
	Publish(ctx context.Context, ev config.LedgerEvent) (string, error)
}

// GCSColdStore uploads archives to a Google Cloud Storage bucket.
type GCSColdStore struct {
	Bucket string
}

func (s GCSColdStore) Upload(ctx context.Context, objectName, path string) error {
	return utils.UploadArchiveToGCS(ctx, s.Bucket, objectName, path)
}

// PubSubPublisher publishes ledger events on a Pub/Sub topic.
type PubSubPublisher struct {
	Topic string
}

func (p PubSubPublisher) Publish(ctx context.Context, ev config.LedgerEvent) (string, error) {
	return config.PublishLedgerEvent(ctx, p.Topic, ev)
}

// ArchiveObjectName is the cold storage object for archive id.
func ArchiveObjectName(id int) string {
	return "archives/" + models.ArchiveFileName(id)
}

// ArchiveRollover seals the current period and hands the new archive to the
// cold store, the event topic and the catalog. Any of the three may be nil.
type ArchiveRollover struct {
	Sys       *models.System
	Cold      ColdStore
	Publisher EventPublisher
	Catalog   models.ArchiveCatalog
	Logger    *logrus.Logger
	Tracer    trace.Tracer
}

func NewArchiveRollover(sys *models.System, logger *logrus.Logger) *ArchiveRollover {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &ArchiveRollover{
		Sys:    sys,
		Logger: logger,
		Tracer: otel.Tracer("pos-ledger"),
	}
}

// RolloverResult reports what happened after the seal. The seal itself is
// durable once Archive is set; follow-up failures are listed in Err.
type RolloverResult struct {
	Archive       *models.Archive
	ObjectName    string
	MessageId     string
	Cataloged     bool
	CorrelationId string
	Err           error
}

// Run seals the period ending at end (zero means now). The caller must hold
// the ledger for the duration of the call.
func (r *ArchiveRollover) Run(ctx context.Context, end time.Time) (*RolloverResult, error) {
	tracer := r.Tracer
	if tracer == nil {
		tracer = otel.Tracer("pos-ledger")
	}
	ctx, span := tracer.Start(ctx, "ArchiveRollover.Run")
	defer span.End()

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
		ctx = utils.SetCorrelationIdInContext(ctx, cid)
	}
	span.SetAttributes(attribute.String("correlation_id", cid))

	a, err := r.Sys.SealPeriod(end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "seal failed")
		config.LogError(r.Logger, "workflow", "ArchiveRollover.Run", "SealPeriod", cid, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("archive_id", a.ID))

	res := &RolloverResult{Archive: a, CorrelationId: cid}
	var errs []error

	if r.Cold != nil && config.ColdStorageEnabled() {
		objectName := ArchiveObjectName(a.ID)
		if err := r.Cold.Upload(ctx, objectName, a.Path()); err != nil {
			errs = append(errs, fmt.Errorf("cold storage upload: %w", err))
			r.logFailure(a, cid, "cold storage upload failed", err)
		} else {
			res.ObjectName = objectName
		}
	}

	if r.Publisher != nil {
		msgID, err := r.publish(ctx, a, res.ObjectName, cid)
		if err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", EventArchiveSealed, err))
			r.logFailure(a, cid, "archive sealed event not published", err)
		}
		res.MessageId = msgID
	}

	if r.Catalog != nil && config.CatalogEnabled() {
		entry := models.NewArchiveCatalogEntry(a, r.Sys.Host)
		entry.ObjectName = res.ObjectName
		entry.CorrelationId = cid
		if err := r.Catalog.Record(ctx, entry); err != nil {
			errs = append(errs, fmt.Errorf("catalog: %w", err))
			r.logFailure(a, cid, "archive catalog entry not recorded", err)
		} else {
			res.Cataloged = true
		}
	}

	res.Err = errors.Join(errs...)
	if res.Err != nil {
		span.RecordError(res.Err)
	}
	r.Logger.WithFields(logrus.Fields{
		"field":          "ArchiveRollover",
		"archive_id":     a.ID,
		"start":          a.StartTime.Format(time.RFC3339),
		"end":            a.EndTime.Format(time.RFC3339),
		"object_name":    res.ObjectName,
		"message_id":     res.MessageId,
		"correlation_id": cid,
	}).Info("period sealed")
	return res, nil
}

func (r *ArchiveRollover) publish(ctx context.Context, a *models.Archive, objectName, cid string) (string, error) {
	s := a.Summary()
	payload, err := json.Marshal(ArchiveSealedEvent{
		ArchiveID:     s.ID,
		Path:          s.Path,
		ObjectName:    objectName,
		StartTime:     s.StartTime,
		EndTime:       s.EndTime,
		Checks:        s.Checks,
		Drawers:       s.Drawers,
		CorrelationId: cid,
	})
	if err != nil {
		return "", err
	}
	return r.Publisher.Publish(ctx, config.LedgerEvent{
		Type:          EventArchiveSealed,
		Host:          r.Sys.Host,
		OccurredAt:    r.Sys.Now().UTC(),
		Payload:       payload,
		CorrelationId: cid,
	})
}

func (r *ArchiveRollover) logFailure(a *models.Archive, cid, msg string, err error) {
	r.Logger.WithFields(logrus.Fields{
		"field":          "ArchiveRollover",
		"archive_id":     a.ID,
		"correlation_id": cid,
	}).Error(msg + ": " + err.Error())
}
