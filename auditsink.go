package netoff

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue/queueerror"
	"github.com/rs/xid"
)

// AuditEventKind names a point in a simulation or session lifecycle an
// AuditSink records.
type AuditEventKind string

const (
	AuditSessionStarted   AuditEventKind = "session_started"
	AuditSessionEnded     AuditEventKind = "session_ended"
	AuditSimAdded         AuditEventKind = "sim_added"
	AuditSimInitialized   AuditEventKind = "sim_initialized"
	AuditSimulationPaused AuditEventKind = "sim_paused"
	AuditSimulationReset  AuditEventKind = "sim_reset"
)

// AuditEvent is one record an AuditSink accepts. SimID is -1 for
// session-scoped events that aren't about a particular simulation.
type AuditEvent struct {
	Session string
	SimID   int32
	Kind    AuditEventKind
}

// AuditSink is C12: an optional worker-side sink emitting one record per
// simulation lifecycle event, independent of and parallel to the netoff
// wire protocol itself.
type AuditSink interface {
	Emit(evt AuditEvent)
}

// AzureQueueAuditSink implements AuditSink by posting one base64 JSON
// message per event to an Azure Storage Queue, adapted from the teacher's
// queueDriver. Emit performs the enqueue synchronously on the caller's
// goroutine, so the calling protocol step waits for it; on a transport
// failure it logs and drops the event rather than returning an error, since
// audit delivery is best-effort.
type AzureQueueAuditSink struct {
	ctx    context.Context
	client *azqueue.QueueClient
	logger *slog.Logger
}

// NewAzureQueueAuditSink builds an AuditSink posting to the given queue
// client. The queue is created if absent.
func NewAzureQueueAuditSink(ctx context.Context, client *azqueue.QueueClient, logger *slog.Logger) (*AzureQueueAuditSink, error) {
	if _, err := client.Create(ctx, nil); err != nil && !queueerror.HasCode(err, queueerror.QueueAlreadyExists) {
		return nil, fmt.Errorf("netoff: audit sink create queue: %w", err)
	}
	return &AzureQueueAuditSink{ctx: ctx, client: client, logger: logger}, nil
}

func (s *AzureQueueAuditSink) Emit(evt AuditEvent) {
	record := struct {
		ID      string         `json:"id"`
		Session string         `json:"session"`
		SimID   int32          `json:"sim_id"`
		Kind    AuditEventKind `json:"kind"`
	}{ID: xid.New().String(), Session: evt.Session, SimID: evt.SimID, Kind: evt.Kind}

	body, err := json.Marshal(record)
	if err != nil {
		return
	}
	if _, err := s.client.EnqueueMessage(s.ctx, string(body), nil); err != nil && s.logger != nil {
		s.logger.Warn("netoff: audit sink enqueue failed", "err", err, "kind", evt.Kind)
	}
}
