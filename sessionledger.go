package netoff

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// SessionRecord is one row a SessionLedger stores: a confirmed simulation
// registration from the driver's point of view.
type SessionRecord struct {
	SimID           int32
	Path            string
	SelectedInputs  *VariableList
	SelectedOutputs *VariableList
}

// SessionLedger is C13: an optional driver-side record of
// (sim_id, path, selected variable lists), independent of the netoff wire
// protocol, useful for resuming or auditing a run after the process exits.
type SessionLedger interface {
	Record(session string, rec SessionRecord) error
}

// AzureTableSessionLedger implements SessionLedger against a single Azure
// Table, adapted from the teacher's tableDriver: each record becomes one
// entity keyed by (session, sim_id), with each variable list JSON-encoded
// into its own string property rather than the teacher's chunked binary
// properties, since a VariableList is orders of magnitude smaller than the
// blob payloads aztable.go was built to shard.
type AzureTableSessionLedger struct {
	ctx    context.Context
	client *aztables.Client
}

// NewAzureTableSessionLedger builds a SessionLedger backed by client. The
// table is created if absent.
func NewAzureTableSessionLedger(ctx context.Context, client *aztables.Client) (*AzureTableSessionLedger, error) {
	if _, err := client.CreateTable(ctx, nil); err != nil && !isTableAlreadyExists(err) {
		return nil, fmt.Errorf("netoff: session ledger create table: %w", err)
	}
	return &AzureTableSessionLedger{ctx: ctx, client: client}, nil
}

func (l *AzureTableSessionLedger) Record(session string, rec SessionRecord) error {
	inputs, err := json.Marshal(rec.SelectedInputs)
	if err != nil {
		return fmt.Errorf("netoff: session ledger encode selected inputs: %w", err)
	}
	outputs, err := json.Marshal(rec.SelectedOutputs)
	if err != nil {
		return fmt.Errorf("netoff: session ledger encode selected outputs: %w", err)
	}

	entity := aztables.EDMEntity{
		Entity: aztables.Entity{
			PartitionKey: session,
			RowKey:       fmt.Sprintf("%d", rec.SimID),
		},
		Properties: map[string]any{
			"Path":            rec.Path,
			"SelectedInputs":  string(inputs),
			"SelectedOutputs": string(outputs),
		},
	}
	body, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("netoff: session ledger marshal entity: %w", err)
	}
	if _, err := l.client.UpsertEntity(l.ctx, body, &aztables.UpsertEntityOptions{
		UpdateMode: aztables.UpdateModeReplace,
	}); err != nil {
		return fmt.Errorf("netoff: session ledger upsert %s/%d: %w", session, rec.SimID, err)
	}
	return nil
}

// isTableAlreadyExists reports whether err is the Conflict response the
// Azure Tables service returns for a CreateTable call racing an earlier one,
// mirrored from the teacher's direct *azcore.ResponseError check in
// aztable.go rather than a HasCode helper (aztables has none).
func isTableAlreadyExists(err error) bool {
	re, ok := err.(*azcore.ResponseError)
	return ok && re.StatusCode == http.StatusConflict
}
