// Package audit writes decision records for internal command dispatches.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/simshell/internal/models"
	"github.com/fentz26/simshell/internal/store"
)

// Outcomes recorded for a dispatch.
const (
	OutcomeSuccess = "success"
	OutcomeDenied  = "denied"
	OutcomeWarning = "warning"
	OutcomeError   = "error"
)

// Recorder writes audit records for state-relevant actions.
type Recorder struct {
	store *store.Store
}

// NewRecorder creates a new audit recorder.
func NewRecorder(s *store.Store) *Recorder {
	return &Recorder{store: s}
}

// Record writes an audit record. Only a hash of inputs is kept.
func (r *Recorder) Record(ctx context.Context, userID, action string, inputs interface{}, outcome, details string) (*models.AuditRecord, error) {
	return r.store.WriteAudit(ctx, userID, action, hashInputs(inputs), outcome, details)
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
