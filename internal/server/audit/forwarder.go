// Package audit ships committed audit entries out of the database: to a
// Kafka topic for SIEM consumers and to S3-compatible storage as JSON-lines
// exports. The database audit_log table stays the system of record.
package audit

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/vaultkeeper/internal/server/models"
)

// Forwarder receives entries after their transaction committed. Failures
// are reported to the caller but never undo the operation.
type Forwarder interface {
	Forward(ctx context.Context, entries []*models.AuditEntry) error
	Close() error
}

type NopForwarder struct{}

func (NopForwarder) Forward(context.Context, []*models.AuditEntry) error { return nil }
func (NopForwarder) Close() error                                        { return nil }

// EncodeJSONLines writes one JSON object per entry, newline-terminated.
func EncodeJSONLines(entries []*models.AuditEntry) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
