package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// Reasons an invoice is queued for export.
const (
	ReasonUploaded    = "uploaded"
	ReasonItemUpdated = "item_updated"
	ReasonRetry       = "retry"
)

// InvoiceSyncMessage names an invoice to export. The worker loads the
// invoice and its items from the store, so the message stays small.
type InvoiceSyncMessage struct {
	InvoiceID string    `json:"invoice_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewInvoiceSyncMessage(invoiceID, reason string) *InvoiceSyncMessage {
	return &InvoiceSyncMessage{
		InvoiceID: invoiceID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *InvoiceSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvoiceSyncMessageFromJSON decodes a message and rejects one without an
// invoice id.
func InvoiceSyncMessageFromJSON(data []byte) (*InvoiceSyncMessage, error) {
	var msg InvoiceSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.InvoiceID == "" {
		return nil, errors.New("message has no invoice_id")
	}
	return &msg, nil
}
