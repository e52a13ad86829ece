package messaging

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types double as routing keys.
const (
	EventInvoiceCreated  = "invoice.created"
	EventInvoiceUpdated  = "invoice.updated"
	EventInvoiceDeleted  = "invoice.deleted"
	EventInvoiceImported = "invoice.imported"

	EventFieldsDiscovered = "schema.fields.discovered"
	EventFieldsReset      = "schema.fields.reset"
)

// Exchange names
const (
	ExchangeInvoiceEvents = "invoice.events"
	ExchangeSchemaEvents  = "schema.events"
	ExchangeDeadLetter    = "dlx.facturo"
)

// ExchangeFor returns the exchange an event type is published on.
func ExchangeFor(eventType string) string {
	if strings.HasPrefix(eventType, "schema.") {
		return ExchangeSchemaEvents
	}
	return ExchangeInvoiceEvents
}

// Event is the envelope of every message.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	TenantID      string          `json:"tenant_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data any) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into v
func (e *Event) UnmarshalData(v any) error {
	return json.Unmarshal(e.Data, v)
}

// InvoiceCreatedEvent is published after a document is stored.
type InvoiceCreatedEvent struct {
	InvoiceID  string `json:"invoice_id"`
	Collection string `json:"collection"`
}

// InvoiceUpdatedEvent is published after a partial update. Fields lists the
// top-level keys that were sent.
type InvoiceUpdatedEvent struct {
	InvoiceID  string   `json:"invoice_id"`
	Collection string   `json:"collection"`
	Fields     []string `json:"fields"`
}

type InvoiceDeletedEvent struct {
	InvoiceID  string `json:"invoice_id"`
	Collection string `json:"collection"`
}

// InvoiceImportedEvent is consumed from the ingestion pipeline. Either
// Document carries the imported invoice inline or InvoiceID names a document
// already stored in Collection.
type InvoiceImportedEvent struct {
	InvoiceID  string         `json:"invoice_id,omitempty"`
	Collection string         `json:"collection"`
	Document   map[string]any `json:"document,omitempty"`
}

// FieldsDiscoveredEvent reports fields found in a sample document.
type FieldsDiscoveredEvent struct {
	Collection string   `json:"collection"`
	FieldIDs   []string `json:"field_ids"`
	Merged     bool     `json:"merged"`
}

type FieldsResetEvent struct {
	Collection string `json:"collection"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.NewString()
}
