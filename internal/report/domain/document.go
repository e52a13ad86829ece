package domain

import "time"

// Document is a semi-structured invoice as decoded from JSON. Values are
// map[string]any, []any, string, float64, json.Number, bool or nil.
type Document = map[string]any

// Record is a document together with its store identity.
type Record struct {
	ID        string    `json:"id"`
	Data      Document  `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FlatRow maps FieldDescriptor.ID to the value extracted for it.
type FlatRow = map[string]any

// DocumentIDField addresses the store identity in filters and sort clauses.
const DocumentIDField = "__id__"
