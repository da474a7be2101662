package entities

import (
	"encoding/json"
	"strings"
)

// Catalog fields referenced by query clauses
const (
	FieldName            = "name"
	FieldDescription     = "description"
	FieldBrand           = "brand"
	FieldFurnitureType   = "furniture_type"
	FieldRoomType        = "room_type"
	FieldCurrentPrice    = "current_price"
	FieldDiscountPercent = "discount_percent"
	FieldCreatedAt       = "created_at"
	FieldNewProduct      = "new_product"
	FieldOnClearance     = "on_clearance"
)

// PatternOp is the comparison applied by a pattern clause
type PatternOp string

const (
	// PatternContains is a case-insensitive substring match
	PatternContains PatternOp = "contains"
	// PatternEquals is an exact, case-sensitive match
	PatternEquals PatternOp = "equals"
	// PatternEqualsFold is a case-insensitive exact match
	PatternEqualsFold PatternOp = "equals_fold"
)

// EqualityClause requires a boolean field to hold Value
type EqualityClause struct {
	Field string `json:"field"`
	Value bool   `json:"value"`
}

// PatternClause matches a text field against Value
type PatternClause struct {
	Field string    `json:"field"`
	Op    PatternOp `json:"op"`
	Value string    `json:"value"`
}

// Matches evaluates the clause against a field value
func (c PatternClause) Matches(fieldValue string) bool {
	switch c.Op {
	case PatternEquals:
		return fieldValue == c.Value
	case PatternEqualsFold:
		return strings.EqualFold(fieldValue, c.Value)
	case PatternContains:
		return strings.Contains(strings.ToLower(fieldValue), strings.ToLower(c.Value))
	}
	return false
}

// PatternGroup is satisfied when any of its clauses matches
type PatternGroup struct {
	Facet   string          `json:"facet"`
	Clauses []PatternClause `json:"clauses"`
}

// RangeClause bounds a numeric field inclusively. A nil Max is unbounded.
type RangeClause struct {
	Field string   `json:"field"`
	Min   float64  `json:"min"`
	Max   *float64 `json:"max,omitempty"`
}

// Contains reports whether v lies within the range
func (r RangeClause) Contains(v float64) bool {
	if v < r.Min {
		return false
	}
	return r.Max == nil || v <= *r.Max
}

// SearchClause is a substring search over several text fields
type SearchClause struct {
	Fields []string `json:"fields"`
	Text   string   `json:"text"`
}

// OrderDirection is ascending or descending
type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

// OrderClause orders results by a single field
type OrderClause struct {
	Field     string         `json:"field"`
	Direction OrderDirection `json:"direction"`
	NullsLast bool           `json:"nulls_last,omitempty"`
	// ExcludeNulls drops rows whose order field is null
	ExcludeNulls bool `json:"exclude_nulls,omitempty"`
}

// QueryDescriptor is the structured remote query compiled from a selection.
// Equality clauses and pattern groups are ANDed; clauses inside a group are
// ORed.
type QueryDescriptor struct {
	Equals []EqualityClause `json:"equals"`
	AnyOf  []PatternGroup   `json:"any_of"`
	Price  *RangeClause     `json:"price,omitempty"`
	Search *SearchClause    `json:"search,omitempty"`
	Order  OrderClause      `json:"order"`
}

// CacheKey returns the canonical serialized form of the descriptor
func (d *QueryDescriptor) CacheKey() string {
	data, err := json.Marshal(d)
	if err != nil {
		// every field is a plain value; marshalling cannot fail
		panic(err)
	}
	return string(data)
}
