package domain

import (
	"encoding/json"
	"fmt"

	restaurantdomain "github.com/smallbiznis/tablebill/internal/restaurant/domain"
	"gorm.io/datatypes"
)

// Metadata is a tagged union keyed by invoice type. Exactly one variant is set.
type Metadata struct {
	Kind       InvoiceType         `json:"kind"`
	ExtraTable *ExtraTableMetadata `json:"extra_table,omitempty"`
	Term       *TermMetadata       `json:"term,omitempty"`
}

// ExtraTableMetadata snapshots the basis that justified the charge.
type ExtraTableMetadata struct {
	BasisTableCount int                              `json:"basis_table_count"`
	LocationDeltas  []restaurantdomain.LocationDelta `json:"location_deltas"`
}

// TermMetadata covers RENEWAL, EXTENSION and MONTHLY.
type TermMetadata struct {
	MonthsAdded int `json:"months_added"`
}

func NewExtraTableMetadata(basis int, deltas []restaurantdomain.LocationDelta) Metadata {
	return Metadata{
		Kind:       InvoiceTypeExtraTable,
		ExtraTable: &ExtraTableMetadata{BasisTableCount: basis, LocationDeltas: deltas},
	}
}

func NewTermMetadata(kind InvoiceType, months int) Metadata {
	return Metadata{Kind: kind, Term: &TermMetadata{MonthsAdded: months}}
}

func (m Metadata) Validate() error {
	switch m.Kind {
	case InvoiceTypeExtraTable:
		if m.ExtraTable == nil || m.Term != nil {
			return fmt.Errorf("%w: extra table metadata expected", ErrInvalidMetadata)
		}
		if m.ExtraTable.BasisTableCount < 1 {
			return fmt.Errorf("%w: basis table count must be positive", ErrInvalidMetadata)
		}
	case InvoiceTypeRenewal, InvoiceTypeExtension, InvoiceTypeMonthly:
		if m.Term == nil || m.ExtraTable != nil {
			return fmt.Errorf("%w: term metadata expected", ErrInvalidMetadata)
		}
		if m.Term.MonthsAdded < 1 {
			return fmt.Errorf("%w: months added must be positive", ErrInvalidMetadata)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidMetadata, m.Kind)
	}
	return nil
}

func EncodeMetadata(m Metadata) (datatypes.JSON, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func DecodeMetadata(raw datatypes.JSON) (Metadata, error) {
	var m Metadata
	if len(raw) == 0 {
		return m, ErrInvalidMetadata
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return m, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if err := m.Validate(); err != nil {
		return m, err
	}
	return m, nil
}
