package enums

import "fmt"

// DiscrepancyType classifies invariant violations found by the checker.
type DiscrepancyType string

const (
	DiscrepancyTypeShortage DiscrepancyType = "shortage"
	DiscrepancyTypeExcess   DiscrepancyType = "excess"
	DiscrepancyTypeMissing  DiscrepancyType = "missing"
)

var validDiscrepancyTypes = []DiscrepancyType{
	DiscrepancyTypeShortage,
	DiscrepancyTypeExcess,
	DiscrepancyTypeMissing,
}

// IsValid reports whether the value matches the canonical discrepancy type enum.
func (t DiscrepancyType) IsValid() bool {
	for _, candidate := range validDiscrepancyTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseDiscrepancyType converts raw input into DiscrepancyType.
func ParseDiscrepancyType(value string) (DiscrepancyType, error) {
	for _, candidate := range validDiscrepancyTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discrepancy type %q", value)
}
