package enums

import "fmt"

// MovementType maps to the movement_type_enum enum in Postgres.
type MovementType string

const (
	MovementTypeAdd      MovementType = "add"
	MovementTypeRemove   MovementType = "remove"
	MovementTypeAdjust   MovementType = "adjust"
	MovementTypeTransfer MovementType = "transfer"
)

var validMovementTypes = []MovementType{
	MovementTypeAdd,
	MovementTypeRemove,
	MovementTypeAdjust,
	MovementTypeTransfer,
}

// IsValid reports whether the value matches the canonical movement type enum.
func (t MovementType) IsValid() bool {
	for _, candidate := range validMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMovementType converts raw input into MovementType.
func ParseMovementType(value string) (MovementType, error) {
	for _, candidate := range validMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid movement type %q", value)
}
