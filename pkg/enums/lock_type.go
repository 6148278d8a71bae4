package enums

import "fmt"

// LockType maps to the lock_type_enum enum in Postgres.
type LockType string

const (
	LockTypeReservation LockType = "reservation"
	LockTypeAdjustment  LockType = "adjustment"
	LockTypeTransfer    LockType = "transfer"
)

var validLockTypes = []LockType{
	LockTypeReservation,
	LockTypeAdjustment,
	LockTypeTransfer,
}

// IsValid reports whether the value matches the canonical lock type enum.
func (t LockType) IsValid() bool {
	for _, candidate := range validLockTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseLockType converts raw input into LockType.
func ParseLockType(value string) (LockType, error) {
	for _, candidate := range validLockTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid lock type %q", value)
}
