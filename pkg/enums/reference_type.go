package enums

import "fmt"

// ReferenceType names the business document a stock movement traces back to.
type ReferenceType string

const (
	ReferenceTypeReservation        ReferenceType = "reservation"
	ReferenceTypeReservationRelease ReferenceType = "reservation_release"
	ReferenceTypeFulfillment        ReferenceType = "fulfillment"
	ReferenceTypeReceiving          ReferenceType = "receiving"
	ReferenceTypeWarehouseTransfer  ReferenceType = "warehouse_transfer"
	ReferenceTypeConsistencyFix     ReferenceType = "consistency_fix"
	ReferenceTypeManual             ReferenceType = "manual"
)

var validReferenceTypes = []ReferenceType{
	ReferenceTypeReservation,
	ReferenceTypeReservationRelease,
	ReferenceTypeFulfillment,
	ReferenceTypeReceiving,
	ReferenceTypeWarehouseTransfer,
	ReferenceTypeConsistencyFix,
	ReferenceTypeManual,
}

// IsValid reports whether the value matches the canonical reference type enum.
func (t ReferenceType) IsValid() bool {
	for _, candidate := range validReferenceTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseReferenceType converts raw input into ReferenceType.
func ParseReferenceType(value string) (ReferenceType, error) {
	for _, candidate := range validReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reference type %q", value)
}
