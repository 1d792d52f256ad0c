package facade

import "errors"

var (
	ErrNilNetIface      = errors.New("facade: net iface is nil")
	ErrZeroVendorCode   = errors.New("facade: vendor_code must be non-zero")
	ErrZeroModelCode    = errors.New("facade: model_code must be non-zero")
	ErrBadOccupiedCount = errors.New("facade: num_occupied_stations out of range")
)
