package driver

import (
	"time"

	driverDatamodel "github.com/frahmantamala/fleet-ledger/internal/core/datamodel/driver"
)

// Driver is the directory entry the ledger reads: who owes, and under which licence.
type Driver struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	LicenseNumber string    `json:"license_number"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func ToDataModel(d *Driver) *driverDatamodel.Driver {
	return &driverDatamodel.Driver{
		ID:            d.ID,
		Name:          d.Name,
		Phone:         d.Phone,
		LicenseNumber: d.LicenseNumber,
		IsActive:      d.IsActive,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func FromDataModel(d *driverDatamodel.Driver) *Driver {
	return &Driver{
		ID:            d.ID,
		Name:          d.Name,
		Phone:         d.Phone,
		LicenseNumber: d.LicenseNumber,
		IsActive:      d.IsActive,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}
