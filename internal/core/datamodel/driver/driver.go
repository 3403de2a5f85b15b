package driver

import "time"

type Driver struct {
	ID            int64     `gorm:"primaryKey"`
	Name          string    `gorm:"column:name;size:150;not null;index"`
	Phone         string    `gorm:"column:phone;size:30"`
	LicenseNumber string    `gorm:"column:license_number;size:50"`
	IsActive      bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Driver) TableName() string {
	return "drivers"
}
