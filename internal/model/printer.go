// internal/model/printer.go
package model

import "time"

// PrinterRecord is a persisted printer registration
type PrinterRecord struct {
	ID        string        `json:"id" db:"id"`
	Profile   DeviceProfile `json:"profile" db:"profile"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}
