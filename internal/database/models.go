package database

import (
	"time"
)

// WasteReport is one recorded waste measurement
type WasteReport struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Title      string    `gorm:"column:title;not null"`
	Location   string    `gorm:"column:location;not null;default:''"`
	Author     string    `gorm:"column:author;not null;default:''"`
	Company    string    `gorm:"column:company;not null;default:''"`
	ReportDate time.Time `gorm:"column:report_date;type:date;not null;index"`
	QuantityKg float64   `gorm:"column:quantity_kg;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for WasteReport
func (WasteReport) TableName() string {
	return "waste_reports"
}
