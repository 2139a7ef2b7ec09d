package models

import "time"

// CycleRecord is the persisted summary of one dispatch cycle.
type CycleRecord struct {
	CycleID    string `gorm:"primaryKey"`
	Trigger    string
	Class      string
	Status     string
	Recipients int
	Delivered  int
	Transient  int
	Permanent  int
	Detail     string
	UpdatedAt  time.Time
}

func (CycleRecord) TableName() string { return "dispatch_cycles" }
