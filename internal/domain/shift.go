package domain

import "time"

type Shift struct {
	Code        int32     `json:"code"`
	Description string    `json:"description"`
	StartTime   string    `json:"startTime"` // HH:MM
	EndTime     string    `json:"endTime"`
	Hours       float64   `json:"hours"`
	CreatedAt   time.Time `json:"createdAt"`
	Version     int32     `json:"-"`
}
