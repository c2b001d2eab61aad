package models

import "time"

// VisitModel is one safety visit. EndedAt is set once and never cleared: an
// ended visit is terminal.
type VisitModel struct {
	Base
	OwnerRef   string     `json:"owner_ref"  gorm:"index"`
	Label      string     `json:"label"`
	StartedAt  time.Time  `json:"started_at" gorm:"index;not null"`
	EndedAt    *time.Time `json:"ended_at"   gorm:"index"`
	EndedBy    string     `json:"ended_by"`
	MaxMinutes int        `json:"max_minutes"`
}

func (VisitModel) TableName() string { return "visits" }

// Ended reports whether the visit has reached its terminal state.
func (v *VisitModel) Ended() bool { return v.EndedAt != nil }
