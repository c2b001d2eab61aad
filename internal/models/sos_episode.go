package models

import "time"

// SosEpisodeModel is one emergency escalation interval inside a visit.
// At most one episode per visit has a null EndedAt at any time; that row is
// what makes the visit "SOS active".
type SosEpisodeModel struct {
	Base
	SessionID string     `json:"session_id" gorm:"type:char(36);index;not null"`
	StartedAt time.Time  `json:"started_at" gorm:"index;not null"`
	EndedAt   *time.Time `json:"ended_at"   gorm:"index"`
	EndedBy   string     `json:"ended_by"`
}

func (SosEpisodeModel) TableName() string { return "sos_episodes" }

// Active reports whether the episode is still open.
func (e *SosEpisodeModel) Active() bool { return e.EndedAt == nil }
