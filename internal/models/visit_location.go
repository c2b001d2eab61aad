package models

// VisitLocationModel is one location observation for a visit. Rows are
// append-only; readers only care about the newest one plus live inserts.
type VisitLocationModel struct {
	Base
	SessionID string   `json:"session_id" gorm:"type:char(36);index:idx_visit_locations_session_created;not null"`
	Lat       float64  `json:"lat"        gorm:"not null"`
	Lng       float64  `json:"lng"        gorm:"not null"`
	Accuracy  *float64 `json:"accuracy"`
}

func (VisitLocationModel) TableName() string { return "visit_locations" }
