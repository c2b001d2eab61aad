package ingest

// CreateVisitDTO starts a visit. ID is optional: the mobile app supplies its
// own UUID so offline retries stay idempotent.
type CreateVisitDTO struct {
	ID         string `json:"id"`
	OwnerRef   string `json:"owner_ref"`
	Label      string `json:"label"`
	MaxMinutes int    `json:"max_minutes"`
}

// AppendLocationDTO is one location sample from the app. Lat/Lng are
// pointers so a zero coordinate is distinguishable from an absent one.
type AppendLocationDTO struct {
	Lat      *float64 `json:"lat" binding:"required"`
	Lng      *float64 `json:"lng" binding:"required"`
	Accuracy *float64 `json:"accuracy"`
}

// EndDTO names who or what ended a visit or episode.
type EndDTO struct {
	EndedBy string `json:"ended_by"`
}
