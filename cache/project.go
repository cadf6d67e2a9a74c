package cache

// ProjectStatus is the project-wide translation status.
type ProjectStatus int

const (
	ProjectUntranslated ProjectStatus = iota
	ProjectTranslating
	ProjectTranslated
)

// Extras holds the round-aggregated progress counters surfaced on the
// TRANSLATION_UPDATE event and persisted with the project snapshot.
type Extras struct {
	StartTime         float64 `json:"startTime"`
	TotalLine         int     `json:"totalLine"`
	Line              int     `json:"line"`
	TotalTokens       int     `json:"totalTokens"`
	TotalOutputTokens int     `json:"totalOutputTokens"`
	Time              float64 `json:"time"`
}

// Project holds project-level state: overall status and progress
// extras. Invariant: Extras.Line <= Extras.TotalLine once the first
// round has fixed TotalLine.
type Project struct {
	Status ProjectStatus `json:"status"`
	Extras Extras        `json:"extras"`
}
