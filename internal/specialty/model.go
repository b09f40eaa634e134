package specialty

// Specialty is the canonical reference record for a medical specialty.
// Reference data: provisioned by an administrative process, never written
// through this engine.
type Specialty struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Doctor belongs to exactly one specialty.
type Doctor struct {
	ID            int64  `json:"doctorId"`
	Name          string `json:"doctorName"`
	Email         string `json:"email"`
	Address       string `json:"address,omitempty"`
	SpecialtyID   int64  `json:"specialtyId"`
	SpecialtyName string `json:"specialty"`
}

// Suggestion is a near-miss candidate surfaced when no specialty clears the
// acceptance threshold ("did you mean ...?").
type Suggestion struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}
