package models

import "time"

// QRIssuance represents a tokenized verification record for an approved
// subject. The token is the only identifier ever embedded in QR payloads
// or URLs; subject primary keys stay internal.
type QRIssuance struct {
	ID            int64      `json:"id"`
	SubjectKind   string     `json:"subject_kind"`
	SubjectID     int64      `json:"subject_id"`
	Token         string     `json:"token"`
	Image         []byte     `json:"-"` // PNG bytes, served separately
	CreatedAt     time.Time  `json:"created_at"`
	RegeneratedAt *time.Time `json:"regenerated_at,omitempty"`
}
