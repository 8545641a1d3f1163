package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditRun is the write-once snapshot persisted by each full quality sweep.
type AuditRun struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StartedAt    time.Time  `gorm:"column:started_at;not null" json:"startedAt"`
	FinishedAt   *time.Time `gorm:"column:finished_at" json:"finishedAt,omitempty"`
	Checked      int        `gorm:"column:checked" json:"checked"`
	Fixed        int        `gorm:"column:fixed" json:"fixed"`
	Flagged      int        `gorm:"column:flagged" json:"flagged"`
	Quarantined  int        `gorm:"column:quarantined" json:"quarantined"`
	BlogsChecked int        `gorm:"column:blogs_checked" json:"blogsChecked"`
	Failed       int        `gorm:"column:failed" json:"failed"`
	CreatedAt    time.Time  `gorm:"not null" json:"createdAt"`
}

func (AuditRun) TableName() string { return "audit_run" }

// AuditIssue is one detected problem, append-only, linked to its run.
type AuditIssue struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RunID     uuid.UUID `gorm:"type:uuid;index;not null" json:"runId"`
	RecordID  string    `gorm:"column:record_id;index" json:"recordId"`
	Field     string    `gorm:"column:field" json:"field"`
	Kind      string    `gorm:"column:kind" json:"kind"`
	Detail    string    `gorm:"column:detail" json:"detail"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (AuditIssue) TableName() string { return "audit_issue" }

// QuarantineRecord holds a copy of a record that failed schema validation,
// with the validation issues attached. Never auto-deleted.
type QuarantineRecord struct {
	ID         uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	Collection string                           `gorm:"column:collection;index" json:"collection"`
	RecordID   string                           `gorm:"column:record_id;index" json:"recordId"`
	Payload    datatypes.JSON                   `gorm:"column:payload;type:jsonb" json:"payload"`
	Issues     datatypes.JSONType[[]FieldIssue] `gorm:"column:issues;type:jsonb" json:"issues"`
	CreatedAt  time.Time                        `gorm:"not null" json:"createdAt"`
}

func (QuarantineRecord) TableName() string { return "quarantine_record" }
