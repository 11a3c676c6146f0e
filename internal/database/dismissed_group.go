package database

import (
	"strings"
	"time"
)

// DismissedGroup records a reviewer's judgement that a set of lessons are not
// duplicates. MemberKey is the sorted, comma-joined id set and is unique.
type DismissedGroup struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	MemberKey       string    `gorm:"type:text;not null;uniqueIndex" json:"member_key"`
	MemberCount     int       `gorm:"not null" json:"member_count"`
	DetectionMethod string    `gorm:"type:varchar(32)" json:"detection_method"`
	Notes           string    `gorm:"type:text" json:"notes"`
	DismissedBy     string    `gorm:"type:varchar(100)" json:"dismissed_by"`
	CreatedAt       time.Time `json:"created_at"`
}

func (DismissedGroup) TableName() string {
	return "dismissed_groups"
}

// MemberIDs splits the member key back into lesson ids
func (d *DismissedGroup) MemberIDs() []string {
	if d.MemberKey == "" {
		return nil
	}
	return strings.Split(d.MemberKey, ",")
}
