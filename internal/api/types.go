package api

import (
	"time"

	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
)

// ========== Duplicate Review Types ==========

// LessonResolutionRequest is one entry decision inside ResolveGroupRequest.
type LessonResolutionRequest struct {
	EntryID       string `json:"entry_id" validate:"required,max=64"`
	Action        string `json:"action" validate:"required,oneof=keep archive"`
	ArchiveTarget string `json:"archive_target,omitempty" validate:"omitempty,max=64"`
}

// ResolveGroupRequest is the request body for POST /api/duplicates/resolve.
// IncludeResolved must match the include_resolved of the listing GroupID
// was taken from.
type ResolveGroupRequest struct {
	GroupID         string                    `json:"group_id" validate:"required,group_id"`
	IncludeResolved bool                      `json:"include_resolved,omitempty"`
	Resolutions     []LessonResolutionRequest `json:"resolutions" validate:"required,min=1,dive"`
	Notes           string                    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// DismissGroupRequest is the request body for POST /api/duplicates/dismiss.
type DismissGroupRequest struct {
	MemberIDs       []string `json:"member_ids" validate:"required,min=2,dive,required,max=64"`
	DetectionMethod string   `json:"detection_method,omitempty" validate:"omitempty,detection_method"`
	Notes           string   `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// DismissGroupResponse is the response body for POST /api/duplicates/dismiss.
type DismissGroupResponse struct {
	Success   bool                     `json:"success"`
	Error     string                   `json:"error,omitempty"`
	Dismissal *database.DismissedGroup `json:"dismissal,omitempty"`
}

// CanonicalResponse is the response body for GET /api/duplicates/canonical/{id}.
type CanonicalResponse struct {
	LessonID    string                      `json:"lesson_id"`
	CanonicalID string                      `json:"canonical_id"`
	Chain       []database.CanonicalMapping `json:"chain"`
}

// ========== Settings Types ==========

// UpdateDedupSettingsRequest is the request body for PUT /api/settings/duplicates.
type UpdateDedupSettingsRequest struct {
	EmbeddingThreshold       *float64 `json:"embedding_threshold" validate:"omitempty,gt=0,lte=1"`
	TitleMatchEnabled        *bool    `json:"title_match_enabled"`
	DetectionJobEnabled      *bool    `json:"detection_job_enabled"`
	DetectionIntervalMinutes *int     `json:"detection_interval_minutes" validate:"omitempty,min=1,max=1440"`
	MaxPairs                 *int     `json:"max_pairs" validate:"omitempty,min=1,max=1000000"`
}

// ========== Auth Types ==========

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// ========== Pagination Types ==========

// PaginationMeta contains pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PaginatedResponse wraps a list response with pagination metadata.
type PaginatedResponse struct {
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// ========== Mapper Output Types ==========

// LessonSummary is the reviewer-facing view of a group member. The lesson
// body is left out; the summary is cut for list display.
type LessonSummary struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Summary      string                `json:"summary"`
	Subject      string                `json:"subject"`
	Author       string                `json:"author"`
	Status       database.LessonStatus `json:"status"`
	SupersededBy *string               `json:"superseded_by,omitempty"`
	ContentHash  string                `json:"content_hash"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
}

// DuplicateGroupResponse is one group in GET /api/duplicates.
type DuplicateGroupResponse struct {
	GroupID         string                     `json:"group_id"`
	MemberIDs       []string                   `json:"member_ids"`
	Pairs           []duplicates.DuplicatePair `json:"pairs"`
	DetectionMethod duplicates.DetectionMethod `json:"detection_method"`
	Confidence      duplicates.Confidence      `json:"confidence"`
	AvgSimilarity   *float64                   `json:"avg_similarity"`
	Members         []LessonSummary            `json:"members"`
}
