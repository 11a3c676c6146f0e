package api

import (
	"github.com/lessonbank/dedup/internal/database"
	"github.com/lessonbank/dedup/internal/duplicates"
	"github.com/lessonbank/dedup/internal/services"
	"github.com/lessonbank/dedup/internal/utils"
)

const summaryDisplayLength = 280

// LessonToSummary converts a catalog lesson to its reviewer-facing view.
func LessonToSummary(l database.Lesson) LessonSummary {
	return LessonSummary{
		ID:           l.ID,
		Title:        l.Title,
		Summary:      utils.TruncateText(l.Summary, summaryDisplayLength),
		Subject:      l.Subject,
		Author:       l.Author,
		Status:       l.Status,
		SupersededBy: l.SupersededBy,
		ContentHash:  l.ContentHash,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

// ReviewGroupToResponse converts an enriched group to its response form.
func ReviewGroupToResponse(g services.ReviewGroup) DuplicateGroupResponse {
	members := make([]LessonSummary, len(g.Members))
	for i, m := range g.Members {
		members[i] = LessonToSummary(m)
	}
	return DuplicateGroupResponse{
		GroupID:         g.GroupID,
		MemberIDs:       g.MemberIDs,
		Pairs:           g.Pairs,
		DetectionMethod: g.DetectionMethod,
		Confidence:      g.Confidence,
		AvgSimilarity:   g.AvgSimilarity,
		Members:         members,
	}
}

// ReviewGroupsToResponse converts a detection run, keeping its order.
func ReviewGroupsToResponse(groups []services.ReviewGroup) []DuplicateGroupResponse {
	items := make([]DuplicateGroupResponse, len(groups))
	for i, g := range groups {
		items[i] = ReviewGroupToResponse(g)
	}
	return items
}

// ToGroupResolution converts the request into the domain resolution.
func (r ResolveGroupRequest) ToGroupResolution() duplicates.GroupResolution {
	res := duplicates.GroupResolution{
		GroupID:         r.GroupID,
		IncludeResolved: r.IncludeResolved,
		Resolutions:     make([]duplicates.LessonResolution, len(r.Resolutions)),
		Notes:           r.Notes,
	}
	for i, lr := range r.Resolutions {
		res.Resolutions[i] = duplicates.LessonResolution{
			EntryID:       lr.EntryID,
			Action:        duplicates.Action(lr.Action),
			ArchiveTarget: lr.ArchiveTarget,
		}
	}
	return res
}

// ApplySettingsUpdate copies the fields present in req onto settings.
func ApplySettingsUpdate(settings *database.DedupSettings, req UpdateDedupSettingsRequest) {
	if req.EmbeddingThreshold != nil {
		settings.EmbeddingThreshold = *req.EmbeddingThreshold
	}
	if req.TitleMatchEnabled != nil {
		settings.TitleMatchEnabled = *req.TitleMatchEnabled
	}
	if req.DetectionJobEnabled != nil {
		settings.DetectionJobEnabled = *req.DetectionJobEnabled
	}
	if req.DetectionIntervalMinutes != nil {
		settings.DetectionIntervalMinutes = *req.DetectionIntervalMinutes
	}
	if req.MaxPairs != nil {
		settings.MaxPairs = *req.MaxPairs
	}
}
