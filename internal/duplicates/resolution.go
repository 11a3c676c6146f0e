package duplicates

import "fmt"

// Action is a reviewer's decision for one entry.
type Action string

const (
	ActionKeep    Action = "keep"
	ActionArchive Action = "archive"
)

// LessonResolution is the decision for one entry of a group.
type LessonResolution struct {
	EntryID       string `json:"entry_id" validate:"required"`
	Action        Action `json:"action" validate:"required,oneof=keep archive"`
	ArchiveTarget string `json:"archive_target,omitempty"`
}

// GroupResolution is the full decision for one group. IncludeResolved names
// the detection run GroupID was listed in.
type GroupResolution struct {
	GroupID         string             `json:"group_id" validate:"required"`
	IncludeResolved bool               `json:"include_resolved,omitempty"`
	Resolutions     []LessonResolution `json:"resolutions" validate:"required,min=1,dive"`
	Notes           string             `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// Validate checks every rule that can be decided without the catalog:
// group id shape, unique entries, at least one keep, and archive targets
// that point at entries kept by this same resolution.
func (r GroupResolution) Validate() error {
	if err := ValidateGroupID(r.GroupID); err != nil {
		return err
	}

	actions := make(map[string]Action, len(r.Resolutions))
	for _, res := range r.Resolutions {
		if res.EntryID == "" {
			return fmt.Errorf("%w: empty entry id", ErrInvalidAction)
		}
		if _, dup := actions[res.EntryID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateResolution, res.EntryID)
		}
		switch res.Action {
		case ActionKeep:
			if res.ArchiveTarget != "" {
				return fmt.Errorf("%w: %s", ErrUnexpectedArchiveTarget, res.EntryID)
			}
		case ActionArchive:
			if res.ArchiveTarget == "" {
				return fmt.Errorf("%w: %s", ErrMissingArchiveTarget, res.EntryID)
			}
		default:
			return fmt.Errorf("%w: %q for %s", ErrInvalidAction, res.Action, res.EntryID)
		}
		actions[res.EntryID] = res.Action
	}

	if len(r.KeptIDs()) == 0 {
		return ErrNoKeptEntry
	}

	for _, res := range r.Archives() {
		if actions[res.ArchiveTarget] != ActionKeep {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidArchiveTarget, res.EntryID, res.ArchiveTarget)
		}
	}
	return nil
}

// ValidateMembers checks that every entry of the resolution belongs to the
// given member set.
func (r GroupResolution) ValidateMembers(memberIDs []string) error {
	members := make(map[string]struct{}, len(memberIDs))
	for _, id := range memberIDs {
		members[id] = struct{}{}
	}
	for _, res := range r.Resolutions {
		if _, ok := members[res.EntryID]; !ok {
			return fmt.Errorf("%w: %s not in %s", ErrEntryNotInGroup, res.EntryID, r.GroupID)
		}
	}
	return nil
}

// KeptIDs returns the entries resolved as keep, in input order.
func (r GroupResolution) KeptIDs() []string {
	var ids []string
	for _, res := range r.Resolutions {
		if res.Action == ActionKeep {
			ids = append(ids, res.EntryID)
		}
	}
	return ids
}

// Archives returns the archive resolutions in input order.
func (r GroupResolution) Archives() []LessonResolution {
	var out []LessonResolution
	for _, res := range r.Resolutions {
		if res.Action == ActionArchive {
			out = append(out, res)
		}
	}
	return out
}

// EntryIDs returns every entry id named by the resolution.
func (r GroupResolution) EntryIDs() []string {
	ids := make([]string, 0, len(r.Resolutions))
	for _, res := range r.Resolutions {
		ids = append(ids, res.EntryID)
	}
	return ids
}
