package quality

import (
	"strings"
	"time"

	"github.com/mobatt/mobatt-backend/internal/types"
)

// SweepBlog is the simpler pass over blog records: lifecycle state must be
// draft or published and the textual fields must be present. Nothing is
// auto-repaired; blog defects always surface as flags.
func SweepBlog(post *types.BlogPost, now time.Time) Result {
	var res Result

	flag := func(field, kind, detail string) {
		res.Stamp.Flags = append(res.Stamp.Flags, kind+"."+field)
		res.Issues = append(res.Issues, types.FieldIssue{Field: field, Kind: kind, Detail: detail})
	}

	switch post.Status {
	case types.BlogStatusDraft, types.BlogStatusPublished:
	default:
		flag("status", "invalid", "status must be draft or published, got "+post.Status)
	}

	if strings.TrimSpace(post.Slug) == "" {
		flag("slug", "missing", "slug is empty")
	}
	if strings.TrimSpace(post.Title) == "" {
		flag("title", "missing", "title is empty")
	}
	if strings.TrimSpace(post.Body) == "" {
		flag("body", "missing", "body is empty")
	}

	res.Stamp.Score = score(res.Stamp.Flags)
	res.Stamp.LastCheckedAt = now
	if res.Stamp.Flags == nil {
		res.Stamp.Flags = []string{}
	}
	if res.Stamp.AutoFixed == nil {
		res.Stamp.AutoFixed = []string{}
	}
	return res
}
