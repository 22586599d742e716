package git

import (
	"strings"
	"time"
)

// MaxSlugLength bounds the goal-derived part of a branch name.
const MaxSlugLength = 40

// GenerateBranchName derives <prefix>/<YYYYMMDD>/<slug> from a goal.
// The slug is the goal lower-cased, reduced to [a-z0-9 ], dash-joined and cut
// to MaxSlugLength. Same goal and same day give the same name.
func GenerateBranchName(prefix, goal string, day time.Time) string {
	slug := Slugify(goal, MaxSlugLength)
	if slug == "" {
		slug = "run"
	}
	prefix = strings.Trim(prefix, "/")
	return prefix + "/" + day.Format("20060102") + "/" + slug
}

// Slugify lower-cases s, keeps ASCII letters, digits and spaces, joins the
// words with dashes and truncates to max without a trailing dash.
func Slugify(s string, max int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			b.WriteByte(' ')
		}
	}
	slug := strings.Join(strings.Fields(b.String()), "-")
	if len(slug) > max {
		slug = strings.TrimRight(slug[:max], "-")
	}
	return slug
}
