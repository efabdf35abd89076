package site

import (
	"strings"

	"github.com/gosimple/slug"

	"nsg/config"
)

// PageSlug derives the output file stem for a page. An explicit slug property
// wins over the title, both are reduced to a safe ASCII form. The same value
// keys the image cache, so everything belonging to one page shares a prefix.
func PageSlug(explicit, title string) string {
	src := strings.TrimSpace(explicit)
	if src == "" {
		src = strings.TrimSpace(title)
	}
	return config.CleanFileName(slug.Make(src))
}
