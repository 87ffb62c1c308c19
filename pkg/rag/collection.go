package rag

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const maxSlugLen = 50

// CollectionRef builds the external index reference stored on a document:
// <owner>-<slug(title)>-<unixnano>-<random8>. The random suffix keeps two
// uploads of the same title in the same instant apart.
func CollectionRef(owner uuid.UUID, title string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return owner.String() + "-" + Slugify(title) + "-" + strconv.FormatInt(now.UnixNano(), 10) + "-" + random
}

// Slugify lower-cases s and collapses every run of non-alphanumerics into one dash.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if r > unicode.MaxASCII {
				r = '-'
			}
		} else {
			r = '-'
		}
		if r == '-' {
			if dash || b.Len() == 0 {
				continue
			}
			dash = true
		} else {
			dash = false
		}
		b.WriteRune(r)
		if b.Len() >= maxSlugLen {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "document"
	}
	return slug
}
