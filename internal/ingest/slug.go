package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxSlugLen bounds the base slug before any collision suffix is added.
const maxSlugLen = 512

// fallbackSlug is used when a title has no ASCII letters or digits at all.
const fallbackSlug = "document"

var (
	slugStrip    = regexp.MustCompile(`[^\w\s-]`)
	slugSeparate = regexp.MustCompile(`[-\s]+`)
)

// Slugify lowercases s, transliterates it to ASCII by dropping combining
// marks, removes everything but letters, digits, underscores, hyphens and
// spaces, and collapses runs of hyphens and spaces into one hyphen.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	out := slugStrip.ReplaceAllString(strings.ToLower(b.String()), "")
	out = slugSeparate.ReplaceAllString(out, "-")
	return strings.Trim(out, "-_")
}

// TitleFromPath derives a document title from its file name: the stem with
// underscores turned into spaces, or the full name if that leaves nothing.
func TitleFromPath(path string) string {
	name := filepath.Base(path)
	title := strings.TrimSpace(strings.ReplaceAll(strings.TrimSuffix(name, filepath.Ext(name)), "_", " "))
	if title == "" {
		return name
	}
	return title
}

// BaseSlug is the slug a title gets before collision handling.
func BaseSlug(title string) string {
	s := Slugify(title)
	if len(s) > maxSlugLen {
		s = strings.TrimRight(s[:maxSlugLen], "-")
	}
	if s == "" {
		return fallbackSlug
	}
	return s
}

// normalizePath makes source paths comparable across platforms: forward
// slashes and lowercase.
func normalizePath(p string) string {
	return strings.ToLower(strings.ReplaceAll(filepath.ToSlash(p), `\`, "/"))
}

// shortHash is the first 8 hex characters of the SHA-1 of s.
func shortHash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// hashedSlug is the slug used when base is taken by a different source file.
func hashedSlug(base, normPath string) string {
	return base + "-" + shortHash(normPath)
}
