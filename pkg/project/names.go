package project

import (
	"regexp"
	"strings"
)

var (
	// nameInvalidChars matches anything a new project directory should not carry.
	nameInvalidChars = regexp.MustCompile(`[^a-z0-9._-]`)
	nameSeparators   = regexp.MustCompile(`[\s-]+`)
	nameMultiDash    = regexp.MustCompile(`-{2,}`)
)

const maxProjectNameLength = 64

// ProjectSlug turns a free-form name into a directory name for a new
// project: lowercase, hyphen separated, no leading dots or hyphens.
func ProjectSlug(name string) string {
	slug := strings.ToLower(name)
	slug = nameSeparators.ReplaceAllString(slug, "-")
	slug = nameInvalidChars.ReplaceAllString(slug, "")
	slug = nameMultiDash.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-.")

	if len(slug) > maxProjectNameLength {
		slug = strings.Trim(slug[:maxProjectNameLength], "-.")
	}
	return slug
}

// RepoNameFromURL derives the checkout directory name from a clone URL.
// SCP-like SSH URLs (user@host:path) use the last segment after the colon,
// everything else the last segment of the trimmed URL. A ".git" suffix is
// dropped.
func RepoNameFromURL(url string) string {
	var tail string
	if strings.Contains(url, ":") && strings.Contains(url, "@") && !strings.HasPrefix(url, "http") {
		path := url[strings.LastIndex(url, ":")+1:]
		tail = path[strings.LastIndex(path, "/")+1:]
	} else {
		trimmed := strings.TrimRight(url, "/")
		tail = trimmed[strings.LastIndex(trimmed, "/")+1:]
	}
	return strings.TrimSuffix(tail, ".git")
}

func validDirName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
