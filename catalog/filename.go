package catalog

import (
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	maxTitleSegment  = 50
	maxAuthorSegment = 30
	// timestamp, title, author, category, strand, year and the extension
	minFilenameSegments = 7
)

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9]`)
	leadingTimestamp    = regexp.MustCompile(`^\d+_`)
)

// FilenameMetadata is what can be recovered from an encoded document name.
type FilenameMetadata struct {
	Title    string
	Authors  []string
	Category string
	Strand   string
	Year     string
}

// sanitizeSegment replaces every character outside [A-Za-z0-9] with '-' and truncates.
func sanitizeSegment(s string, max int) string {
	s = unsafeFilenameChars.ReplaceAllString(s, "-")
	if len(s) > max {
		s = s[:max]
	}
	return s
}

// EncodeBaseName builds the object base name (without extension) for a paper:
// <unixMillis>_<title>_<firstAuthor>_<category>_<strand>_<year>.
func EncodeBaseName(in PaperInput, now time.Time) string {
	firstAuthor := ""
	if len(in.Authors) > 0 {
		firstAuthor = strings.TrimSpace(in.Authors[0])
	}
	return strings.Join([]string{
		strconv.FormatInt(now.UnixMilli(), 10),
		sanitizeSegment(in.Title, maxTitleSegment),
		sanitizeSegment(firstAuthor, maxAuthorSegment),
		in.Category,
		in.Strand,
		in.Year,
	}, "_")
}

// ParseFilenameMetadata recovers metadata from an encoded name. The extension counts as a
// segment, so an encoded name yields seven; anything shorter returns ok=false.
func ParseFilenameMetadata(name string) (FilenameMetadata, bool) {
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	parts := strings.Split(base, "_")

	segments := len(parts)
	if ext != "" {
		segments++
	}
	if segments < minFilenameSegments {
		return FilenameMetadata{}, false
	}

	n := len(parts)
	return FilenameMetadata{
		Title:    strings.Join(parts[1:n-4], " "),
		Authors:  strings.Split(parts[n-4], "-"),
		Category: parts[n-3],
		Strand:   parts[n-2],
		Year:     parts[n-1],
	}, true
}

// titleFromFilename is the last-resort title: no timestamp prefix, no extension, underscores as spaces.
func titleFromFilename(name string) string {
	t := leadingTimestamp.ReplaceAllString(name, "")
	t = strings.TrimSuffix(t, path.Ext(t))
	return strings.ReplaceAll(t, "_", " ")
}

// baseName strips the extension.
func baseName(name string) string {
	return strings.TrimSuffix(name, path.Ext(name))
}

// extension returns the lower-cased extension without the dot.
func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}
