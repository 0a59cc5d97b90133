// Package tags defines the core data model shared across the map pipeline.
package tags

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// TagKind indicates whether a tag is a definition or a reference.
type TagKind string

const (
	Definition TagKind = "def"
	Reference  TagKind = "ref"
)

// Tag represents a single symbol occurrence extracted from source code.
// Exactly one file owns a tag.
type Tag struct {
	File string
	Name string
	Kind TagKind
	Line int
}

// Fingerprint identifies a file's content for cache freshness checks.
type Fingerprint struct {
	Hash  string
	MTime int64
}

// FingerprintOf computes the fingerprint for a file's content and mtime.
func FingerprintOf(content []byte, mtime int64) Fingerprint {
	sum := sha256.Sum256(content)
	return Fingerprint{Hash: hex.EncodeToString(sum[:]), MTime: mtime}
}

// FileRecord holds the extraction result for a single candidate file.
// Opaque marks files that were listed but never parsed: unsupported
// language or over the size guard.
type FileRecord struct {
	Path        string
	Language    string
	Tags        []Tag
	Fingerprint Fingerprint
	Opaque      bool
}

// RankedTag is a tag with its distributed importance score.
type RankedTag struct {
	Tag
	Score float64
}

// Line is a single rendered source line.
type Line struct {
	Number int // 0 marks a gap ellipsis
	Text   string
}

// Section is one file's rendered portion of the map. A section with no
// lines lists the file by name only.
type Section struct {
	Path  string
	Lines []Line
}

// MapResult is the rendered repository map.
type MapResult struct {
	Sections  []Section
	Tokens    int
	Truncated bool
}

// Text assembles the map into the final prompt block. Sections appear in
// path order with lines in ascending line order, so the output is
// deterministic regardless of how the selection was computed.
func (m *MapResult) Text() string {
	var b strings.Builder
	for i := range m.Sections {
		s := &m.Sections[i]
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.Path)
		b.WriteString(":\n")
		for _, ln := range s.Lines {
			if ln.Number == 0 {
				b.WriteString("  ...\n")
				continue
			}
			b.WriteString(pad(ln.Number))
			b.WriteString(": ")
			b.WriteString(ln.Text)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func pad(n int) string {
	s := strconv.Itoa(n)
	if len(s) >= 4 {
		return s
	}
	return strings.Repeat(" ", 4-len(s)) + s
}

// SortTags orders tags by (file, line, name, kind) for deterministic output.
func SortTags(ts []Tag) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].File != ts[j].File {
			return ts[i].File < ts[j].File
		}
		if ts[i].Line != ts[j].Line {
			return ts[i].Line < ts[j].Line
		}
		if ts[i].Name != ts[j].Name {
			return ts[i].Name < ts[j].Name
		}
		return ts[i].Kind < ts[j].Kind
	})
}
