// Package toon implements TOON (Token-Oriented Object Notation) encoding
// of the raw ranking tables for introspection.
package toon

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"repomap/internal/graph"
	"repomap/internal/tags"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode renders the file ranks, scored tags, and weighted edges as TOON
// tables. Used by the inspect command; the prompt map itself is rendered
// elsewhere.
func Encode(ranked []tags.RankedTag, g *graph.Graph, fileRanks map[string]float64) string {
	var parts []string

	var fileRows [][]string
	paths := make([]string, 0, len(fileRanks))
	for path := range fileRanks {
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		if fileRanks[paths[i]] != fileRanks[paths[j]] {
			return fileRanks[paths[i]] > fileRanks[paths[j]]
		}
		return paths[i] < paths[j]
	})
	for _, path := range paths {
		fileRows = append(fileRows, []string{path, fmt.Sprintf("%.4f", fileRanks[path])})
	}
	parts = append(parts, formatTabular("files", []string{"path", "rank"}, fileRows))

	var tagRows [][]string
	for i := range ranked {
		rt := &ranked[i]
		tagRows = append(tagRows, []string{
			rt.File,
			rt.Name,
			string(rt.Kind),
			fmt.Sprintf("%d", rt.Line),
			fmt.Sprintf("%.4f", rt.Score),
		})
	}
	parts = append(parts, formatTabular("tags", []string{"file", "name", "kind", "line", "score"}, tagRows))

	var edgeRows [][]string
	for i := range g.Edges {
		e := &g.Edges[i]
		edgeRows = append(edgeRows, []string{
			e.Src,
			e.Dst,
			e.Ident,
			fmt.Sprintf("%.4f", e.Weight),
		})
	}
	parts = append(parts, formatTabular("edges", []string{"source", "target", "ident", "weight"}, edgeRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
