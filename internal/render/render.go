// Package render selects the highest-value prefix of the ranked tag list
// that fits a token budget and renders it as grouped, line-numbered text.
package render

import (
	"sort"
	"strings"

	"repomap/internal/tags"
	"repomap/internal/token"
)

// SourceFunc returns a file's lines for rendering.
type SourceFunc func(path string) ([]string, error)

// Options controls rendering shape and selection policy.
type Options struct {
	// ContextLines is the number of lines shown around each symbol line.
	ContextLines int
	// MaxLineLen clips long source lines.
	MaxLineLen int
	// PreferBreadth extends the cutoff at equal token cost so the map
	// spans more symbols rather than stopping at the binary-search bound.
	PreferBreadth bool
	// ExcludeFiles are never rendered (files already fully in context).
	ExcludeFiles map[string]bool
	// OpaqueFiles are listed by name, without content, after the ranked
	// sections while budget remains.
	OpaqueFiles []string
}

// DefaultOptions returns the standard rendering options.
func DefaultOptions() Options {
	return Options{
		ContextLines:  1,
		MaxLineLen:    120,
		PreferBreadth: true,
	}
}

// Fit binary-searches the largest rank cutoff whose rendering stays
// within budget, in O(log n) assembly passes. A budget too small for even
// the single top tag yields an empty, truncated result, never an error.
func Fit(ranked []tags.RankedTag, src SourceFunc, counter token.Counter, budget int, opts Options) tags.MapResult {
	if opts.ContextLines < 0 {
		opts.ContextLines = 0
	}
	if opts.MaxLineLen <= 0 {
		opts.MaxLineLen = 120
	} else if opts.MaxLineLen < 4 {
		opts.MaxLineLen = 4 // room for the "..." marker plus one character
	}

	selectable := filter(ranked, opts.ExcludeFiles)
	opaque := filterPaths(opts.OpaqueFiles, opts.ExcludeFiles)
	total := len(selectable) + len(opaque)

	if budget <= 0 {
		return tags.MapResult{Truncated: true}
	}
	if total == 0 {
		return tags.MapResult{}
	}

	a := newAssembler(src, opts)

	// Largest n with tokens(render(top-n)) <= budget.
	lo, hi := 0, len(selectable)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		m := a.assemble(selectable[:mid])
		if counter.Count(m.Text()) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	n := lo

	if opts.PreferBreadth {
		// Tags whose lines are already covered by the chosen regions cost
		// nothing; include them so the selection spans more symbols.
		for n < len(selectable) && a.covered(selectable[:n], selectable[n]) {
			n++
		}
	}

	result := a.assemble(selectable[:n])
	result.Tokens = counter.Count(result.Text())

	// Spend remaining budget on bare name listings for opaque files.
	listed := 0
	for _, path := range opaque {
		candidate := result
		candidate.Sections = append(append([]tags.Section(nil), result.Sections...), tags.Section{Path: path})
		cost := counter.Count(candidate.Text())
		if cost > budget {
			break
		}
		candidate.Tokens = cost
		result = candidate
		listed++
	}

	result.Truncated = n < len(selectable) || listed < len(opaque)
	return result
}

func filter(ranked []tags.RankedTag, exclude map[string]bool) []tags.RankedTag {
	out := make([]tags.RankedTag, 0, len(ranked))
	for _, rt := range ranked {
		if !exclude[rt.File] {
			out = append(out, rt)
		}
	}
	return out
}

func filterPaths(paths []string, exclude map[string]bool) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if !exclude[p] {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

type assembler struct {
	src   SourceFunc
	opts  Options
	lines map[string][]string // loaded once per file; nil marks unreadable
}

func newAssembler(src SourceFunc, opts Options) *assembler {
	return &assembler{src: src, opts: opts, lines: make(map[string][]string)}
}

func (a *assembler) fileLines(path string) []string {
	if cached, ok := a.lines[path]; ok {
		return cached
	}
	lines, err := a.src(path)
	if err != nil {
		lines = nil
	}
	a.lines[path] = lines
	return lines
}

// assemble renders the given tags grouped by file in (path, line) order.
func (a *assembler) assemble(selected []tags.RankedTag) tags.MapResult {
	byFile := make(map[string][]int)
	for _, rt := range selected {
		byFile[rt.File] = append(byFile[rt.File], rt.Line)
	}

	paths := make([]string, 0, len(byFile))
	for path := range byFile {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var result tags.MapResult
	for _, path := range paths {
		lines := a.fileLines(path)
		if lines == nil {
			continue
		}
		section := tags.Section{Path: path}
		for _, r := range regionsFor(byFile[path], len(lines), a.opts.ContextLines) {
			if len(section.Lines) > 0 {
				section.Lines = append(section.Lines, tags.Line{}) // gap ellipsis
			}
			for i := r.start; i <= r.end; i++ {
				section.Lines = append(section.Lines, tags.Line{
					Number: i + 1,
					Text:   clip(lines[i], a.opts.MaxLineLen),
				})
			}
		}
		if len(section.Lines) > 0 {
			result.Sections = append(result.Sections, section)
		}
	}
	return result
}

// covered reports whether tag's line already falls inside a region the
// current selection renders for its file.
func (a *assembler) covered(selected []tags.RankedTag, tag tags.RankedTag) bool {
	lines := a.fileLines(tag.File)
	if lines == nil {
		return true // unreadable files render nothing either way
	}
	var lois []int
	for _, rt := range selected {
		if rt.File == tag.File {
			lois = append(lois, rt.Line)
		}
	}
	if len(lois) == 0 {
		return false
	}
	for _, r := range regionsFor(lois, len(lines), a.opts.ContextLines) {
		if tag.Line-1 >= r.start && tag.Line-1 <= r.end {
			return true
		}
	}
	return false
}

type region struct{ start, end int }

// regionsFor merges per-line context windows into maximal runs.
// Lines are 1-based in tags and 0-based in regions.
func regionsFor(lois []int, fileLen, ctx int) []region {
	valid := make([]int, 0, len(lois))
	seen := make(map[int]bool, len(lois))
	for _, l := range lois {
		if l > 0 && l <= fileLen && !seen[l] {
			seen[l] = true
			valid = append(valid, l)
		}
	}
	sort.Ints(valid)

	var regions []region
	for _, l := range valid {
		start := l - 1 - ctx
		if start < 0 {
			start = 0
		}
		end := l - 1 + ctx
		if end > fileLen-1 {
			end = fileLen - 1
		}
		if len(regions) > 0 && regions[len(regions)-1].end >= start-1 {
			if end > regions[len(regions)-1].end {
				regions[len(regions)-1].end = end
			}
			continue
		}
		regions = append(regions, region{start, end})
	}
	return regions
}

func clip(line string, maxLen int) string {
	line = strings.TrimRight(line, "\r\n")
	if len(line) <= maxLen {
		return line
	}
	return line[:maxLen-3] + "..."
}
