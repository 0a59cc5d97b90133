// Package extract turns a single source file into located symbol tags
// using the tree-sitter registry in internal/lang.
package extract

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"repomap/internal/lang"
	"repomap/internal/tags"
)

// ErrUnsupported marks a file whose language has no registry entry.
var ErrUnsupported = errors.New("unsupported language")

// ErrTooLarge marks a file over the size guard. It is listed by name but
// never parsed.
var ErrTooLarge = errors.New("file exceeds size limit")

// ParseError wraps a per-file parse or query failure. It never aborts
// extraction of other files; callers record it and skip the file.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var captureMap = map[string]tags.TagKind{
	"definition.class":    tags.Definition,
	"definition.function": tags.Definition,
	"reference.call":      tags.Reference,
	"reference.import":    tags.Reference,
}

// DefaultMaxFileSize is the size guard applied when none is configured.
const DefaultMaxFileSize = 1_000_000 // 1 MB

// Extractor parses files one at a time. It keeps one parser per language,
// so it is not safe for concurrent use: give each worker its own Extractor.
type Extractor struct {
	maxFileSize int
	parsers     map[string]*sitter.Parser
}

// New creates an extractor with the given size guard. maxFileSize <= 0
// selects DefaultMaxFileSize.
func New(maxFileSize int) *Extractor {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Extractor{
		maxFileSize: maxFileSize,
		parsers:     make(map[string]*sitter.Parser),
	}
}

// Extract parses source and returns its tags ordered by line. The language
// is looked up by name in the registry. Returns ErrUnsupported,
// ErrTooLarge, or a *ParseError; all are per-file conditions.
func (x *Extractor) Extract(ctx context.Context, langName string, source []byte, path string) ([]tags.Tag, error) {
	l, ok := lang.Languages[langName]
	if !ok {
		return nil, ErrUnsupported
	}
	if len(source) > x.maxFileSize {
		return nil, ErrTooLarge
	}
	if len(source) == 0 {
		return nil, nil
	}

	query, err := l.GetTagQuery()
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	parser, ok := x.parsers[langName]
	if !ok {
		parser = l.NewParser()
		x.parsers[langName] = parser
	}

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer tree.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, tree.RootNode())

	var out []tags.Tag
	for {
		match, ok := qc.NextMatch()
		if !ok {
			break
		}
		match = qc.FilterPredicates(match, source)

		var nameNode *sitter.Node
		var kind tags.TagKind
		var matched bool
		for _, c := range match.Captures {
			cname := query.CaptureNameForId(c.Index)
			if cname == "name" {
				nameNode = c.Node
			} else if k, ok := captureMap[cname]; ok {
				kind = k
				matched = true
			}
		}
		if nameNode == nil || !matched {
			continue
		}

		out = append(out, tags.Tag{
			File: path,
			Name: string(source[nameNode.StartByte():nameNode.EndByte()]),
			Kind: kind,
			Line: int(nameNode.StartPoint().Row) + 1,
		})
	}

	tags.SortTags(out)
	return out, nil
}
