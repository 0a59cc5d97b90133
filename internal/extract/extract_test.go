package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repomap/internal/tags"
)

const goSource = `package p

func Foo() {}

func Bar() {
	Foo()
}
`

func TestExtractGo(t *testing.T) {
	t.Parallel()

	x := New(0)
	got, err := x.Extract(context.Background(), "go", []byte(goSource), "p.go")
	require.NoError(t, err)

	var defs, refs []tags.Tag
	for _, tag := range got {
		switch tag.Kind {
		case tags.Definition:
			defs = append(defs, tag)
		case tags.Reference:
			refs = append(refs, tag)
		}
	}

	require.Len(t, defs, 2)
	assert.Equal(t, "Foo", defs[0].Name)
	assert.Equal(t, 3, defs[0].Line)
	assert.Equal(t, "Bar", defs[1].Name)
	assert.Equal(t, 5, defs[1].Line)

	require.Len(t, refs, 1)
	assert.Equal(t, "Foo", refs[0].Name)
	assert.Equal(t, 6, refs[0].Line)
	assert.Equal(t, "p.go", refs[0].File)
}

func TestExtractGoTypes(t *testing.T) {
	t.Parallel()

	src := `package p

type Widget struct{}

func (w *Widget) Spin() {}
`
	x := New(0)
	got, err := x.Extract(context.Background(), "go", []byte(src), "w.go")
	require.NoError(t, err)

	names := make(map[string]tags.TagKind)
	for _, tag := range got {
		names[tag.Name] = tag.Kind
	}
	assert.Equal(t, tags.Definition, names["Widget"])
	assert.Equal(t, tags.Definition, names["Spin"])
}

func TestExtractPython(t *testing.T) {
	t.Parallel()

	src := `class Greeter:
    def greet(self):
        return say_hello()

def say_hello():
    return "hi"
`
	x := New(0)
	got, err := x.Extract(context.Background(), "python", []byte(src), "g.py")
	require.NoError(t, err)

	var defNames, refNames []string
	for _, tag := range got {
		if tag.Kind == tags.Definition {
			defNames = append(defNames, tag.Name)
		} else {
			refNames = append(refNames, tag.Name)
		}
	}
	assert.ElementsMatch(t, []string{"Greeter", "greet", "say_hello"}, defNames)
	assert.Contains(t, refNames, "say_hello")
}

func TestExtractUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	x := New(0)
	_, err := x.Extract(context.Background(), "cobol", []byte("IDENTIFICATION DIVISION."), "x.cob")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestExtractSizeGuard(t *testing.T) {
	t.Parallel()

	x := New(10)
	_, err := x.Extract(context.Background(), "go", []byte(strings.Repeat("x", 11)), "big.go")
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestExtractEmptySource(t *testing.T) {
	t.Parallel()

	x := New(0)
	got, err := x.Extract(context.Background(), "go", nil, "empty.go")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractSyntaxErrorStillYieldsTags(t *testing.T) {
	t.Parallel()

	// tree-sitter recovers around error nodes; intact declarations still tag.
	src := "package p\n\nfunc Ok() {}\n\nfunc broken( {\n"
	x := New(0)
	got, err := x.Extract(context.Background(), "go", []byte(src), "b.go")
	require.NoError(t, err)

	var names []string
	for _, tag := range got {
		if tag.Kind == tags.Definition {
			names = append(names, tag.Name)
		}
	}
	assert.Contains(t, names, "Ok")
}

func TestExtractOrderedByLine(t *testing.T) {
	t.Parallel()

	x := New(0)
	got, err := x.Extract(context.Background(), "go", []byte(goSource), "p.go")
	require.NoError(t, err)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Line, got[i].Line)
	}
}
