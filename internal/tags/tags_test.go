package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintOf(t *testing.T) {
	t.Parallel()

	a := FingerprintOf([]byte("hello"), 100)
	b := FingerprintOf([]byte("hello"), 100)
	assert.Equal(t, a, b)

	changed := FingerprintOf([]byte("hello!"), 100)
	assert.NotEqual(t, a.Hash, changed.Hash)

	touched := FingerprintOf([]byte("hello"), 200)
	assert.Equal(t, a.Hash, touched.Hash)
	assert.NotEqual(t, a.MTime, touched.MTime)
}

func TestMapResultText(t *testing.T) {
	t.Parallel()

	m := MapResult{
		Sections: []Section{
			{
				Path: "a.go",
				Lines: []Line{
					{Number: 2, Text: "func Foo() {}"},
					{Number: 0},
					{Number: 10, Text: "func Bar() {}"},
				},
			},
			{Path: "big.bin"},
		},
	}

	want := "a.go:\n" +
		"   2: func Foo() {}\n" +
		"  ...\n" +
		"  10: func Bar() {}\n" +
		"\n" +
		"big.bin:\n"
	assert.Equal(t, want, m.Text())
}

func TestMapResultTextWideLineNumbers(t *testing.T) {
	t.Parallel()

	m := MapResult{Sections: []Section{{
		Path:  "a.go",
		Lines: []Line{{Number: 12345, Text: "x"}},
	}}}
	assert.Contains(t, m.Text(), "12345: x")
}

func TestSortTags(t *testing.T) {
	t.Parallel()

	ts := []Tag{
		{File: "b.go", Name: "z", Kind: Definition, Line: 1},
		{File: "a.go", Name: "y", Kind: Definition, Line: 9},
		{File: "a.go", Name: "x", Kind: Reference, Line: 2},
	}
	SortTags(ts)

	require.Len(t, ts, 3)
	assert.Equal(t, "a.go", ts[0].File)
	assert.Equal(t, 2, ts[0].Line)
	assert.Equal(t, 9, ts[1].Line)
	assert.Equal(t, "b.go", ts[2].File)
}
