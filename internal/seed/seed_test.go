package seed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repomap/internal/tags"
)

func record(path string, defs ...string) tags.FileRecord {
	r := tags.FileRecord{Path: path, Language: "go"}
	for i, name := range defs {
		r.Tags = append(r.Tags, tags.Tag{
			File: path, Name: name, Kind: tags.Definition, Line: i + 1,
		})
	}
	return r
}

func sum(m map[string]float64) float64 {
	var s float64
	for _, v := range m {
		s += v
	}
	return s
}

func TestIdentifiers(t *testing.T) {
	t.Parallel()

	got := Identifiers("call Foo() then bar_baz, skip 123 but keep _x9")
	assert.True(t, got["Foo"])
	assert.True(t, got["bar_baz"])
	assert.True(t, got["_x9"])
	assert.False(t, got["123"])

	assert.Nil(t, Identifiers(""))
}

func TestBuildSumsToOne(t *testing.T) {
	t.Parallel()

	files := []tags.FileRecord{record("a.go", "Foo"), record("b.go", "Bar"), record("c.go")}
	got := Build(files, ChatState{}, DefaultConfig())
	require.Len(t, got, 3)
	assert.InDelta(t, 1.0, sum(got), 1e-12)
}

func TestBuildChatFilesNearZero(t *testing.T) {
	t.Parallel()

	files := []tags.FileRecord{record("a.go", "Foo"), record("b.go", "Bar")}
	chat := ChatState{InContext: map[string]bool{"a.go": true}}
	got := Build(files, chat, DefaultConfig())

	assert.Less(t, got["a.go"], got["b.go"])
	assert.Greater(t, got["a.go"], 0.0, "in-context files keep a sliver so they stay walkable")
	assert.InDelta(t, 1.0, sum(got), 1e-12)
}

func TestBuildMentionBoost(t *testing.T) {
	t.Parallel()

	files := []tags.FileRecord{record("a.go", "Resolver"), record("b.go", "Other")}
	chat := ChatState{RecentText: "the Resolver looks wrong"}
	got := Build(files, chat, DefaultConfig())
	assert.Greater(t, got["a.go"], got["b.go"])
}

func TestBuildMentionOnlyCountsDefinitions(t *testing.T) {
	t.Parallel()

	ref := tags.FileRecord{Path: "a.go", Language: "go", Tags: []tags.Tag{
		{File: "a.go", Name: "Resolver", Kind: tags.Reference, Line: 4},
	}}
	files := []tags.FileRecord{ref, record("b.go", "Other")}
	chat := ChatState{RecentText: "Resolver"}
	got := Build(files, chat, DefaultConfig())
	assert.InDelta(t, got["a.go"], got["b.go"], 1e-12)
}

func TestBuildFlagBoost(t *testing.T) {
	t.Parallel()

	files := []tags.FileRecord{record("a.go", "Foo"), record("b.go", "Bar")}
	chat := ChatState{Flagged: map[string]bool{"b.go": true}}
	got := Build(files, chat, DefaultConfig())
	assert.Greater(t, got["b.go"], got["a.go"])
}

func TestBuildNoChatFlattens(t *testing.T) {
	t.Parallel()

	files := []tags.FileRecord{record("a.go", "Resolver"), record("b.go", "Other")}
	mention := ChatState{RecentText: "Resolver"}

	flat := Build(files, mention, DefaultConfig())

	withChat := mention
	withChat.InContext = map[string]bool{"c.go": true}
	sharp := Build(files, withChat, DefaultConfig())

	// With no files in context the mention boost is scaled down, so the
	// mentioned file's share is closer to uniform.
	assert.Less(t, flat["a.go"], sharp["a.go"])
}

func TestBuildEmpty(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Build(nil, ChatState{}, DefaultConfig()))
}

func TestBuildDeterministic(t *testing.T) {
	t.Parallel()

	files := []tags.FileRecord{record("a.go", "Foo"), record("b.go", "Bar"), record("c.go", "Baz")}
	chat := ChatState{RecentText: "Foo Baz", Flagged: map[string]bool{"b.go": true}}
	first := Build(files, chat, DefaultConfig())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Build(files, chat, DefaultConfig()))
	}
}
