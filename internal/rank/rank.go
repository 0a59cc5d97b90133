// Package rank runs the personalized importance walk over the reference
// graph and distributes file scores down to individual definition tags.
package rank

import (
	"math"
	"sort"

	"repomap/internal/graph"
	"repomap/internal/tags"
)

// Config holds the walk parameters. Convergence is guaranteed for any
// damping < 1, cycles included, so no cycle detection exists anywhere.
type Config struct {
	Damping float64
	MaxIter int
	Epsilon float64
	// ReferrerCredit is a small bonus a file earns in FileScores for the
	// rank it transmits onward, so files that actively reference ranked
	// code order ahead of inert files. Zero disables it.
	ReferrerCredit float64
}

// DefaultConfig returns the standard walk parameters.
func DefaultConfig() Config {
	return Config{
		Damping:        0.85,
		MaxIter:        100,
		Epsilon:        1e-6,
		ReferrerCredit: 0.05,
	}
}

// Ranks computes the personalized stationary distribution over g. The
// personalization vector is the restart distribution and also absorbs
// dangling mass; nil or empty selects uniform. Identical inputs yield
// identical scores: iteration is over the sorted node list only.
func Ranks(g *graph.Graph, personalization map[string]float64, cfg Config) map[string]float64 {
	n := len(g.Nodes)
	if n == 0 {
		return map[string]float64{}
	}

	p := restartVector(g.Nodes, personalization)
	outW := g.OutWeights()

	rank := make(map[string]float64, n)
	for _, node := range g.Nodes {
		rank[node] = p[node]
	}

	d := cfg.Damping
	next := make(map[string]float64, n)
	for iter := 0; iter < cfg.MaxIter; iter++ {
		var dangling float64
		for _, node := range g.Nodes {
			if outW[node] == 0 {
				dangling += rank[node]
			}
		}

		for _, node := range g.Nodes {
			next[node] = (1-d)*p[node] + d*dangling*p[node]
		}
		for _, e := range g.Edges {
			next[e.Dst] += d * rank[e.Src] * e.Weight / outW[e.Src]
		}

		var diff float64
		for _, node := range g.Nodes {
			diff += math.Abs(next[node] - rank[node])
			rank[node], next[node] = next[node], 0
		}
		if diff < cfg.Epsilon {
			break
		}
	}

	return rank
}

func restartVector(nodes []string, personalization map[string]float64) map[string]float64 {
	p := make(map[string]float64, len(nodes))
	var total float64
	for _, node := range nodes {
		w := personalization[node]
		if w < 0 {
			w = 0
		}
		p[node] = w
		total += w
	}
	if total <= 0 {
		uniform := 1.0 / float64(len(nodes))
		for _, node := range nodes {
			p[node] = uniform
		}
		return p
	}
	for _, node := range nodes {
		p[node] /= total
	}
	return p
}

// DistributeToTags splits each file's own rank across its definition
// tags in proportion to the rank-weighted reference flow arriving for
// each identifier, split evenly when a name is defined more than once in
// the same file. A file's tag scores sum to exactly its rank when
// anything references it and to zero otherwise, so the per-file sum
// never exceeds the file's rank. Ties are broken by (file, line) order.
func DistributeToTags(g *graph.Graph, files []tags.FileRecord, ranks map[string]float64) []tags.RankedTag {
	outW := g.OutWeights()

	type defKey struct{ file, ident string }
	inFlow := make(map[defKey]float64)
	fileFlow := make(map[string]float64)
	for _, e := range g.Edges {
		total := outW[e.Src]
		if total == 0 {
			continue
		}
		flow := ranks[e.Src] * e.Weight / total
		inFlow[defKey{e.Dst, e.Ident}] += flow
		fileFlow[e.Dst] += flow
	}

	defRank := make(map[defKey]float64, len(inFlow))
	for key, flow := range inFlow {
		if total := fileFlow[key.file]; total > 0 {
			defRank[key] = ranks[key.file] * flow / total
		}
	}

	// Count same-named definitions per file so shares split evenly.
	defCount := make(map[defKey]int)
	for i := range files {
		f := &files[i]
		for j := range f.Tags {
			t := &f.Tags[j]
			if t.Kind == tags.Definition {
				defCount[defKey{f.Path, t.Name}]++
			}
		}
	}

	var out []tags.RankedTag
	for i := range files {
		f := &files[i]
		if f.Opaque {
			continue
		}
		for j := range f.Tags {
			t := &f.Tags[j]
			if t.Kind != tags.Definition {
				continue
			}
			key := defKey{f.Path, t.Name}
			score := 0.0
			if r := defRank[key]; r > 0 {
				score = r / float64(defCount[key])
			}
			out = append(out, tags.RankedTag{Tag: *t, Score: score})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Line < out[j].Line
	})
	return out
}

// FileScores orders whole files: the walk's rank plus a small credit for
// rank transmitted onward, so a file with many call sites into ranked
// code places ahead of a file with none.
func FileScores(g *graph.Graph, ranks map[string]float64, cfg Config) map[string]float64 {
	outW := g.OutWeights()
	scores := make(map[string]float64, len(g.Nodes))
	for _, node := range g.Nodes {
		s := ranks[node]
		if cfg.ReferrerCredit > 0 && outW[node] > 0 {
			s += cfg.ReferrerCredit * cfg.Damping * ranks[node]
		}
		scores[node] = s
	}
	return scores
}
