// Package graph builds the weighted directed file-reference graph.
package graph

import (
	"math"
	"sort"

	"repomap/internal/tags"
)

// Edge is an accumulated reference edge: Src references Ident, which Dst
// defines. Weight grows additively with each reference occurrence.
type Edge struct {
	Src    string
	Dst    string
	Ident  string
	Weight float64
}

// Graph is the weighted reference graph over candidate files. Nodes are
// exactly the files contributing at least one tag; files with zero edges
// remain as isolated nodes.
type Graph struct {
	Nodes []string // sorted
	Edges []Edge   // sorted by (Src, Dst, Ident)
}

// Signals carries the conversation-derived boosts applied to edge weights.
type Signals struct {
	// Mentioned identifiers appear literally in recent conversation text.
	Mentioned map[string]bool
	// Flagged files were marked important by the user.
	Flagged map[string]bool
}

// Config holds the weighting constants. Tuning parameters, not
// correctness requirements.
type Config struct {
	// MentionBoost multiplies edges whose identifier is mentioned in
	// recent conversation text.
	MentionBoost float64
	// FlagBoost multiplies edges leaving a user-flagged file.
	FlagBoost float64
}

// DefaultConfig returns the standard weighting constants.
func DefaultConfig() Config {
	return Config{
		MentionBoost: 10,
		FlagBoost:    5,
	}
}

// Build constructs the graph from all files' tags. For every reference to
// identifier I in file A, an edge A→D accumulates for each file D ≠ A
// defining I, weighted by 1/sqrt(number of defining files) so ubiquitous
// names don't dominate, times the mention and flag boosts. Opaque files
// never enter the graph.
func Build(files []tags.FileRecord, sig Signals, cfg Config) *Graph {
	// Definition index: identifier → sorted defining files.
	definers := make(map[string][]string)
	seen := make(map[string]map[string]bool)
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
			if seen[t.Name] == nil {
				seen[t.Name] = make(map[string]bool)
			}
			if !seen[t.Name][f.Path] {
				seen[t.Name][f.Path] = true
				definers[t.Name] = append(definers[t.Name], f.Path)
			}
		}
	}
	for ident := range definers {
		sort.Strings(definers[ident])
	}

	type edgeKey struct{ src, dst, ident string }
	weights := make(map[edgeKey]float64)

	var nodes []string
	for i := range files {
		f := &files[i]
		if f.Opaque || len(f.Tags) == 0 {
			continue
		}
		nodes = append(nodes, f.Path)

		flagBoost := 1.0
		if sig.Flagged[f.Path] {
			flagBoost = cfg.FlagBoost
		}

		for j := range f.Tags {
			t := &f.Tags[j]
			if t.Kind != tags.Reference {
				continue
			}
			defs := definers[t.Name]
			if len(defs) == 0 {
				continue
			}
			w := flagBoost / math.Sqrt(float64(len(defs)))
			if sig.Mentioned[t.Name] {
				w *= cfg.MentionBoost
			}
			for _, dst := range defs {
				if dst == f.Path {
					continue // self-references carry no cross-file signal
				}
				weights[edgeKey{f.Path, dst, t.Name}] += w
			}
		}
	}
	sort.Strings(nodes)

	edges := make([]Edge, 0, len(weights))
	for k, w := range weights {
		edges = append(edges, Edge{Src: k.src, Dst: k.dst, Ident: k.ident, Weight: w})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Src != edges[j].Src {
			return edges[i].Src < edges[j].Src
		}
		if edges[i].Dst != edges[j].Dst {
			return edges[i].Dst < edges[j].Dst
		}
		return edges[i].Ident < edges[j].Ident
	})

	return &Graph{Nodes: nodes, Edges: edges}
}

// OutWeights returns total outgoing edge weight per node.
func (g *Graph) OutWeights() map[string]float64 {
	out := make(map[string]float64, len(g.Nodes))
	for _, e := range g.Edges {
		out[e.Src] += e.Weight
	}
	return out
}
