// Package seed turns conversation state into the per-file bias vector
// used as the ranking walk's restart distribution.
package seed

import (
	"regexp"
	"sort"

	"repomap/internal/tags"
)

// ChatState carries the external relevance signals for one request.
type ChatState struct {
	// InContext lists files already fully present in the conversation.
	InContext map[string]bool
	// RecentText is the literal text of recent conversation turns, used
	// only for identifier-mention detection.
	RecentText string
	// Flagged lists files the user marked as important.
	Flagged map[string]bool
}

// Config holds the seeding weights. These are tuning parameters, not
// correctness requirements.
type Config struct {
	// ChatFileBias is the near-zero weight for files already in context.
	// They keep their graph node so outgoing references still transmit
	// importance, but they do not compete for rendered space.
	ChatFileBias float64
	// MentionWeight is added to files defining an identifier that appears
	// literally in recent conversation text.
	MentionWeight float64
	// FlagWeight is added to user-flagged files.
	FlagWeight float64
	// NoChatFlatten scales signal weights toward uniform when no files
	// are in context yet, to avoid over-concentrating on defaults.
	NoChatFlatten float64
}

// DefaultConfig returns the standard seeding weights.
func DefaultConfig() Config {
	return Config{
		ChatFileBias:  0.01,
		MentionWeight: 10,
		FlagWeight:    5,
		NoChatFlatten: 0.25,
	}
}

var identRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// Identifiers extracts the set of identifier-shaped words from text.
func Identifiers(text string) map[string]bool {
	if text == "" {
		return nil
	}
	out := make(map[string]bool)
	for _, w := range identRe.FindAllString(text, -1) {
		out[w] = true
	}
	return out
}

// Build produces the personalization vector over the given files: every
// file gets a baseline weight, defining a mentioned identifier or being
// flagged raises it, and being fully in context lowers it to near zero.
// The result sums to 1 over the input files.
func Build(files []tags.FileRecord, chat ChatState, cfg Config) map[string]float64 {
	if len(files) == 0 {
		return nil
	}

	mentioned := Identifiers(chat.RecentText)

	flatten := 1.0
	if len(chat.InContext) == 0 && cfg.NoChatFlatten > 0 {
		flatten = cfg.NoChatFlatten
	}

	weights := make(map[string]float64, len(files))
	var total float64
	for i := range files {
		f := &files[i]
		w := 1.0
		for j := range f.Tags {
			t := &f.Tags[j]
			if t.Kind == tags.Definition && mentioned[t.Name] {
				w += cfg.MentionWeight * flatten
				break
			}
		}
		if chat.Flagged[f.Path] {
			w += cfg.FlagWeight * flatten
		}
		if chat.InContext[f.Path] {
			w = cfg.ChatFileBias
		}
		weights[f.Path] = w
		total += w
	}

	if total <= 0 {
		uniform := 1.0 / float64(len(files))
		for path := range weights {
			weights[path] = uniform
		}
		return weights
	}

	// Normalize over sorted paths so float accumulation order is fixed.
	paths := make([]string, 0, len(weights))
	for path := range weights {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		weights[path] /= total
	}
	return weights
}
