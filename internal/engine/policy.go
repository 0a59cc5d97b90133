package engine

import "fmt"

// Policy governs whether graph construction and ranking re-run on every
// request, only when a file fingerprint changed, or only on an explicit
// Invalidate call. The tag cache is unaffected: it always fingerprints
// per file.
type Policy int

const (
	PolicyAlways Policy = iota
	PolicyOnFileChange
	PolicyManual
)

// ParsePolicy maps a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "always", "":
		return PolicyAlways, nil
	case "files", "on-file-change":
		return PolicyOnFileChange, nil
	case "manual":
		return PolicyManual, nil
	}
	return PolicyAlways, fmt.Errorf("unknown refresh policy %q", s)
}

func (p Policy) String() string {
	switch p {
	case PolicyOnFileChange:
		return "files"
	case PolicyManual:
		return "manual"
	default:
		return "always"
	}
}
