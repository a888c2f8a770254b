package domain

import (
	"fmt"
	"strings"
)

// Tiers is the ordered escalation sequence. Rank 0 is offered first.
type Tiers []string

// DefaultTiers is the three-level sequence used by the marketplace client.
var DefaultTiers = Tiers{"primary", "secondary", "tertiary"}

// Name returns the tier name for a rank, or "tier_<n>" when the rank is out of range.
func (t Tiers) Name(rank int) string {
	if rank >= 0 && rank < len(t) {
		return t[rank]
	}
	return fmt.Sprintf("tier_%d", rank+1)
}

// ParseTiers parses a comma separated tier list. Names must be unique and non-empty.
func ParseTiers(raw string) (Tiers, error) {
	parts := strings.Split(raw, ",")
	out := make(Tiers, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			return nil, fmt.Errorf("empty tier name in %q", raw)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate tier %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}
