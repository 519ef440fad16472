package service

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/eventgate/ticket-lifecycle/internal/domain"
)

//go:embed guard_policy.yaml
var defaultGuardPolicy []byte

// ForbiddenEdge is an always-false transition with its explanation.
type ForbiddenEdge struct {
	Kind   domain.EntityKind `yaml:"kind"`
	From   domain.Status     `yaml:"from"`
	To     domain.Status     `yaml:"to"`
	Reason string            `yaml:"reason"`
}

type edgeKey struct {
	kind     domain.EntityKind
	from, to domain.Status
}

// GuardPolicy holds the forbidden-edge table. It is read-only after load.
type GuardPolicy struct {
	Forbidden []ForbiddenEdge `yaml:"forbidden"`

	index map[edgeKey]string
}

// LoadGuardPolicy reads the policy at path, or the built-in default when
// path is empty.
func LoadGuardPolicy(path string) (*GuardPolicy, error) {
	data := defaultGuardPolicy
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read guard policy: %w", err)
		}
		data = b
	}
	return ParseGuardPolicy(data)
}

// DefaultGuardPolicy returns the built-in policy.
func DefaultGuardPolicy() *GuardPolicy {
	p, err := ParseGuardPolicy(defaultGuardPolicy)
	if err != nil {
		panic(fmt.Sprintf("embedded guard policy: %v", err))
	}
	return p
}

// ParseGuardPolicy decodes and validates a YAML policy document.
func ParseGuardPolicy(data []byte) (*GuardPolicy, error) {
	var p GuardPolicy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode guard policy: %w", err)
	}
	p.index = make(map[edgeKey]string, len(p.Forbidden))
	for i, edge := range p.Forbidden {
		if !edge.Kind.Valid() {
			return nil, fmt.Errorf("guard policy entry %d: unknown kind %q", i, edge.Kind)
		}
		if !domain.IsKnownStatus(edge.Kind, edge.From) || !domain.IsKnownStatus(edge.Kind, edge.To) {
			return nil, fmt.Errorf("guard policy entry %d: unknown status in %s -> %s", i, edge.From, edge.To)
		}
		if strings.TrimSpace(edge.Reason) == "" {
			return nil, fmt.Errorf("guard policy entry %d: reason is required", i)
		}
		p.index[edgeKey{edge.Kind, edge.From, edge.To}] = edge.Reason
	}
	return &p, nil
}

// Reason returns the refusal message when from→to is forbidden.
func (p *GuardPolicy) Reason(kind domain.EntityKind, from, to domain.Status) (string, bool) {
	if p == nil {
		return "", false
	}
	reason, ok := p.index[edgeKey{kind, from, to}]
	return reason, ok
}
