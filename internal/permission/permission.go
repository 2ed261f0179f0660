// Package permission implements the RESOURCE:ACTION:SCOPE grant language used
// by organization memberships and the access gate.
package permission

import (
	"errors"
	"fmt"
	"strings"
)

const (
	separator   = ":"
	wildcardRaw = "*"
)

var (
	ErrMalformed       = errors.New("malformed_permission")
	ErrUnknownResource = errors.New("unknown_permission_resource")
	ErrUnknownAction   = errors.New("unknown_permission_action")
)

// Segment is one part of a permission triple. The wildcard is a distinct
// variant, not a literal named "*".
type Segment struct {
	name     string
	wildcard bool
}

// Any matches every value of the segment it appears in.
var Any = Segment{wildcard: true}

// Literal returns a non-wildcard segment.
func Literal(name string) Segment {
	return Segment{name: name}
}

func (s Segment) IsAny() bool { return s.wildcard }

func (s Segment) String() string {
	if s.wildcard {
		return wildcardRaw
	}
	return s.name
}

// covers reports whether a held segment satisfies a required one.
func (s Segment) covers(required Segment) bool {
	return s.wildcard || s == required
}

var (
	ResourceOrganization = Literal("ORGANIZATION")
	ResourceUser         = Literal("USER")
	ResourceRating       = Literal("RATING")
	ResourceAssignment   = Literal("ASSIGNMENT")
)

var (
	ActionCreate   = Literal("CREATE")
	ActionRead     = Literal("READ")
	ActionUpdate   = Literal("UPDATE")
	ActionDelete   = Literal("DELETE")
	ActionInvite   = Literal("INVITE")
	ActionAssign   = Literal("ASSIGN")
	ActionCriteria = Literal("CRITERIA")
)

var (
	ScopeOwn      = Literal("OWN")
	ScopeAssigned = Literal("ASSIGNED")
)

var knownResources = map[Segment]struct{}{
	ResourceOrganization: {},
	ResourceUser:         {},
	ResourceRating:       {},
	ResourceAssignment:   {},
}

var knownActions = map[Segment]struct{}{
	ActionCreate:   {},
	ActionRead:     {},
	ActionUpdate:   {},
	ActionDelete:   {},
	ActionInvite:   {},
	ActionAssign:   {},
	ActionCriteria: {},
}

// Permission is a parsed grant or requirement.
type Permission struct {
	Resource Segment
	Action   Segment
	Scope    Segment
}

func New(resource, action, scope Segment) Permission {
	return Permission{Resource: resource, Action: action, Scope: scope}
}

// Parse validates a RESOURCE:ACTION:SCOPE string.
func Parse(raw string) (Permission, error) {
	parts := strings.Split(strings.TrimSpace(raw), separator)
	if len(parts) != 3 {
		return Permission{}, fmt.Errorf("%w: %q", ErrMalformed, raw)
	}

	segments := make([]Segment, 0, 3)
	for _, part := range parts {
		segment, err := parseSegment(part)
		if err != nil {
			return Permission{}, fmt.Errorf("%w: %q", err, raw)
		}
		segments = append(segments, segment)
	}

	p := Permission{Resource: segments[0], Action: segments[1], Scope: segments[2]}
	if !p.Resource.IsAny() {
		if _, ok := knownResources[p.Resource]; !ok {
			return Permission{}, fmt.Errorf("%w: %q", ErrUnknownResource, raw)
		}
	}
	if !p.Action.IsAny() {
		if _, ok := knownActions[p.Action]; !ok {
			return Permission{}, fmt.Errorf("%w: %q", ErrUnknownAction, raw)
		}
	}
	return p, nil
}

// MustParse is Parse for package-level declarations.
func MustParse(raw string) Permission {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(raw string) (Segment, error) {
	if raw == wildcardRaw {
		return Any, nil
	}
	if raw == "" {
		return Segment{}, ErrMalformed
	}
	for _, r := range raw {
		if (r < 'A' || r > 'Z') && r != '_' {
			return Segment{}, ErrMalformed
		}
	}
	return Literal(raw), nil
}

func (p Permission) String() string {
	return p.Resource.String() + separator + p.Action.String() + separator + p.Scope.String()
}

// Covers reports whether the held permission p satisfies required.
func (p Permission) Covers(required Permission) bool {
	return p.Resource.covers(required.Resource) &&
		p.Action.covers(required.Action) &&
		p.Scope.covers(required.Scope)
}

func (p Permission) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Permission) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Matches reports whether held satisfies at least one of required.
// An empty required list is never satisfied; callers that need no
// permission should not call Matches.
func Matches(held, required []Permission) bool {
	for _, want := range required {
		for _, have := range held {
			if have.Covers(want) {
				return true
			}
		}
	}
	return false
}

// MatchStrings is Matches over raw strings. Malformed held grants are skipped
// and malformed requirements can never be satisfied.
func MatchStrings(held, required []string) bool {
	return Matches(parseLenient(held), parseLenient(required))
}

// ParseAll parses every entry and fails on the first malformed one.
func ParseAll(raw []string) ([]Permission, error) {
	out := make([]Permission, 0, len(raw))
	for _, item := range raw {
		p, err := Parse(item)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Strings renders permissions back to their wire form.
func Strings(perms []Permission) []string {
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		out = append(out, p.String())
	}
	return out
}

func parseLenient(raw []string) []Permission {
	out := make([]Permission, 0, len(raw))
	for _, item := range raw {
		p, err := Parse(item)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}
