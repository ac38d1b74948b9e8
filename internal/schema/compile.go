package schema

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Relation is a compiled relation policy.
type Relation struct {
	Name        string
	Container   string
	Item        string
	Description string
	Capacity    int
	Containers  map[string]ContainerPolicy
}

// ContainerPolicy overrides the relation policy for one named container.
type ContainerPolicy struct {
	Capacity int
	Frozen   bool
}

// PolicyFor returns the effective policy for a named container.
func (r *Relation) PolicyFor(container string) ContainerPolicy {
	if p, ok := r.Containers[container]; ok {
		return p
	}
	return ContainerPolicy{Capacity: r.Capacity}
}

// ContainerNames returns the names with overrides, sorted.
func (r *Relation) ContainerNames() []string {
	names := make([]string, 0, len(r.Containers))
	for n := range r.Containers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CompileRelation parses a CUE value into a Relation.
//
// The CUE value should be the relation struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`relation: LineItems: { ... }`)
//	rel, err := CompileRelation(v.LookupPath(cue.ParsePath("relation.LineItems")))
func CompileRelation(v cue.Value) (*Relation, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rel := &Relation{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		rel.Name = labels[len(labels)-1].String()
	}

	var err error
	if rel.Container, err = requiredString(v, "container"); err != nil {
		return nil, err
	}
	if rel.Item, err = requiredString(v, "item"); err != nil {
		return nil, err
	}
	if rel.Container == rel.Item {
		return nil, &CompileError{
			Field:   "kinds",
			Message: fmt.Sprintf("item kind must differ from container kind %q", rel.Container),
			Pos:     v.LookupPath(cue.ParsePath("item")).Pos(),
		}
	}

	if d := v.LookupPath(cue.ParsePath("description")); d.Exists() {
		if rel.Description, err = d.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if rel.Capacity, err = optionalCapacity(v); err != nil {
		return nil, err
	}

	rel.Containers, err = parseContainers(v)
	if err != nil {
		return nil, err
	}
	return rel, nil
}

func parseContainers(v cue.Value) (map[string]ContainerPolicy, error) {
	out := make(map[string]ContainerPolicy)
	cv := v.LookupPath(cue.ParsePath("containers"))
	if !cv.Exists() {
		return out, nil
	}

	iter, err := cv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		entry := iter.Value()
		capacity, err := optionalCapacity(entry)
		if err != nil {
			return nil, err
		}
		policy := ContainerPolicy{Capacity: capacity}
		if f := entry.LookupPath(cue.ParsePath("frozen")); f.Exists() {
			if policy.Frozen, err = f.Bool(); err != nil {
				return nil, &CompileError{Field: "frozen", Message: "frozen must be a bool", Pos: f.Pos()}
			}
		}
		out[iter.Label()] = policy
	}
	return out, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	f := v.LookupPath(cue.ParsePath(field))
	if !f.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := f.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: field + " must be a string", Pos: f.Pos()}
	}
	if s == "" {
		return "", &CompileError{Field: field, Message: field + " must not be empty", Pos: f.Pos()}
	}
	return s, nil
}

// optionalCapacity reads an int capacity field. Floats are rejected so
// policies never carry fractional bounds.
func optionalCapacity(v cue.Value) (int, error) {
	f := v.LookupPath(cue.ParsePath("capacity"))
	if !f.Exists() {
		return 0, nil
	}
	if f.IncompleteKind() != cue.IntKind {
		return 0, &CompileError{Field: "capacity", Message: "capacity must be an int", Pos: f.Pos()}
	}
	n, err := f.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if n < 0 {
		return 0, &CompileError{Field: "capacity", Message: fmt.Sprintf("capacity must not be negative, got %d", n), Pos: f.Pos()}
	}
	return int(n), nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
