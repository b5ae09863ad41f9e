// Package section rebuilds checklist section membership for photos whose
// section metadata was lost, using only the order the objects are listed in.
//
// The result is a guess. Nothing in the inputs says which section a photo
// really belongs to, so a Plan must be reviewed by an operator before it is
// written anywhere.
package section

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// Quota is the number of photos a section expects.
type Quota struct {
	Section string
	Count   int
}

// DefaultQuotas is the checklist order used by the field form.
var DefaultQuotas = []Quota{
	{Section: "postes", Count: 2},
	{Section: "seccionamento", Count: 1},
	{Section: "aterramento", Count: 1},
	{Section: "haste", Count: 1},
	{Section: "termometro", Count: 1},
}

var ErrInvalidQuotas = errors.New("invalid quota table")

// ValidateQuotas rejects tables the reconstruction cannot use.
func ValidateQuotas(quotas []Quota) error {
	if len(quotas) == 0 {
		return fmt.Errorf("%w: empty table", ErrInvalidQuotas)
	}
	seen := make(map[string]bool, len(quotas))
	for i, q := range quotas {
		if strings.TrimSpace(q.Section) == "" {
			return fmt.Errorf("%w: entry %d has no section name", ErrInvalidQuotas, i)
		}
		if q.Count <= 0 {
			return fmt.Errorf("%w: section %q has count %d", ErrInvalidQuotas, q.Section, q.Count)
		}
		if seen[q.Section] {
			return fmt.Errorf("%w: section %q listed twice", ErrInvalidQuotas, q.Section)
		}
		seen[q.Section] = true
	}
	return nil
}

// Assignment is one object placed in a section.
type Assignment struct {
	// Position is the object's index in the input list.
	Position int
	Object   string
}

// Bucket is a filled section.
type Bucket struct {
	Section     string
	Assignments []Assignment
}

func (b Bucket) Objects() []string {
	out := make([]string, len(b.Assignments))
	for i, a := range b.Assignments {
		out[i] = a.Object
	}
	return out
}

// Plan is the outcome of one reconstruction.
type Plan struct {
	Buckets []Bucket
	// Omitted lists sections that could not be filled, in quota order.
	Omitted    []string
	Unassigned []Assignment
}

// Bucket returns the filled section with the given name.
func (p Plan) Bucket(section string) (Bucket, bool) {
	for _, b := range p.Buckets {
		if b.Section == section {
			return b, true
		}
	}
	return Bucket{}, false
}

func (p Plan) AssignedCount() int {
	n := 0
	for _, b := range p.Buckets {
		n += len(b.Assignments)
	}
	return n
}

// Reconstruct walks names in order and fills each section's quota in turn.
// A section is only assigned when its whole quota is available; the first
// section that cannot be filled ends the walk and it and every later section
// are omitted. Leftover names are reported as unassigned.
func Reconstruct(names []string, quotas []Quota) Plan {
	var plan Plan
	next := 0

	for qi, q := range quotas {
		if q.Count <= 0 || len(names)-next < q.Count {
			for _, rest := range quotas[qi:] {
				plan.Omitted = append(plan.Omitted, rest.Section)
			}
			break
		}
		b := Bucket{Section: q.Section, Assignments: make([]Assignment, 0, q.Count)}
		for i := 0; i < q.Count; i++ {
			b.Assignments = append(b.Assignments, Assignment{Position: next, Object: names[next]})
			next++
		}
		plan.Buckets = append(plan.Buckets, b)
	}

	for ; next < len(names); next++ {
		plan.Unassigned = append(plan.Unassigned, Assignment{Position: next, Object: names[next]})
	}
	return plan
}

// WriteAudit writes the plan in the order objects were consumed so an
// operator can check every placement before it is applied.
func (p Plan) WriteAudit(w io.Writer) error {
	var sb strings.Builder
	sb.WriteString("# best-effort reconstruction from listing order; verify before applying\n")
	for _, b := range p.Buckets {
		fmt.Fprintf(&sb, "%s (%d)\n", b.Section, len(b.Assignments))
		for _, a := range b.Assignments {
			fmt.Fprintf(&sb, "  #%d %s\n", a.Position, a.Object)
		}
	}
	for _, s := range p.Omitted {
		fmt.Fprintf(&sb, "%s: not assigned, listing exhausted\n", s)
	}
	if len(p.Unassigned) > 0 {
		fmt.Fprintf(&sb, "unassigned (%d)\n", len(p.Unassigned))
		for _, a := range p.Unassigned {
			fmt.Fprintf(&sb, "  #%d %s\n", a.Position, a.Object)
		}
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
