package normalize

import (
	"fmt"
	"strconv"
	"strings"
)

// Edit is a decoded "start:deleted/inserted:stop" path difference.
type Edit struct {
	Start    int
	Stop     int
	Deleted  string
	Inserted string
}

// ParseEdit decodes an upstream variant field. Alleles are upper-cased.
func ParseEdit(s string) (Edit, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Edit{}, fmt.Errorf("%w: %q", ErrBadEdit, s)
	}
	del, ins, ok := strings.Cut(parts[1], "/")
	if !ok || strings.Contains(ins, "/") {
		return Edit{}, fmt.Errorf("%w: %q", ErrBadEdit, s)
	}
	start, err := strconv.Atoi(parts[0])
	if err != nil {
		return Edit{}, fmt.Errorf("%w: %q: start: %v", ErrBadEdit, s, err)
	}
	stop, err := strconv.Atoi(parts[2])
	if err != nil {
		return Edit{}, fmt.Errorf("%w: %q: stop: %v", ErrBadEdit, s, err)
	}
	if del == "" && ins == "" {
		return Edit{}, fmt.Errorf("%w: %q: empty edit", ErrBadEdit, s)
	}
	return Edit{
		Start:    start,
		Stop:     stop,
		Deleted:  strings.ToUpper(del),
		Inserted: strings.ToUpper(ins),
	}, nil
}

// Trim removes bases shared by both alleles at either end. Identical alleles
// are returned unchanged. A result with only inserted bases is re-expressed
// with its start on the base before the insertion, the convention used for
// insertions upstream.
func (e Edit) Trim() Edit {
	if e.Deleted == e.Inserted {
		return e
	}
	del, ins := e.Deleted, e.Inserted

	p := 0
	for p < len(del) && p < len(ins) && del[p] == ins[p] {
		p++
	}
	del, ins = del[p:], ins[p:]

	s := 0
	for s < len(del) && s < len(ins) && del[len(del)-1-s] == ins[len(ins)-1-s] {
		s++
	}
	del, ins = del[:len(del)-s], ins[:len(ins)-s]

	if p == 0 && s == 0 {
		return e
	}
	out := Edit{Start: e.Start + p, Stop: e.Stop - s, Deleted: del, Inserted: ins}
	if del == "" && e.Deleted != "" {
		out.Start--
		out.Stop = out.Start
	}
	return out
}

// IsInsertion reports whether the edit only adds bases.
func (e Edit) IsInsertion() bool { return e.Deleted == "" && e.Inserted != "" }

// IsDeletion reports whether the edit only removes bases.
func (e Edit) IsDeletion() bool { return e.Inserted == "" && e.Deleted != "" }
