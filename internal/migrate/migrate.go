// Package migrate converts records and frames between generations by
// chaining the single-step promotions and demotions each structure
// registers.
package migrate

import (
	"errors"
	"fmt"

	"gwframe/internal/format"
	"gwframe/internal/record"
)

// Path returns the generations a record of class passes through on its way
// from one generation to another, both ends included. It fails with
// ErrUnsupportedMigration if any step is undefined.
func Path(class record.ClassID, from, to record.Generation) ([]record.Generation, error) {
	k, ok := record.KindOf(class)
	if !ok {
		return nil, unsupported(class, from, to, errors.New("unregistered class"))
	}
	if !from.Valid() || !to.Valid() {
		return nil, unsupported(class, from, to, errors.New("generation out of range"))
	}
	if k.Codec(from) == nil {
		return nil, unsupported(class, from, to, fmt.Errorf("%s not defined in %v", k.Name, from))
	}
	path := []record.Generation{from}
	for g := from; g != to; {
		next := g + 1
		if to < from {
			next = g - 1
		}
		if err := stepDefined(k, g, next); err != nil {
			return nil, unsupported(class, from, to, err)
		}
		path = append(path, next)
		g = next
	}
	return path, nil
}

func stepDefined(k *record.Kind, from, to record.Generation) error {
	cur, nxt := k.Codec(from), k.Codec(to)
	switch {
	case nxt == nil:
		return fmt.Errorf("%s not defined in %v", k.Name, to)
	case nxt == cur:
		return nil
	case to > from && nxt.Promote == nil:
		return fmt.Errorf("no promotion %v->%v", from, to)
	case to < from && cur.Demote == nil:
		return fmt.Errorf("no demotion %v->%v", from, to)
	}
	return nil
}

func unsupported(class record.ClassID, from, to record.Generation, err error) error {
	return &format.Error{
		Kind:     format.ErrUnsupportedMigration,
		Offset:   -1,
		Class:    uint16(class),
		Struct:   class.String(),
		Expected: to,
		Actual:   from,
		Err:      err,
	}
}

// Convert migrates r to target one generation at a time. Each step builds
// a new record; r is never modified. When r is already at target an
// independent copy is returned.
func Convert(r record.Record, target record.Generation, ctx record.Context) (record.Record, error) {
	path, err := Path(r.Class(), r.Generation(), target)
	if err != nil {
		return nil, err
	}
	if len(path) == 1 {
		k, _ := record.KindOf(r.Class())
		return k.Retag(r, target), nil
	}
	cur := r
	for _, g := range path[1:] {
		if g > cur.Generation() {
			cur, err = record.Promote(cur, g, ctx)
		} else {
			cur, err = record.Demote(cur, g, ctx)
		}
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}
