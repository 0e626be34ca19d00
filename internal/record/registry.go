// Package record implements the frame structure model: one Go type per
// logical structure, tagged with the generation it is encoded in, and a
// registry of per-generation codecs keyed by (class, generation).
//
// The registry is populated by package init functions and is read-only
// afterwards; lookups need no locking.
package record

import (
	"errors"
	"fmt"
	"slices"

	"gwframe/internal/format"
)

// Record is a decoded frame structure.
type Record interface {
	Class() ClassID
	Generation() Generation
	Equal(Record) bool
}

// Context is the stream state a codec may depend on.
type Context struct {
	Gen Generation
	// Frame is the frame header enclosing the record, when known. Promotions
	// use it to default fields that older generations did not carry.
	Frame *FrameH
}

// Codec is the function table of one structure in one generation.
// Promote builds this generation's record from the previous generation's;
// Demote builds the previous generation's record from this one. A nil
// migration function means the step is unsupported.
type Codec struct {
	Description *Description
	Bytes       func(r Record, ctx Context) int64
	Encode      func(e *format.Encoder, r Record, ctx Context)
	Decode      func(d *format.Decoder, ctx Context) Record
	Promote     func(prev Record, ctx Context) (Record, error)
	Demote      func(r Record, ctx Context) (Record, error)
}

// Kind describes a logical structure across generations.
type Kind struct {
	Class   ClassID
	Name    string
	Comment string
	// Retag returns an independent copy of r carrying generation g. It
	// implements migration across generations that share a codec.
	Retag func(r Record, g Generation) Record

	codecs [Newest + 1]*Codec
}

var kinds = map[ClassID]*Kind{}

// Register adds k to the registry. It must only be called from init.
func Register(k *Kind) *Kind {
	if _, dup := kinds[k.Class]; dup {
		panic(fmt.Sprintf("record: class %d registered twice", k.Class))
	}
	if k.Retag == nil {
		panic(fmt.Sprintf("record: class %d has no Retag", k.Class))
	}
	kinds[k.Class] = k
	return k
}

// Define installs the codec used from generation g onward, until the next
// Define. Later generations alias it.
func (k *Kind) Define(g Generation, c *Codec) *Kind {
	if c.Description != nil {
		c.Description = c.Description.withHeader(k.Name, k.Class, k.Comment)
	}
	for gen := g; gen <= Newest; gen++ {
		k.codecs[gen] = c
	}
	return k
}

// Codec returns the codec for generation g, or nil.
func (k *Kind) Codec(g Generation) *Codec {
	if !g.Valid() {
		return nil
	}
	return k.codecs[g]
}

// Defined lists the generations k has a codec for.
func (k *Kind) Defined() []Generation {
	var out []Generation
	for _, g := range Generations() {
		if k.codecs[g] != nil {
			out = append(out, g)
		}
	}
	return out
}

// Aliased reports whether generation g reuses the previous generation's
// codec unchanged.
func (k *Kind) Aliased(g Generation) bool {
	prev, ok := g.Prev()
	return ok && k.codecs[g] != nil && k.codecs[g] == k.codecs[prev]
}

// KindOf returns the registered kind for class.
func KindOf(class ClassID) (*Kind, bool) {
	k, ok := kinds[class]
	return k, ok
}

// Kinds returns every registered kind ordered by class id.
func Kinds() []*Kind {
	out := make([]*Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	slices.SortFunc(out, func(a, b *Kind) int { return int(a.Class) - int(b.Class) })
	return out
}

// Lookup returns the codec for (class, g).
func Lookup(class ClassID, g Generation) (*Codec, error) {
	k, ok := kinds[class]
	if !ok {
		return nil, &format.Error{Kind: format.ErrUnknownStruct, Offset: -1, Class: uint16(class)}
	}
	c := k.Codec(g)
	if c == nil {
		return nil, &format.Error{Kind: format.ErrUnknownStruct, Offset: -1, Class: uint16(class),
			Struct: k.Name, Err: fmt.Errorf("not defined in generation %d", g)}
	}
	return c, nil
}

// Describe returns the field dictionary of class in generation g.
func Describe(class ClassID, g Generation) (*Description, error) {
	c, err := Lookup(class, g)
	if err != nil {
		return nil, err
	}
	if c.Description == nil {
		return nil, fmt.Errorf("%s has no description", class)
	}
	return c.Description, nil
}

func codecFor(r Record, ctx Context) (*Codec, error) {
	if r.Generation() != ctx.Gen {
		return nil, &format.Error{Kind: format.ErrFormat, Offset: -1, Class: uint16(r.Class()),
			Struct: r.Class().String(), Expected: ctx.Gen, Actual: r.Generation(),
			Err: errors.New("record generation differs from stream")}
	}
	return Lookup(r.Class(), ctx.Gen)
}

// Bytes returns the exact encoded size of r's body in ctx.
func Bytes(r Record, ctx Context) (int64, error) {
	c, err := codecFor(r, ctx)
	if err != nil {
		return 0, err
	}
	return c.Bytes(r, ctx), nil
}

// Write appends r's body to e.
func Write(e *format.Encoder, r Record, ctx Context) error {
	c, err := codecFor(r, ctx)
	if err != nil {
		return err
	}
	c.Encode(e, r, ctx)
	return e.Err()
}

// Create decodes one structure body of the given class. The decoder must
// hold exactly the body; leftover bytes are a format error.
func Create(d *format.Decoder, class ClassID, ctx Context) (Record, error) {
	c, err := Lookup(class, ctx.Gen)
	if err != nil {
		return nil, err
	}
	r := c.Decode(d, ctx)
	if err := d.Finish(); err != nil {
		return nil, format.At(err, d.Offset(), uint16(class), class.String())
	}
	return r, nil
}

// Promote migrates r one generation forward to target, which must be
// exactly r.Generation()+1.
func Promote(r Record, target Generation, ctx Context) (Record, error) {
	from := r.Generation()
	if next, ok := from.Next(); !ok || next != target {
		return nil, unsupported(r, target, "promote is a single step")
	}
	k, ok := kinds[r.Class()]
	if !ok {
		return nil, unsupported(r, target, "unregistered class")
	}
	cur, nxt := k.codecs[from], k.codecs[target]
	switch {
	case nxt == nil:
		return nil, unsupported(r, target, "structure not defined in target")
	case nxt == cur:
		return k.Retag(r, target), nil
	case nxt.Promote == nil:
		return nil, unsupported(r, target, "no promotion defined")
	}
	ctx.Gen = target
	return nxt.Promote(r, ctx)
}

// Demote migrates r one generation back to target, which must be exactly
// r.Generation()-1.
func Demote(r Record, target Generation, ctx Context) (Record, error) {
	from := r.Generation()
	if prev, ok := from.Prev(); !ok || prev != target {
		return nil, unsupported(r, target, "demote is a single step")
	}
	k, ok := kinds[r.Class()]
	if !ok {
		return nil, unsupported(r, target, "unregistered class")
	}
	cur, prv := k.codecs[from], k.codecs[target]
	switch {
	case prv == nil:
		return nil, unsupported(r, target, "structure not defined in target")
	case prv == cur:
		return k.Retag(r, target), nil
	case cur.Demote == nil:
		return nil, unsupported(r, target, "no demotion defined")
	}
	ctx.Gen = target
	return cur.Demote(r, ctx)
}

func unsupported(r Record, target Generation, reason string) error {
	return &format.Error{
		Kind:     format.ErrUnsupportedMigration,
		Offset:   -1,
		Class:    uint16(r.Class()),
		Struct:   r.Class().String(),
		Expected: target,
		Actual:   r.Generation(),
		Err:      errors.New(reason),
	}
}

// widened returns a copy of c for generation 6, where PTR_STRUCT instance
// numbers grow from INT_2U to INT_4U and nothing else changes. Demotion
// fails if any pointer returned by ptrs no longer fits.
func widened(c *Codec, k *Kind, ptrs func(Record) []Ptr) *Codec {
	w := *c
	w.Promote = func(prev Record, ctx Context) (Record, error) {
		return k.Retag(prev, ctx.Gen), nil
	}
	w.Demote = func(r Record, ctx Context) (Record, error) {
		for _, p := range ptrs(r) {
			if err := demotePtr(p, p.Class.String()); err != nil {
				return nil, err
			}
		}
		return k.Retag(r, ctx.Gen), nil
	}
	return &w
}
