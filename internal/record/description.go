package record

import (
	"slices"

	"gwframe/internal/format"
)

// Element is one field descriptor of a Description, stored on disk as an
// FrSE structure. Type is a type tag such as "INT_4U", "STRING",
// "PTR_STRUCT(FrVect *)" or, for arrays, a "*"-prefixed tag like "*STRING".
type Element struct {
	Name    string
	Type    string
	Comment string
}

// Description is the ordered field dictionary of a structure, stored on
// disk as one FrSH followed by one FrSE per field. Descriptions are built
// once and never mutated; accessors return copies.
type Description struct {
	name    string
	class   ClassID
	comment string
	elems   []Element
}

// NewDescription builds a description. Element order is preserved; names
// need not be unique.
func NewDescription(name string, class ClassID, comment string, elems ...Element) *Description {
	return &Description{name: name, class: class, comment: comment, elems: slices.Clone(elems)}
}

// fields is used by structure definitions; the header is filled in by
// Kind.Define.
func fields(elems ...Element) *Description {
	return &Description{elems: elems}
}

func el(name, typ, comment string) Element {
	return Element{Name: name, Type: typ, Comment: comment}
}

func (d *Description) withHeader(name string, class ClassID, comment string) *Description {
	return &Description{name: name, class: class, comment: comment, elems: d.elems}
}

func (d *Description) Name() string    { return d.name }
func (d *Description) Class() ClassID  { return d.class }
func (d *Description) Comment() string { return d.comment }

// Len returns the number of field descriptors.
func (d *Description) Len() int { return len(d.elems) }

// Element returns the i-th descriptor.
func (d *Description) Element(i int) Element { return d.elems[i] }

// Elements returns a copy of all descriptors in order.
func (d *Description) Elements() []Element { return slices.Clone(d.elems) }

// Lookup returns the first descriptor with the given name.
func (d *Description) Lookup(name string) (Element, bool) {
	for _, e := range d.elems {
		if e.Name == name {
			return e, true
		}
	}
	return Element{}, false
}

// Equal compares header and elements.
func (d *Description) Equal(o *Description) bool {
	return d.name == o.name && d.class == o.class && d.comment == o.comment &&
		slices.Equal(d.elems, o.elems)
}

// Records returns the dictionary structures for generation g: the FrSH
// followed by one FrSE per element.
func (d *Description) Records(g Generation) []Record {
	out := make([]Record, 0, len(d.elems)+1)
	out = append(out, &SH{Gen: g, Name: d.name, ID: d.class, Comment: d.comment})
	for _, e := range d.elems {
		out = append(out, &SE{Gen: g, Name: e.Name, Type: e.Type, Comment: e.Comment})
	}
	return out
}

// DescriptionFrom rebuilds a description from dictionary structures read
// from a stream.
func DescriptionFrom(sh *SH, ses []*SE) *Description {
	d := &Description{name: sh.Name, class: sh.ID, comment: sh.Comment}
	d.elems = make([]Element, len(ses))
	for i, se := range ses {
		d.elems[i] = Element{Name: se.Name, Type: se.Type, Comment: se.Comment}
	}
	return d
}

// SH is an FrSH structure: the header of a class dictionary.
type SH struct {
	Gen     Generation
	Name    string
	ID      ClassID
	Comment string
}

func (r *SH) Class() ClassID         { return ClassSH }
func (r *SH) Generation() Generation { return r.Gen }

func (r *SH) Equal(o Record) bool {
	x, ok := o.(*SH)
	return ok && *r == *x
}

// SE is an FrSE structure: one field descriptor of a class dictionary.
type SE struct {
	Gen     Generation
	Name    string
	Type    string
	Comment string
}

func (r *SE) Class() ClassID         { return ClassSE }
func (r *SE) Generation() Generation { return r.Gen }

func (r *SE) Equal(o Record) bool {
	x, ok := o.(*SE)
	return ok && *r == *x
}

func init() {
	Register(&Kind{
		Class:   ClassSH,
		Name:    "FrSH",
		Comment: "Frame Structure Header",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*SH)
			c.Gen = g
			return &c
		},
	}).Define(Gen3, &Codec{
		Description: fields(
			el("name", "STRING", "Name of structure being described"),
			el("class", "INT_2U", "Class number of structure"),
			el("comment", "STRING", "Comment"),
		),
		Bytes: func(r Record, _ Context) int64 {
			x := r.(*SH)
			return format.StringBytes(x.Name) + format.Int2Bytes + format.StringBytes(x.Comment)
		},
		Encode: func(e *format.Encoder, r Record, _ Context) {
			x := r.(*SH)
			e.PutString(x.Name)
			e.PutU16(uint16(x.ID))
			e.PutString(x.Comment)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			return &SH{Gen: ctx.Gen, Name: d.ReadString(), ID: ClassID(d.U16()), Comment: d.ReadString()}
		},
	})

	Register(&Kind{
		Class:   ClassSE,
		Name:    "FrSE",
		Comment: "Frame Structure Element",
		Retag: func(r Record, g Generation) Record {
			c := *r.(*SE)
			c.Gen = g
			return &c
		},
	}).Define(Gen3, &Codec{
		Description: fields(
			el("name", "STRING", "Name of element"),
			el("class", "STRING", "Type of element"),
			el("comment", "STRING", "Comment"),
		),
		Bytes: func(r Record, _ Context) int64 {
			x := r.(*SE)
			return format.StringBytes(x.Name) + format.StringBytes(x.Type) + format.StringBytes(x.Comment)
		},
		Encode: func(e *format.Encoder, r Record, _ Context) {
			x := r.(*SE)
			e.PutString(x.Name)
			e.PutString(x.Type)
			e.PutString(x.Comment)
		},
		Decode: func(d *format.Decoder, ctx Context) Record {
			return &SE{Gen: ctx.Gen, Name: d.ReadString(), Type: d.ReadString(), Comment: d.ReadString()}
		},
	})
}
