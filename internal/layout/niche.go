package layout

// PrimKind is the machine class of a scalar.
type PrimKind uint8

const (
	PrimInt PrimKind = iota
	PrimFloat
	PrimPointer
)

// Primitive is a machine scalar: an integer of Size bytes, a float or a pointer.
type Primitive struct {
	Kind   PrimKind
	Size   int
	Signed bool
}

// Bits returns the primitive width in bits.
func (p Primitive) Bits() int {
	return p.Size * 8
}

// Scalar is a primitive with its valid value range. The range wraps around
// when ValidStart > ValidEnd, like rustc's WrappingRange.
type Scalar struct {
	Prim       Primitive
	ValidStart uint64
	ValidEnd   uint64
}

// mask returns the all-ones value of the scalar width. Widths beyond 64 bits
// are tracked only in their low 64 bits and never offer a niche.
func (s Scalar) mask() uint64 {
	if s.Prim.Size >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (uint(s.Prim.Size) * 8)) - 1
}

// FullRange reports whether every bit pattern is valid.
func (s Scalar) FullRange() bool {
	return s.Available() == 0
}

// Available returns the number of invalid bit patterns.
func (s Scalar) Available() uint64 {
	if s.Prim.Size > 8 || s.Prim.Kind == PrimFloat {
		return 0
	}
	m := s.mask()
	return (s.ValidStart - s.ValidEnd - 1) & m
}

// Contains reports whether v is in the valid range.
func (s Scalar) Contains(v uint64) bool {
	v &= s.mask()
	if s.ValidStart <= s.ValidEnd {
		return v >= s.ValidStart && v <= s.ValidEnd
	}
	return v >= s.ValidStart || v <= s.ValidEnd
}

func fullScalar(p Primitive) Scalar {
	s := Scalar{Prim: p}
	s.ValidEnd = s.mask()
	return s
}

// Niche is a scalar inside a value whose invalid patterns can encode
// other enum variants.
type Niche struct {
	Offset int
	Scalar Scalar
}

// Available returns how many extra values the niche can encode.
func (n *Niche) Available() uint64 {
	if n == nil {
		return 0
	}
	return n.Scalar.Available()
}

// reserve claims count invalid values after the valid range. It returns the
// first claimed value and the scalar with the extended range.
func (n *Niche) reserve(count uint64) (uint64, Scalar, bool) {
	if n == nil || count == 0 || n.Available() < count {
		return 0, Scalar{}, false
	}
	m := n.Scalar.mask()
	start := (n.Scalar.ValidEnd + 1) & m
	out := n.Scalar
	out.ValidEnd = (n.Scalar.ValidEnd + count) & m
	return start, out, true
}

func (n *Niche) shifted(by int) *Niche {
	if n == nil {
		return nil
	}
	return &Niche{Offset: n.Offset + by, Scalar: n.Scalar}
}

func largerNiche(a, b *Niche) *Niche {
	if b.Available() > a.Available() {
		return b
	}
	return a
}
