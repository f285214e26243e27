package lower

import (
	"gotolower/internal/gotoc"
	"gotolower/internal/layout"
	"gotolower/internal/types"
)

// EncodingKind is how a lowered enum stores its discriminant.
type EncodingKind uint8

const (
	// EncSingle: one representable variant, no tag.
	EncSingle EncodingKind = iota
	// EncDirect: a `case` tag followed by the `cases` union.
	EncDirect
	// EncNiche: only the dataful variant; other variants live in its niche.
	EncNiche
)

func (k EncodingKind) String() string {
	switch k {
	case EncSingle:
		return "single"
	case EncDirect:
		return "direct"
	case EncNiche:
		return "niche"
	default:
		return "encoding?"
	}
}

// EnumEncoding describes the lowered shape of an enum.
type EnumEncoding struct {
	Kind EncodingKind
	// Variant is the only variant (Single) or the dataful one (Niche).
	Variant int
	// TagType is the type of the tag (Direct) or of the niche scalar (Niche).
	TagType gotoc.Type
	// Cases is the union of variant structs (Direct).
	Cases gotoc.Type
}

// EnumEncodingOf lowers t if needed and returns its encoding, or nil when t
// is not an enum.
func (c *Ctx) EnumEncodingOf(t types.TypeID) *EnumEncoding {
	c.LowerType(t)
	return c.encodings[t]
}

func (c *Ctx) enumType(t types.TypeID, info *types.AdtInfo, name string) gotoc.Type {
	return c.ensureStruct(name, info.Path, t, func() []gotoc.Component {
		l := c.layoutOf(t)
		if l.Variants.Kind == layout.VariantsSingle {
			c.encodings[t] = &EnumEncoding{Kind: EncSingle, Variant: l.Variants.Index}
			names, tys := variantFields(info, l.Variants.Index)
			return c.structFields(t, names, tys, l, 0)
		}
		tagType := primType(l.Variants.Tag.Prim)
		if l.Variants.Encoding == layout.EncodingNiche {
			dataful := l.Variants.Dataful
			c.encodings[t] = &EnumEncoding{Kind: EncNiche, Variant: dataful, TagType: tagType}
			names, tys := variantFields(info, dataful)
			return c.structFields(t, names, tys, l.VariantLayout(dataful), 0)
		}
		return c.directFields(t, info, name, l, tagType)
	})
}

// directFields lays out {case, [$pad], cases}. Every variant struct starts
// at the smallest first-field offset over all variants, so the union sits
// at one offset for all of them.
func (c *Ctx) directFields(t types.TypeID, info *types.AdtInfo, name string, l *layout.Layout, tagType gotoc.Type) []gotoc.Component {
	tagBits := l.Variants.Tag.Prim.Bits()
	initial := directInitialOffset(l, tagBits)

	comps := []gotoc.Component{gotoc.Field("case", tagType)}
	if initial > tagBits {
		comps = append(comps, padding(len(comps), initial-tagBits))
	}
	widest := 0
	cases := c.ensureUnion(name+"-union", info.Path+"-union", types.NoTypeID, func() []gotoc.Component {
		members := make([]gotoc.Component, 0, len(info.Variants))
		for i, variant := range info.Variants {
			vl := l.VariantLayout(i)
			if vl == nil {
				c.internalf("enum variants", t, "no layout for variant %s", variant.Name)
			}
			names, tys := variantFields(info, i)
			vt := c.ensureStruct(name+"::"+variant.Name, info.Path+"::"+variant.Name, types.NoTypeID, func() []gotoc.Component {
				return c.structFields(t, names, tys, vl, initial)
			})
			members = append(members, gotoc.Field(variant.Name, vt))
			widest = max(widest, vl.Size*8-initial)
		}
		return members
	})
	comps = append(comps, gotoc.Field("cases", cases))
	if end := l.Size * 8; end > initial+widest {
		comps = append(comps, padding(len(comps), end-initial-widest))
	}
	c.encodings[t] = &EnumEncoding{Kind: EncDirect, TagType: tagType, Cases: cases}
	return comps
}

// directInitialOffset is the minimum over variants of their lowest field
// offset, in bits. Variants without fields do not count; with no fields at
// all the payload starts right after the tag.
func directInitialOffset(l *layout.Layout, tagBits int) int {
	initial := -1
	for _, vl := range l.Variants.Layouts {
		if vl == nil || vl.Fields.Len() == 0 {
			continue
		}
		first := vl.Fields.IndexByIncreasingOffset()[0]
		off := vl.Fields.Offset(first) * 8
		if initial < 0 || off < initial {
			initial = off
		}
	}
	if initial < 0 {
		return tagBits
	}
	return initial
}

func primType(p layout.Primitive) gotoc.Type {
	if p.Kind == layout.PrimInt && p.Signed {
		return gotoc.Signed(p.Bits())
	}
	return gotoc.Unsigned(p.Bits())
}
