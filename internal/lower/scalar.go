package lower

import (
	"gotolower/internal/gotoc"
	"gotolower/internal/types"
)

// scalarType maps primitive source types. Pointer-width integers become
// the C size types so that the machine model decides their width.
func scalarType(tt types.Type) gotoc.Type {
	switch tt.Kind {
	case types.KindBool:
		return gotoc.CBoolT()
	case types.KindChar:
		return gotoc.Signed(32)
	case types.KindInt:
		if tt.Width == types.WidthPtr {
			return gotoc.SSizeTT()
		}
		return gotoc.Signed(int(tt.Width))
	case types.KindUint:
		if tt.Width == types.WidthPtr {
			return gotoc.SizeTT()
		}
		return gotoc.Unsigned(int(tt.Width))
	case types.KindFloat:
		switch tt.Width {
		case types.Width16:
			return gotoc.Float16()
		case types.Width32:
			return gotoc.Float()
		case types.Width128:
			return gotoc.Float128()
		default:
			return gotoc.Double()
		}
	}
	return gotoc.Empty()
}
