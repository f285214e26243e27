package lower

import (
	"strconv"

	"gotolower/internal/types"
)

// MangledName is the declaration name of t. Non-generic repr(C) ADTs keep
// their path so C harnesses can name them; everything else is named by
// the decimal content hash of the type.
func (c *Ctx) MangledName(t types.TypeID) string {
	if info, ok := c.Types.AdtInfo(t); ok && info.Repr.C && !info.Generic() {
		return info.Path
	}
	return "_" + strconv.FormatUint(c.Types.Fingerprint(t), 10)
}
