package layout

import "fmt"

// Target describes the ABI target triple and its primitive properties.
type Target struct {
	Triple       string // e.g. "x86_64-linux-gnu"
	PtrSize      int    // bytes
	PtrAlign     int    // bytes
	IntSize      int    // C int, bytes
	I128Align    int    // alignment of i128/u128
	F128Align    int
	LittleEndian bool
}

func X86_64LinuxGNU() Target {
	return Target{
		Triple:       "x86_64-linux-gnu",
		PtrSize:      8,
		PtrAlign:     8,
		IntSize:      4,
		I128Align:    16,
		F128Align:    16,
		LittleEndian: true,
	}
}

func AArch64LinuxGNU() Target {
	return Target{
		Triple:       "aarch64-linux-gnu",
		PtrSize:      8,
		PtrAlign:     8,
		IntSize:      4,
		I128Align:    16,
		F128Align:    16,
		LittleEndian: true,
	}
}

func I686LinuxGNU() Target {
	return Target{
		Triple:       "i686-linux-gnu",
		PtrSize:      4,
		PtrAlign:     4,
		IntSize:      4,
		I128Align:    16,
		F128Align:    16,
		LittleEndian: true,
	}
}

// TargetByTriple resolves one of the supported triples.
func TargetByTriple(triple string) (Target, error) {
	switch triple {
	case "", "x86_64-linux-gnu", "x86_64-unknown-linux-gnu":
		return X86_64LinuxGNU(), nil
	case "aarch64-linux-gnu", "aarch64-unknown-linux-gnu":
		return AArch64LinuxGNU(), nil
	case "i686-linux-gnu", "i686-unknown-linux-gnu":
		return I686LinuxGNU(), nil
	default:
		return Target{}, fmt.Errorf("unsupported target triple %q", triple)
	}
}

// PtrBits returns the pointer width in bits.
func (t Target) PtrBits() int {
	return t.PtrSize * 8
}
