package fuzztests

import (
	"testing"
	"time"

	"gotolower/internal/diag"
	"gotolower/internal/layout"
	"gotolower/internal/source"
	"gotolower/internal/unit"
)

// loadTimeout bounds one unit load; exceeding it means a loop in the
// loader or in layout computation.
const loadTimeout = 5 * time.Second

func FuzzParseType(f *testing.F) {
	addTypeSeeds(f)
	f.Fuzz(func(t *testing.T, src string) {
		if len(src) > maxFuzzInput {
			src = src[:maxFuzzInput]
		}
		_, _, _ = unit.ParseArg(src)
		e, err := unit.ParseType(src)
		if err != nil {
			return
		}
		if e.String() == "" {
			t.Fatalf("ParseType(%q) gave an empty canonical form", src)
		}
	})
}

func FuzzLoadUnit(f *testing.F) {
	addUnitSeeds(f)
	f.Fuzz(func(t *testing.T, input []byte) {
		if len(input) > maxFuzzInput {
			input = append([]byte(nil), input[:maxFuzzInput]...)
		} else {
			input = append([]byte(nil), input...)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			fs := source.NewFileSet()
			id := fs.AddVirtual("fuzz.unit.toml", input)
			bag := diag.NewBag(128)
			u, err := unit.Load(fs, id, unit.Options{Reporter: &diag.BagReporter{Bag: bag}})
			if err != nil || u == nil {
				return
			}
			eng := layout.New(u.Target, u.Types)
			for _, ref := range u.Lower {
				_, _ = eng.LayoutOf(ref.Type)
			}
		}()

		select {
		case <-done:
		case <-time.After(loadTimeout):
			t.Fatalf("unit load did not finish within %v (input %d bytes)", loadTimeout, len(input))
		}
	})
}
