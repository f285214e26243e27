package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotolower/internal/diag"
	"gotolower/internal/gotoc"
	"gotolower/internal/source"
)

const drvUnit = `name = "drv"
lower = ["drv::Rec"]

[[type]]
name = "drv::Rec"
repr = ["C"]
fields = ["a: u64", "b: u8"]

[[call]]
intrinsic = "size_of"
generic = ["drv::Rec"]
ret = "usize"

[[call]]
intrinsic = "ctpop"
args = ["u32"]
ret = "u32"

[[call]]
intrinsic = "assume"
args = ["bool"]
`

func writeUnit(t *testing.T, dir, name, text string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func dump(t *testing.T, st *gotoc.SymbolTable) string {
	t.Helper()
	var sb strings.Builder
	if err := gotoc.WriteText(&sb, st); err != nil {
		t.Fatal(err)
	}
	return sb.String()
}

func TestRun_LowersAndEmits(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "drv.unit.toml", drvUnit)
	out := filepath.Join(dir, "out")

	batch, err := Run(context.Background(), []string{path}, Options{Emit: EmitAll, OutDir: out})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	r := batch.Results[0]
	if !r.OK() {
		t.Fatalf("unit failed: %v\n%v", r.Err, r.Bag.Items())
	}
	if r.Name != "drv" || r.Unit == nil || r.Cached {
		t.Fatalf("result = %+v", r)
	}
	for _, name := range []string{
		CallFunctionName("drv", 0, "size_of"),
		CallFunctionName("drv", 1, "ctpop") + "::arg0",
		CallFunctionName("drv", 1, "ctpop") + "::dest",
	} {
		if !r.Symtab.Contains(name) {
			t.Fatalf("symbol %s missing from:\n%s", name, dump(t, r.Symtab))
		}
	}
	// assume returns unit: no destination local
	if r.Symtab.Contains(CallFunctionName("drv", 2, "assume") + "::dest") {
		t.Fatalf("unit-returning call got a destination")
	}
	fn, _ := r.Symtab.Lookup(CallFunctionName("drv", 0, "size_of"))
	if fn.Kind != gotoc.SymFunction || fn.Body == nil {
		t.Fatalf("size_of wrapper = %+v", fn)
	}
	if len(r.Outputs) != 2 {
		t.Fatalf("outputs = %v", r.Outputs)
	}
	text, err := os.ReadFile(filepath.Join(out, "drv"+textSuffix))
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != dump(t, r.Symtab) {
		t.Fatalf("emitted text differs from table dump")
	}
	f, err := os.Open(filepath.Join(out, "drv"+archiveSuffix))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	back, producer, err := gotoc.ReadArchive(f)
	if err != nil || producer != "gotolower" || back.Len() != r.Symtab.Len() {
		t.Fatalf("archive: %v, %q, %d symbols", err, producer, back.Len())
	}
}

func TestRun_FailuresStayPerUnit(t *testing.T) {
	dir := t.TempDir()
	good := writeUnit(t, dir, "good.unit.toml", drvUnit)
	bad := writeUnit(t, dir, "bad.unit.toml", "lower = [\"bad::Mystery\"]\n")
	missing := filepath.Join(dir, "missing.unit.toml")

	batch, err := Run(context.Background(), []string{good, bad, missing}, Options{Jobs: 2})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if batch.Failed() != 2 || !batch.Results[0].OK() {
		t.Fatalf("failed = %d", batch.Failed())
	}
	if codes := codesOf(batch.Results[1].Bag); len(codes) != 1 || codes[0] != diag.CfgUnknownType {
		t.Fatalf("bad unit reported %v", codes)
	}
	m := batch.Results[2]
	if m.File != source.NoFile || len(m.Bag.Items()) != 1 || m.Bag.Items()[0].Code != diag.IOLoadFileError {
		t.Fatalf("missing unit: file %d, %v", m.File, m.Bag.Items())
	}
	if m.Bag.Items()[0].Primary.File != source.NoFile {
		t.Fatalf("load error points into a file")
	}
	all := batch.Diagnostics()
	if all.ErrorCount() != 2 {
		t.Fatalf("merged diagnostics = %v", all.Items())
	}
}

func TestRun_CacheReplaysTableAndWarnings(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "drv.unit.toml", "colour = \"red\"\n"+drvUnit)
	cache, err := OpenDiskCacheAt(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	opts := Options{Cache: cache}

	first, err := Run(context.Background(), []string{path}, opts)
	if err != nil || !first.Results[0].OK() {
		t.Fatalf("first run: %v %v", err, first.Results[0].Err)
	}
	second, err := Run(context.Background(), []string{path}, opts)
	if err != nil {
		t.Fatal(err)
	}
	a, b := first.Results[0], second.Results[0]
	if !b.Cached || b.Unit != nil || b.Name != "drv" {
		t.Fatalf("second run not served from cache: %+v", b)
	}
	if dump(t, a.Symtab) != dump(t, b.Symtab) {
		t.Fatalf("cached table differs")
	}
	if a.Bag.Len() != 1 || b.Bag.Len() != 1 {
		t.Fatalf("warnings: first %v, replay %v", a.Bag.Items(), b.Bag.Items())
	}
	wa, wb := a.Bag.Items()[0], b.Bag.Items()[0]
	if wa.Message != wb.Message || wa.Primary != wb.Primary || wb.Severity != diag.SevWarning {
		t.Fatalf("replayed warning %+v, want %+v", wb, wa)
	}

	// another default target is another key
	third, _ := Run(context.Background(), []string{path}, Options{Cache: cache, Target: "i686-linux-gnu"})
	if third.Results[0].Cached {
		t.Fatalf("cache ignored the target")
	}
	if err := cache.DropAll(); err != nil {
		t.Fatal(err)
	}
	fourth, _ := Run(context.Background(), []string{path}, opts)
	if fourth.Results[0].Cached {
		t.Fatalf("DropAll kept entries")
	}
}

func TestRun_EventsEndFinal(t *testing.T) {
	dir := t.TempDir()
	good := writeUnit(t, dir, "good.unit.toml", drvUnit)
	bad := writeUnit(t, dir, "bad.unit.toml", "lower = [\"u8\"]\ntarget = \"pdp11\"\n")
	events := make(chan Event, 64)

	if _, err := Run(context.Background(), []string{good, bad}, Options{Events: events}); err != nil {
		t.Fatal(err)
	}
	last := map[string]Event{}
	for ev := range events {
		if prev, ok := last[ev.Path]; ok && prev.Status.Final() {
			t.Fatalf("event %+v after final %+v", ev, prev)
		}
		last[ev.Path] = ev
	}
	if ev := last[good]; ev.Status != StatusDone || ev.Stage != StageEmit || ev.Items == 0 {
		t.Fatalf("good unit ended with %+v", ev)
	}
	if ev := last[bad]; ev.Status != StatusError || ev.Stage != StageLoad {
		t.Fatalf("bad unit ended with %+v", ev)
	}
}

func TestRun_MergeAndTimings(t *testing.T) {
	dir := t.TempDir()
	a := writeUnit(t, dir, "a.unit.toml", drvUnit)
	b := writeUnit(t, dir, "b.unit.toml", strings.Replace(drvUnit, `name = "drv"`, `name = "other"`, 1))

	batch, err := Run(context.Background(), []string{a, b}, Options{Merge: true, Timings: true})
	if err != nil {
		t.Fatal(err)
	}
	if batch.Merged == nil {
		t.Fatalf("no merged table")
	}
	for _, name := range []string{CallFunctionName("drv", 0, "size_of"), CallFunctionName("other", 0, "size_of")} {
		if !batch.Merged.Contains(name) {
			t.Fatalf("merged table misses %s", name)
		}
	}
	d := batch.Results[0].Bag.Items()
	if len(d) != 1 || d[0].Code != diag.ObsTimings || len(d[0].Notes) != 1 {
		t.Fatalf("timing diagnostic = %v", d)
	}
	if note := d[0].Notes[0].Msg; !strings.Contains(note, `"stages"`) || !strings.Contains(note, `"name":"lower"`) {
		t.Fatalf("timing payload = %s", note)
	}
	if len(batch.Timing.Stages) == 0 || batch.Timing.Stages[0].Name != "load" {
		t.Fatalf("aggregate timing = %+v", batch.Timing)
	}
}

const atomicUnit = `name = "%s"

[[call]]
intrinsic = "atomic_xadd_seqcst"
args = ["*mut %s", "%s"]
ret = "%s"
`

// Each unit's temporaries are scoped by its call function, so a merged
// table keeps every unit's declaration with its own type.
func TestRun_MergeKeepsPerUnitTemporaries(t *testing.T) {
	dir := t.TempDir()
	a := writeUnit(t, dir, "ua.unit.toml", fmt.Sprintf(atomicUnit, "ua", "u8", "u8", "u8"))
	b := writeUnit(t, dir, "ub.unit.toml", fmt.Sprintf(atomicUnit, "ub", "u64", "u64", "u64"))

	batch, err := Run(context.Background(), []string{a, b}, Options{Merge: true})
	if err != nil {
		t.Fatal(err)
	}
	if batch.Merged == nil {
		t.Fatalf("no merged table")
	}
	for _, r := range batch.Results {
		if !r.OK() {
			t.Fatalf("%s failed: %v", r.Path, r.Err)
		}
		for _, sym := range r.Symtab.Symbols() {
			got, ok := batch.Merged.Lookup(sym.Name)
			if !ok {
				t.Fatalf("merged table misses %s", sym.Name)
			}
			if got.Kind != sym.Kind || !got.Type.Equal(sym.Type) {
				t.Fatalf("%s: merged %s, unit %s has %s", sym.Name, got.Type, r.Name, sym.Type)
			}
		}
	}
	for unit, want := range map[string]gotoc.Type{"ua": gotoc.Unsigned(8), "ub": gotoc.Unsigned(64)} {
		name := CallFunctionName(unit, 0, "atomic_xadd_seqcst") + "::temp_1"
		sym, ok := batch.Merged.Lookup(name)
		if !ok || !sym.Type.Equal(want) {
			t.Fatalf("%s = %+v, want %s", name, sym, want)
		}
	}
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeUnit(t, dir, "drv.unit.toml", drvUnit)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, []string{path}, Options{}); !errors.Is(err, ErrCancelled) {
		t.Fatalf("Run = %v, want ErrCancelled", err)
	}
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	b := writeUnit(t, sub, "b.unit.toml", "")
	a := writeUnit(t, dir, "a.unit.toml", "")
	writeUnit(t, dir, "notes.txt", "")

	got, err := ExpandInputs([]string{dir, a})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != a+","+b {
		t.Fatalf("ExpandInputs = %v", got)
	}
	if _, err := ExpandInputs([]string{sub + "/../sub", t.TempDir()}); err == nil {
		t.Fatalf("empty directory accepted")
	}
}

func TestParseEmit(t *testing.T) {
	for in, want := range map[string]EmitKind{"": EmitNone, "text": EmitText, "Archive": EmitArchive, "all": EmitAll} {
		got, err := ParseEmit(in)
		if err != nil || got != want {
			t.Fatalf("ParseEmit(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseEmit("elf"); err == nil {
		t.Fatalf("ParseEmit accepted elf")
	}
}

func TestUnitKey(t *testing.T) {
	var content [32]byte
	base := unitKey(content, "", "gotolower 0.1.0")
	if base != unitKey(content, "", "gotolower 0.1.0") {
		t.Fatalf("key not deterministic")
	}
	content[0] = 1
	if base == unitKey(content, "", "gotolower 0.1.0") {
		t.Fatalf("content ignored")
	}
	content[0] = 0
	if base == unitKey(content, "", "gotolower 0.2.0") || base == unitKey(content, "x86_64-linux-gnu", "gotolower 0.1.0") {
		t.Fatalf("producer or target ignored")
	}
}

func codesOf(bag *diag.Bag) []diag.Code {
	var out []diag.Code
	for _, d := range bag.Items() {
		out = append(out, d.Code)
	}
	return out
}
