package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	maxSeedBytes = 64 << 10 // 64 KiB, ограничение для тестового корпуса
	maxFuzzInput = 16 << 10
)

var typeSeeds = []string{
	"u32",
	"&mut [demo::Rec; 4]",
	"*const ()",
	"(u8, &str, !)",
	"core::option::Option<&u8>",
	"&dyn demo::Area",
	`extern "C" fn(u32, ...) -> i32`,
	"demo::main::{closure#0}",
	"[u8; 1_000]",
	"u8 = 200",
	"[u32; 2] = [1, 4]",
	"bool = true",
}

func addUnitSeeds(f *testing.F) {
	root := filepath.Join("..", "..", "testdata")
	if _, err := os.Stat(root); err == nil {
		// проходим по testdata, добавляем все *.unit.toml
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() || !strings.HasSuffix(path, ".unit.toml") {
				return nil
			}
			// #nosec G304 -- path comes from repository testdata walk
			src, err := os.ReadFile(path)
			if err != nil {
				return nil
			}
			f.Add(clampSeed(src))
			return nil
		})
	}
	f.Add([]byte{})
	f.Add([]byte("name = \"x\"\nlower = [\"u8\"]\n"))
}

func addTypeSeeds(f *testing.F) {
	for _, s := range typeSeeds {
		f.Add(s)
	}
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
