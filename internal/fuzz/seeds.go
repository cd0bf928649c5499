package fuzztests

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

const maxSeedBytes = 64 << 10

// yamlSeedDirs hold IR documents and header fixtures used by the package
// tests.
var yamlSeedDirs = []string{
	filepath.Join("..", "match", "testdata"),
	filepath.Join("..", "pipeline", "testdata"),
	filepath.Join("..", "synth", "testdata"),
	filepath.Join("..", "headerdb", "testdata"),
}

func addYAMLSeeds(f *testing.F) {
	for _, root := range yamlSeedDirs {
		if _, err := os.Stat(root); err != nil {
			continue
		}
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil || d.IsDir() {
				return nil
			}
			switch filepath.Ext(path) {
			case ".yaml", ".yml":
			default:
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
	f.Add([]byte("decls: []\n"))
}

var typeSeeds = []string{
	"int",
	"unsigned long long int",
	"const ::ns::C &",
	"ns::C&&",
	"std::unique_ptr<long long>",
	"std::array<int, 3>",
	"std::function<void (child, int)>",
	"int (*)(int, double)",
	"outer<int>::inner",
	"char[4]",
	"const char *const *",
}

func addTypeSeeds(f *testing.F) {
	for _, s := range typeSeeds {
		f.Add(s)
	}
	// near misses
	f.Add("std::vector<int")
	f.Add("int (*)(")
	f.Add("const")
	f.Add("")
}

func clampSeed(src []byte) []byte {
	if len(src) <= maxSeedBytes {
		return append([]byte(nil), src...)
	}
	return append([]byte(nil), src[:maxSeedBytes]...)
}
