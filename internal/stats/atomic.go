package stats

import (
	"os"
	"path/filepath"
)

// atomicFile buffers writes to a sibling temp file and only replaces the
// target on a clean Close, so a reader never observes a partially
// written corpus file. Matches spec section 5's write-to-temp-then-
// rename rule, applied here to Save's per-file regeneration (ported from
// Stats::save, which wrote its CSVs directly; the original's bare
// ofstream writes are the gap this closes).
type atomicFile struct {
	f    *os.File
	path string
}

func createAtomic(path string) (*atomicFile, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return nil, err
	}
	return &atomicFile{f: tmp, path: path}, nil
}

func (a *atomicFile) Write(p []byte) (int, error) {
	return a.f.Write(p)
}

func (a *atomicFile) Close() error {
	if err := a.f.Close(); err != nil {
		os.Remove(a.f.Name())
		return err
	}
	return os.Rename(a.f.Name(), a.path)
}

// writeFileAtomic is os.WriteFile's atomic equivalent, used for Save's
// single-shot blocks.asm write.
func writeFileAtomic(path string, data []byte) error {
	af, err := createAtomic(path)
	if err != nil {
		return err
	}
	if _, err := af.Write(data); err != nil {
		af.f.Close()
		os.Remove(af.f.Name())
		return err
	}
	return af.Close()
}
