package toolchain

import (
	"os"

	"arxiv-refextract/internal/types"
)

// Frame is a scoped process-environment override: PATH gets the
// toolchain's directories prepended and TEXMFCNF is set (or unset) for
// the duration of one compile attempt, then restored exactly on Release
// regardless of how the compile attempt ended.
type Frame struct {
	prevPath     string
	prevTexmfCnf string
	hadTexmfCnf  bool
}

// Apply prepends tc's directories onto PATH and sets TEXMFCNF, returning a
// Frame whose Release restores both to their pre-Apply values.
func Apply(tc types.Toolchain) *Frame {
	f := &Frame{prevPath: os.Getenv("PATH")}

	newPath := f.prevPath
	for i := len(tc.PathPrepend) - 1; i >= 0; i-- {
		newPath = tc.PathPrepend[i] + string(os.PathListSeparator) + newPath
	}
	os.Setenv("PATH", newPath)

	if v, ok := os.LookupEnv("TEXMFCNF"); ok {
		f.prevTexmfCnf = v
		f.hadTexmfCnf = true
	}
	if tc.TexmfCnf != "" {
		os.Setenv("TEXMFCNF", tc.TexmfCnf)
	} else {
		os.Unsetenv("TEXMFCNF")
	}

	return f
}

// Release restores PATH and TEXMFCNF to the values captured by Apply.
func (f *Frame) Release() {
	os.Setenv("PATH", f.prevPath)
	if f.hadTexmfCnf {
		os.Setenv("TEXMFCNF", f.prevTexmfCnf)
	} else {
		os.Unsetenv("TEXMFCNF")
	}
}
