// Package toolchain selects the era-appropriate TeX installation for a
// submission date. Older submissions were compiled against teTeX trees
// whose TEXMFCNF layout differs from the packages TeX Live ships today;
// replaying them correctly means pointing PATH and TEXMFCNF at the tree
// that was current when the paper was submitted.
package toolchain

import (
	"path/filepath"

	"arxiv-refextract/internal/types"
)

// dateRange pairs a lower bound (inclusive, YYYYMMDD) with the toolchain
// to use for submissions on or after that date, checked in descending
// order so the first matching (and most recent) range wins.
type dateRange struct {
	from     int
	dir      string
	texmfCnf string // relative to texbase; empty means "unset"
}

var ranges = []dateRange{
	{from: 20170209, dir: "TL2016", texmfCnf: ""},
	{from: 20111206, dir: "TL2011", texmfCnf: ""},
	{from: 20091231, dir: "TL2009", texmfCnf: ""},
	{from: 20061102, dir: "teTeX3", texmfCnf: "teTeX3/web2c"},
	{from: 20040101, dir: "teTeX2", texmfCnf: "texmf-2004/web2c"},
	{from: 20030101, dir: "teTeX2", texmfCnf: "texmf-2003/web2c"},
	{from: 20020901, dir: "teTeX2", texmfCnf: "texmf-2002/web2c"},
}

const fallbackDir = "teTeX2"
const fallbackTexmfCnf = "texmf/web2c"

// Select returns the Toolchain for a submission date (YYYYMMDD). texbase
// is the root directory containing each era's installation; Select joins
// it onto the selected subdirectory to build PathPrepend.
func Select(texbase string, subdate int) types.Toolchain {
	for _, r := range ranges {
		if subdate >= r.from {
			return build(texbase, r.dir, r.texmfCnf)
		}
	}
	return build(texbase, fallbackDir, fallbackTexmfCnf)
}

func build(texbase, dir, texmfCnf string) types.Toolchain {
	tc := types.Toolchain{
		PathPrepend: []string{filepath.Join(texbase, dir, "bin")},
	}
	if texmfCnf != "" {
		tc.TexmfCnf = filepath.Join(texbase, texmfCnf)
	}
	return tc
}
