package template

import (
	"fmt"
	"strings"
)

// sizeCores weighs each machine size by its CPU core count for the
// subscription quota gate.
var sizeCores = map[string]int{
	"a0":            1,
	"basic_a0":      1,
	"a1":            1,
	"basic_a1":      1,
	"a2":            2,
	"basic_a2":      2,
	"a3":            4,
	"basic_a3":      4,
	"a4":            8,
	"basic_a4":      8,
	"extra small":   1,
	"small":         1,
	"medium":        2,
	"large":         4,
	"extra large":   8,
	"a5":            2,
	"a6":            4,
	"a7":            8,
	"a8":            8,
	"a9":            16,
	"standard_d1":   1,
	"standard_d2":   2,
	"standard_d3":   4,
	"standard_d4":   8,
	"standard_d11":  2,
	"standard_d12":  4,
	"standard_d13":  8,
	"standard_d14":  16,
	"standard_ds1":  1,
	"standard_ds2":  2,
	"standard_ds3":  4,
	"standard_ds4":  8,
	"standard_ds11": 2,
	"standard_ds12": 4,
	"standard_ds13": 8,
	"standard_ds14": 16,
	"standard_g1":   2,
	"standard_g2":   4,
	"standard_g3":   8,
	"standard_g4":   16,
	"standard_g5":   32,
}

// CoreCount returns the core weight of a machine size. An unknown size is a
// configuration error, never a silent default.
func CoreCount(size string) (int, error) {
	cores, ok := sizeCores[strings.ToLower(size)]
	if !ok {
		return 0, fmt.Errorf("unknown machine size %q", size)
	}
	return cores, nil
}
