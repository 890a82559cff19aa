// Package normalize converts loosely formatted bank names, references,
// amounts and dates coming from receipts and bank exports into canonical
// comparable values.
package normalize

import "strings"

var bankAliases = map[string]string{
	"BI":                              "BANCO INDUSTRIAL",
	"INDUSTRIAL":                      "BANCO INDUSTRIAL",
	"BANCO INDUSTRIAL S.A.":           "BANCO INDUSTRIAL",
	"BANCO INDUSTRIAL, S.A.":          "BANCO INDUSTRIAL",
	"BANRURAL":                        "BANRURAL",
	"BANCO DE DESARROLLO RURAL":       "BANRURAL",
	"BANCO DE DESARROLLO RURAL, S.A.": "BANRURAL",
	"G&T":                             "BANCO G&T CONTINENTAL",
	"GYT":                             "BANCO G&T CONTINENTAL",
	"G&T CONTINENTAL":                 "BANCO G&T CONTINENTAL",
	"BAM":                             "BANCO AGROMERCANTIL",
	"AGROMERCANTIL":                   "BANCO AGROMERCANTIL",
	"BAC":                             "BAC CREDOMATIC",
	"CREDOMATIC":                      "BAC CREDOMATIC",
	"PROMERICA":                       "BANCO PROMERICA",
}

// Bank uppercases and trims a bank name and maps known aliases onto their
// canonical name. Unknown names pass through uppercased.
func Bank(raw string) string {
	name := strings.ToUpper(strings.Join(strings.Fields(raw), " "))
	if canonical, ok := bankAliases[name]; ok {
		return canonical
	}
	return name
}
