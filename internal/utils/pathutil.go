package utils

import (
	"path"
	"strings"

	"github.com/gosimple/slug"
)

// SafeBaseName reduces name to a slugged last path element that keeps its
// extension, e.g. "briefs/Q3 plan.PDF" becomes "q3-plan.pdf". It never
// returns an empty string.
func SafeBaseName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), `\`, "/")
	base := path.Base(strings.TrimRight(name, "/"))
	if base == "." || base == "/" || base == "" {
		return "document"
	}
	ext := path.Ext(base)
	out := slug.Make(strings.TrimSuffix(base, ext))
	if out == "" {
		out = "document"
	}
	if e := slug.Make(strings.TrimPrefix(ext, ".")); e != "" {
		out += "." + e
	}
	return out
}
