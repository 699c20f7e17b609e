package playback

import "strings"

// Kind selects which variant rules apply to a name
type Kind int

const (
	KindArtist Kind = iota
	KindAlbum
)

const (
	maxArtistVariants = 5
	maxAlbumVariants  = 12
)

// Suffixes appended to album names that carry no soundtrack marker of
// their own. Catalogs file the same release under wildly different
// soundtrack titles, so we try the common forms.
var soundtrackSuffixes = []string{
	" (Soundtrack)",
	" [Soundtrack]",
	" (Original Motion Picture Soundtrack)",
	" (Music from the Motion Picture)",
	" OST",
	" - Original Soundtrack",
}

// Variants produces an ordered, deduplicated list of plausible alternate
// spellings for an artist or album name. The original (trimmed) name is
// always first. Pure and deterministic; never fails. Empty or
// whitespace-only input yields a single-element list with no expansion.
func Variants(kind Kind, name string) []string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return []string{trimmed}
	}

	if kind == KindAlbum {
		return albumVariants(trimmed)
	}
	return artistVariants(trimmed)
}

func artistVariants(name string) []string {
	list := newVariantList(maxArtistVariants)
	list.add(name)
	list.add(toggleThe(name))
	list.add(swapAmpersand(name))
	list.add(swapAmpersand(toggleThe(name)))
	return list.items
}

func albumVariants(name string) []string {
	list := newVariantList(maxAlbumVariants)
	list.add(name)

	if !hasSoundtrackMarker(name) {
		for _, suffix := range soundtrackSuffixes {
			list.add(name + suffix)
		}
	}

	list.add(toggleThe(name))
	return list.items
}

// toggleThe strips a leading "The " if present, otherwise adds one
func toggleThe(name string) string {
	if strings.HasPrefix(name, "The ") {
		return strings.TrimPrefix(name, "The ")
	}
	return "The " + name
}

// swapAmpersand substitutes " and " <-> " & " if either form is present
func swapAmpersand(name string) string {
	if strings.Contains(name, " and ") {
		return strings.ReplaceAll(name, " and ", " & ")
	}
	if strings.Contains(name, " & ") {
		return strings.ReplaceAll(name, " & ", " and ")
	}
	return name
}

// hasSoundtrackMarker reports whether the name already looks like a
// soundtrack title: "soundtrack" anywhere, or "ost" as its own word.
func hasSoundtrackMarker(name string) bool {
	lower := strings.ToLower(name)
	if strings.Contains(lower, "soundtrack") {
		return true
	}
	for _, word := range strings.Fields(lower) {
		if strings.Trim(word, "()[]-:") == "ost" {
			return true
		}
	}
	return false
}

// variantList accumulates candidates with first-seen-order dedup and a cap
type variantList struct {
	items []string
	seen  map[string]bool
	limit int
}

func newVariantList(limit int) *variantList {
	return &variantList{
		seen:  make(map[string]bool),
		limit: limit,
	}
}

func (l *variantList) add(candidate string) {
	if len(l.items) >= l.limit || l.seen[candidate] {
		return
	}
	l.seen[candidate] = true
	l.items = append(l.items, candidate)
}
