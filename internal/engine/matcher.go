package engine

import "github.com/roach88/taxii/internal/taxii"

// MatchBindings negotiates requested content bindings against a collection.
//
// An empty request means no restriction and yields (nil, nil). Otherwise the
// result holds the collection-side definitions that matched, each at most
// once, in the collection's order. A non-empty request with no match yields
// an UNSUPPORTED_CONTENT error.
//
// A requested binding without subtypes matches whenever the collection lists
// the binding id. A requested binding with subtypes matches only if the
// collection entry is subtype-unrestricted or shares a subtype with it.
//
// Collections that accept all content, or advertise nothing, have no
// canonical definitions; the request is returned as given.
func MatchBindings(requested []taxii.ContentBinding, c *taxii.Collection) ([]taxii.ContentBinding, error) {
	if len(requested) == 0 {
		return nil, nil
	}
	if c.AcceptAllContent || len(c.SupportedContent) == 0 {
		out := make([]taxii.ContentBinding, len(requested))
		copy(out, requested)
		return out, nil
	}

	var matched []taxii.ContentBinding
	for _, supported := range c.SupportedContent {
		for _, req := range requested {
			if bindingMatches(req, supported) {
				matched = append(matched, supported)
				break
			}
		}
	}

	if len(matched) == 0 {
		return nil, NewUnsupportedContent(c)
	}
	return matched, nil
}

func bindingMatches(req, supported taxii.ContentBinding) bool {
	if req.ID != supported.ID {
		return false
	}
	if req.Unrestricted() || supported.Unrestricted() {
		return true
	}
	for _, st := range req.Subtypes {
		if supported.HasSubtype(st) {
			return true
		}
	}
	return false
}
