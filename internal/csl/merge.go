package csl

import "encoding/json"

// Merge returns base updated with overlay. Non-empty overlay fields win.
// Empty overlay fields leave base untouched unless replace is set, in which
// case overlay is returned as-is (keeping the base id when overlay has none).
func Merge(base, overlay Record, replace bool) Record {
	if replace {
		out := overlay.Clone()
		if out.ID == "" {
			out.ID = base.ID
		}
		return out
	}

	out := base.Clone()
	o := overlay.Clone()

	setString(&out.ID, o.ID)
	if o.Type != "" {
		out.Type = o.Type
	}
	setString(&out.Title, o.Title)
	if len(o.Author) > 0 {
		out.Author = o.Author
	}
	if len(o.Editor) > 0 {
		out.Editor = o.Editor
	}
	setString(&out.ContainerTitle, o.ContainerTitle)
	setString(&out.Publisher, o.Publisher)
	setString(&out.PublisherPlace, o.PublisherPlace)
	if !o.Issued.IsZero() {
		out.Issued = o.Issued
	}
	setFlexible(&out.Volume, o.Volume)
	setFlexible(&out.Issue, o.Issue)
	setFlexible(&out.Page, o.Page)
	setString(&out.Abstract, o.Abstract)
	setString(&out.Note, o.Note)
	setString(&out.URL, o.URL)
	setString(&out.DOI, o.DOI)
	setString(&out.ISBN, o.ISBN)
	setString(&out.PMID, o.PMID)

	if o.Confidence != nil {
		out.Confidence = o.Confidence
	}
	if o.NeedsVerification != nil {
		out.NeedsVerification = o.NeedsVerification
	}
	if o.EnrichedAt != nil {
		out.EnrichedAt = o.EnrichedAt
	}
	setString(&out.EnrichedBy, o.EnrichedBy)

	for key, raw := range o.Extra {
		if isEmptyJSON(raw) {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[key] = raw
	}

	return out
}

// FillGaps returns original with its empty fields filled from authority.
// Every field already present in original is kept.
func FillGaps(original, authority Record) Record {
	out := Merge(authority, original, false)
	out.ID = original.ID
	// Provenance belongs to the original record only.
	out.Confidence = original.Confidence
	out.NeedsVerification = original.NeedsVerification
	out.EnrichedAt = original.EnrichedAt
	out.EnrichedBy = original.EnrichedBy
	return out
}

// ClearDerived returns r without derived scoring and provenance fields.
func ClearDerived(r Record) Record {
	out := r.Clone()
	out.Confidence = nil
	out.NeedsVerification = nil
	out.EnrichedAt = nil
	out.EnrichedBy = ""
	return out
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setFlexible(dst *FlexibleString, v FlexibleString) {
	if v != "" {
		*dst = v
	}
}
