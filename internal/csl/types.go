package csl

import "strings"

// Type is a CSL item type. Only the values in ValidTypes are accepted.
type Type string

// Types referenced by validation rules, mappers and converters.
const (
	TypeArticle         Type = "article"
	TypeArticleJournal  Type = "article-journal"
	TypeArticleMagazine Type = "article-magazine"
	TypeArticleNews     Type = "article-newspaper"
	TypeBook            Type = "book"
	TypeChapter         Type = "chapter"
	TypeDataset         Type = "dataset"
	TypeEntry           Type = "entry"
	TypeManuscript      Type = "manuscript"
	TypePaperConference Type = "paper-conference"
	TypeReport          Type = "report"
	TypeReview          Type = "review"
	TypeThesis          Type = "thesis"
	TypeWebpage         Type = "webpage"
)

// ValidTypes is the closed set of accepted record types.
var ValidTypes = []Type{
	"article", "article-journal", "article-magazine", "article-newspaper",
	"bill", "book", "broadcast", "chapter", "dataset", "entry",
	"entry-dictionary", "entry-encyclopedia", "figure", "graphic",
	"interview", "legal_case", "legislation", "manuscript", "map",
	"motion_picture", "musical_score", "pamphlet", "paper-conference",
	"patent", "personal_communication", "post", "post-weblog", "report",
	"review", "review-book", "song", "speech", "thesis", "treaty", "webpage",
}

var validTypeSet = func() map[Type]bool {
	m := make(map[Type]bool, len(ValidTypes))
	for _, t := range ValidTypes {
		m[t] = true
	}
	return m
}()

// Valid reports whether t is in the closed set.
func (t Type) Valid() bool {
	return validTypeSet[t]
}

// IsArticle reports whether t is one of the article-like types.
func (t Type) IsArticle() bool {
	return strings.Contains(string(t), "article")
}

// ValidTypeList returns the accepted types joined by ", ".
func ValidTypeList() string {
	names := make([]string, len(ValidTypes))
	for i, t := range ValidTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
