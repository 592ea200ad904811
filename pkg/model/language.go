package model

// Language is the abstract announcement language.
type Language string

const (
	LanguageEnglish  Language = "en"
	LanguageHindi    Language = "hi"
	LanguageRegional Language = "regional"
)

// DefaultLanguage is used when a request does not name a language.
const DefaultLanguage = LanguageEnglish

// Valid reports whether l is one of the supported languages.
func (l Language) Valid() bool {
	switch l {
	case LanguageEnglish, LanguageHindi, LanguageRegional:
		return true
	}
	return false
}

// Locale maps the abstract language to a voice locale.
// Regional announcements are spoken in Tamil.
func (l Language) Locale() string {
	switch l {
	case LanguageHindi:
		return "hi-IN"
	case LanguageRegional:
		return "ta-IN"
	default:
		return "en-IN"
	}
}

// LanguageInfo holds the code and display name of a language.
type LanguageInfo struct {
	Code   Language `json:"code"`
	Name   string   `json:"name"`
	Locale string   `json:"locale"`
}

// Languages lists the supported announcement languages.
var Languages = []LanguageInfo{
	{Code: LanguageEnglish, Name: "English", Locale: LanguageEnglish.Locale()},
	{Code: LanguageHindi, Name: "Hindi", Locale: LanguageHindi.Locale()},
	{Code: LanguageRegional, Name: "Tamil", Locale: LanguageRegional.Locale()},
}
