package canon

import "strings"

type country struct {
	code     string
	iso3     string
	name     string
	dialing  string
	synonyms []string
}

// countries is the closed set of supported markets. Adding a row here is all
// that is needed to support a new country.
var countries = []country{
	{"AE", "ARE", "United Arab Emirates", "971", []string{"uae", "emirates", "the emirates", "u.a.e."}},
	{"SA", "SAU", "Saudi Arabia", "966", []string{"ksa", "saudi", "kingdom of saudi arabia", "k.s.a."}},
	{"JO", "JOR", "Jordan", "962", []string{"hashemite kingdom of jordan"}},
	{"KW", "KWT", "Kuwait", "965", nil},
	{"QA", "QAT", "Qatar", "974", nil},
	{"BH", "BHR", "Bahrain", "973", nil},
	{"OM", "OMN", "Oman", "968", []string{"sultanate of oman"}},
	{"EG", "EGY", "Egypt", "20", nil},
	{"LB", "LBN", "Lebanon", "961", nil},
	{"IQ", "IRQ", "Iraq", "964", nil},
	{"MA", "MAR", "Morocco", "212", nil},
	{"TR", "TUR", "Turkey", "90", []string{"turkiye", "türkiye"}},
	{"GB", "GBR", "United Kingdom", "44", []string{"uk", "u.k.", "great britain", "britain", "england"}},
	{"US", "USA", "United States", "1", []string{"us", "u.s.", "u.s.a.", "united states of america", "america"}},
	{"DE", "DEU", "Germany", "49", []string{"deutschland"}},
	{"FR", "FRA", "France", "33", nil},
}

var (
	countryByKey  = map[string]*country{}
	countryByCode = map[string]*country{}
)

func init() {
	for i := range countries {
		c := &countries[i]
		countryByCode[c.code] = c
		for _, k := range append([]string{c.code, c.iso3, c.name}, c.synonyms...) {
			countryByKey[NormalizeQuery(k)] = c
		}
	}
}

// supportedLanguages is the closed set of search languages.
var supportedLanguages = map[string]bool{
	"en": true,
	"ar": true,
	"fr": true,
	"de": true,
	"tr": true,
}

// NormalizeCountry maps an ISO-2 code, ISO-3 code or common English name to a
// supported ISO-2 code. Unknown input reports false.
func NormalizeCountry(text string) (string, bool) {
	c, ok := countryByKey[NormalizeQuery(text)]
	if !ok {
		return "", false
	}
	return c.code, true
}

// DialingCode returns the international dialing code for a supported ISO-2
// country, without the leading plus.
func DialingCode(code string) (string, bool) {
	c, ok := countryByCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return "", false
	}
	return c.dialing, true
}

// CountryName returns the English display name of a supported country.
func CountryName(code string) string {
	if c, ok := countryByCode[strings.ToUpper(strings.TrimSpace(code))]; ok {
		return c.name
	}
	return ""
}

// IsSupportedLanguage reports whether lang is a supported search language.
func IsSupportedLanguage(lang string) bool {
	return supportedLanguages[strings.ToLower(strings.TrimSpace(lang))]
}
