package normalize

import (
	"golang.org/x/text/language"
)

// Regions that write dates month first, for English.
var monthFirstRegions = map[string]bool{
	"US": true, "PH": true, "FM": true, "MH": true, "PW": true,
	"AS": true, "GU": true, "MP": true, "PR": true, "UM": true, "VI": true,
}

// Languages that write dates year first.
var yearFirstBases = map[string]bool{
	"ja": true, "zh": true, "ko": true, "hu": true, "lt": true, "sv": true, "mn": true,
}

// Regions whose English and French locales write dates year first.
var yearFirstRegions = map[string]bool{
	"CA": true,
}

// DayFirst reports whether the locale writes the day before the month.
// Unparseable tags fall back to English.
func DayFirst(locale string) bool {
	if locale == "" {
		locale = "en"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}

	base, _ := tag.Base()
	region, _ := tag.Region()

	switch {
	case yearFirstBases[base.String()]:
		return false
	case yearFirstRegions[region.String()] && (base.String() == "en" || base.String() == "fr"):
		return false
	case base.String() == "en" && monthFirstRegions[region.String()]:
		return false
	default:
		return true
	}
}
