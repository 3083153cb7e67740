package services

import (
	"regexp"
	"strings"
)

// nonCardKeywords denote merchandise that is not a genuine card sale. They are
// matched as substrings of the normalized title.
var nonCardKeywords = []string{
	"proxy",
	"fan art",
	"fanart",
	"fan made",
	"fanmade",
	"custom",
	"fake",
	"unofficial",
	"replica",
	"reprint",
	"sticker",
	"poster",
	"print",
	"display",
	"art case",
	"artwork case",

	// proxy-style foil language
	"gold foil",
	"goldfoil",
	"custom foil",
	"rainbow foil",
	"orange foil",
}

// customFoilRegexp catches "<colour> foil" variants that no official print run uses.
var customFoilRegexp = regexp.MustCompile(
	`(?i)\b(gold|silver|orange|blue|red|green|pink|purple|rainbow)\s*foil\b`,
)

// IsNonCard reports whether a normalized title describes non-card merchandise.
func IsNonCard(titleNormalized string) bool {
	for _, kw := range nonCardKeywords {
		if strings.Contains(titleNormalized, kw) {
			return true
		}
	}
	return customFoilRegexp.MatchString(titleNormalized)
}
