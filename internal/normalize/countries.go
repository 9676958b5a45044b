package normalize

import "strings"

// countryAliases maps canonical-key forms of common variants to the canonical
// country name. Lookups go through canonicalKey first, so punctuation and case
// differences ("U.S.A.", "usa") land on the same entry.
var countryAliases = map[string]string{
	"usa":                "United States",
	"us":                 "United States",
	"u s":                "United States",
	"u s a":              "United States",
	"united states of america": "United States",
	"america":            "United States",
	"uk":                 "United Kingdom",
	"u k":                "United Kingdom",
	"britain":            "United Kingdom",
	"great britain":      "United Kingdom",
	"england":            "United Kingdom",
	"uae":                "United Arab Emirates",
	"russia":             "Russian Federation",
	"south korea":        "Republic of Korea",
	"korea south":        "Republic of Korea",
	"north korea":        "Democratic People's Republic of Korea",
	"korea north":        "Democratic People's Republic of Korea",
	"dprk":               "Democratic People's Republic of Korea",
	"ivory coast":        "Cote d'Ivoire",
	"cote d ivoire":      "Cote d'Ivoire",
	"drc":                "Democratic Republic of the Congo",
	"congo kinshasa":     "Democratic Republic of the Congo",
	"burma":              "Myanmar",
	"czechia":            "Czech Republic",
	"holland":            "Netherlands",
	"vatican":            "Holy See",
	"vatican city":       "Holy See",
	"palestine":          "Palestinian Territories",
	"macedonia":          "North Macedonia",
	"swaziland":          "Eswatini",
	"cape verde":         "Cabo Verde",
	"east timor":         "Timor-Leste",
}

// knownCountries holds canonical names that pass resolution as-is. The list
// covers the countries the configured sources publish advisories for; names
// outside both tables are rejected rather than stored with a guessed value.
var knownCountries = map[string]string{}

func init() {
	for _, name := range []string{
		"Afghanistan", "Albania", "Algeria", "Angola", "Argentina", "Armenia",
		"Australia", "Austria", "Azerbaijan", "Bangladesh", "Belarus", "Belgium",
		"Belize", "Benin", "Bolivia", "Bosnia and Herzegovina", "Botswana",
		"Brazil", "Bulgaria", "Burkina Faso", "Burundi", "Cabo Verde", "Cambodia",
		"Cameroon", "Canada", "Central African Republic", "Chad", "Chile",
		"China", "Colombia", "Costa Rica", "Cote d'Ivoire", "Croatia", "Cuba",
		"Cyprus", "Czech Republic", "Democratic People's Republic of Korea",
		"Democratic Republic of the Congo", "Denmark", "Djibouti",
		"Dominican Republic", "Ecuador", "Egypt", "El Salvador", "Eritrea",
		"Estonia", "Eswatini", "Ethiopia", "Fiji", "Finland", "France", "Gabon",
		"Gambia", "Georgia", "Germany", "Ghana", "Greece", "Guatemala", "Guinea",
		"Guyana", "Haiti", "Holy See", "Honduras", "Hungary", "Iceland", "India",
		"Indonesia", "Iran", "Iraq", "Ireland", "Israel", "Italy", "Jamaica",
		"Japan", "Jordan", "Kazakhstan", "Kenya", "Kosovo", "Kuwait",
		"Kyrgyzstan", "Laos", "Latvia", "Lebanon", "Lesotho", "Liberia", "Libya",
		"Lithuania", "Luxembourg", "Madagascar", "Malawi", "Malaysia",
		"Maldives", "Mali", "Malta", "Mauritania", "Mauritius", "Mexico",
		"Moldova", "Mongolia", "Montenegro", "Morocco", "Mozambique", "Myanmar",
		"Namibia", "Nepal", "Netherlands", "New Zealand", "Nicaragua", "Niger",
		"Nigeria", "North Macedonia", "Norway", "Oman", "Pakistan",
		"Palestinian Territories", "Panama", "Papua New Guinea", "Paraguay",
		"Peru", "Philippines", "Poland", "Portugal", "Qatar",
		"Republic of Korea", "Romania", "Russian Federation", "Rwanda",
		"Saudi Arabia", "Senegal", "Serbia", "Sierra Leone", "Singapore",
		"Slovakia", "Slovenia", "Somalia", "South Africa", "South Sudan",
		"Spain", "Sri Lanka", "Sudan", "Suriname", "Sweden", "Switzerland",
		"Syria", "Taiwan", "Tajikistan", "Tanzania", "Thailand", "Timor-Leste",
		"Togo", "Trinidad and Tobago", "Tunisia", "Turkey", "Turkmenistan",
		"Uganda", "Ukraine", "United Arab Emirates", "United Kingdom",
		"United States", "Uruguay", "Uzbekistan", "Venezuela", "Vietnam",
		"Yemen", "Zambia", "Zimbabwe",
	} {
		knownCountries[canonicalKey(name)] = name
	}
}

// ResolveCountry maps a raw country string to its canonical name. The second
// return is false when the name cannot be resolved; callers must drop the
// record rather than persist a guess.
func ResolveCountry(raw string) (string, bool) {
	key := canonicalKey(raw)
	key = strings.TrimPrefix(key, "the ")
	if key == "" {
		return "", false
	}
	if name, ok := countryAliases[key]; ok {
		return name, true
	}
	if name, ok := knownCountries[key]; ok {
		return name, true
	}
	return "", false
}
