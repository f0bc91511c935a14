package pokeapi

import "strings"

// aliases maps normalized input tokens to upstream slugs that cannot be
// derived by normalization alone (forms, gender variants, hyphenated names).
var aliases = map[string]string{
	"nidoranf":                 "nidoran-f",
	"nidoranm":                 "nidoran-m",
	"drowzee":                  "Drowzee",
	"mrmime":                   "mr-mime",
	"mewtwo":                   "MewTwo",
	"hooh":                     "ho-oh",
	"deoxysnormal":             "deoxys-normal",
	"wormadamplant":            "wormadam-plant",
	"drifloon":                 "Drifloon",
	"mimejr":                   "mime-jr",
	"porygonz":                 "porygon-z",
	"giratinaaltered":          "giratina-altered",
	"shayminland":              "shaymin-land",
	"basculinredstriped":       "basculin-red-striped",
	"darmanitanstandard":       "darmanitan-standard",
	"tornadusincarnate":        "tornadus-incarnate",
	"thundurusincarnate":       "thundurus-incarnate",
	"landorusincarnate":        "landorus-incarnate",
	"keldeoordinary":           "keldeo-ordinary",
	"meloettaaria":             "meloetta-aria",
	"meowsticmale":             "meowstic-male",
	"aegislashshield":          "aegislash-shield",
	"pumpkabooaverage":         "pumpkaboo-average",
	"gourgeistaverage":         "gourgeist-average",
	"zygarde50":                "zygarde-50",
	"oricoriobaile":            "oricorio-baile",
	"lycanrocmidday":           "lycanroc-midday",
	"wishiwashisolo":           "wishiwashi-solo",
	"typenull":                 "type-null",
	"miniorredmeteor":          "minior-red-meteor",
	"mimikyudisguised":         "mimikyu-disguised",
	"jangmoo":                  "jangmo-o",
	"hakamoo":                  "hakamo-o",
	"kommoo":                   "kommo-o",
	"tapukoko":                 "tapu-koko",
	"tapulele":                 "tapu-lele",
	"tapubulu":                 "tapu-bulu",
	"tapufini":                 "tapu-fini",
	"toxtricityamped":          "toxtricity-amped",
	"mrrime":                   "mr-rime",
	"eiscueice":                "eiscue-ice",
	"indeedeemale":             "indeedee-male",
	"morpekofullbelly":         "morpeko-full-belly",
	"urshifusinglestrike":      "urshifu-single-strike",
	"basculegionmale":          "basculegion-male",
	"enamorusincarnate":        "enamorus-incarnate",
	"oinkolognemale":           "oinkologne-male",
	"mausholdfamilyoffour":     "maushold-family-of-four",
	"squawkabillygreenplumage": "squawkabilly-green-plumage",
	"palafinzero":              "palafin-zero",
	"tatsugiricurly":           "tatsugiri-curly",
	"dudunsparcetwosegment":    "dudunsparce-two-segment",
	"greattusk":                "great-tusk",
	"screamtail":               "scream-tail",
	"brutebonnet":              "brute-bonnet",
	"fluttermane":              "flutter-mane",
	"slitherwing":              "slither-wing",
	"sandyshocks":              "sandy-shocks",
	"irontreads":               "iron-treads",
	"ironbundle":               "iron-bundle",
	"ironhands":                "iron-hands",
	"ironjugulis":              "iron-jugulis",
	"ironmoth":                 "iron-moth",
	"ironthorns":               "iron-thorns",
	"wochien":                  "wo-chien",
	"chienpao":                 "chien-pao",
	"tinglu":                   "ting-lu",
	"chiyu":                    "chi-yu",
	"roaringmoon":              "roaring-moon",
	"ironvaliant":              "iron-valiant",
	"walkingwake":              "walking-wake",
	"ironleaves":               "iron-leaves",
	"gougingfire":              "gouging-fire",
	"ragingbolt":               "raging-bolt",
	"ironboulder":              "iron-boulder",
	"ironcrown":                "iron-crown",
}

// NormalizeToken trims and lowercases raw input, maps the female and male
// glyphs to f and m, then drops everything that is not an ASCII letter or
// digit. Request bodies, cache keys and alias lookups all go through it.
func NormalizeToken(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("♀", "f", "♂", "m").Replace(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeNames applies NormalizeToken to every entry and drops the ones that
// end up empty.
func NormalizeNames(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		if token := NormalizeToken(name); token != "" {
			out = append(out, token)
		}
	}
	return out
}

// Resolve returns the upstream slug for raw input. Unknown tokens fall back to
// the trimmed input so exact upstream slugs pass through untouched.
func Resolve(raw string) string {
	if slug, ok := aliases[NormalizeToken(raw)]; ok {
		return slug
	}
	return strings.TrimSpace(raw)
}

func CacheKey(name string) string {
	return "pokeapi:" + NormalizeToken(name)
}
