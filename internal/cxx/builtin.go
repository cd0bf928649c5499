package cxx

var integralRank = map[string]int{
	"char":               1,
	"signed char":        1,
	"unsigned char":      1,
	"char8_t":            1,
	"wchar_t":            2,
	"char16_t":           2,
	"short":              2,
	"unsigned short":     2,
	"char32_t":           3,
	"int":                3,
	"unsigned int":       3,
	"long":               4,
	"unsigned long":      4,
	"long long":          5,
	"unsigned long long": 5,
	"__int128":           6,
	"unsigned __int128":  6,
}

var floatingRank = map[string]int{
	"float":       1,
	"double":      2,
	"long double": 3,
}

// IsIntegral reports whether t is an integral builtin other than bool.
func IsIntegral(t *Type) bool {
	if t == nil || t.Kind != KindBuiltin {
		return false
	}
	_, ok := integralRank[t.Name]
	return ok
}

// IntegralRank orders integral builtins by conversion rank; zero for
// anything else.
func IntegralRank(t *Type) int {
	if t == nil || t.Kind != KindBuiltin {
		return 0
	}
	return integralRank[t.Name]
}

// IsFloating reports whether t is a floating point builtin.
func IsFloating(t *Type) bool {
	if t == nil || t.Kind != KindBuiltin {
		return false
	}
	_, ok := floatingRank[t.Name]
	return ok
}

// IsBool reports whether t is bool.
func IsBool(t *Type) bool { return t != nil && t.Kind == KindBuiltin && t.Name == "bool" }

// IsBuiltinKeyword reports whether word takes part in a builtin type spelling.
func IsBuiltinKeyword(word string) bool {
	switch word {
	case "void", "bool", "char", "short", "int", "long", "float", "double",
		"signed", "unsigned", "wchar_t", "char8_t", "char16_t", "char32_t",
		"__int128", "nullptr_t":
		return true
	}
	return false
}

// CanonicalBuiltin folds a multiset of builtin keywords into the
// canonical spelling, e.g. {long, unsigned, int, long} -> "unsigned long long".
func CanonicalBuiltin(words []string) (string, bool) {
	var (
		signed, unsigned bool
		short            int
		long             int
		base             string
	)
	for _, w := range words {
		switch w {
		case "signed":
			signed = true
		case "unsigned":
			unsigned = true
		case "short":
			short++
		case "long":
			long++
		case "int":
			if base != "" {
				return "", false
			}
			base = "int"
		default:
			if base != "" {
				return "", false
			}
			base = w
		}
	}
	if signed && unsigned {
		return "", false
	}
	switch base {
	case "char":
		if short > 0 || long > 0 {
			return "", false
		}
		switch {
		case signed:
			return "signed char", true
		case unsigned:
			return "unsigned char", true
		}
		return "char", true
	case "double":
		if long == 1 && short == 0 && !signed && !unsigned {
			return "long double", true
		}
		if long == 0 && short == 0 && !signed && !unsigned {
			return "double", true
		}
		return "", false
	case "__int128":
		if unsigned {
			return "unsigned __int128", true
		}
		return "__int128", true
	case "", "int":
		if base == "" && !signed && !unsigned && short == 0 && long == 0 {
			return "", false
		}
		var name string
		switch {
		case short == 1 && long == 0:
			name = "short"
		case long == 1 && short == 0:
			name = "long"
		case long == 2 && short == 0:
			name = "long long"
		case long == 0 && short == 0:
			name = "int"
		default:
			return "", false
		}
		if unsigned {
			if name == "int" {
				return "unsigned int", true
			}
			return "unsigned " + name, true
		}
		return name, true
	default:
		if signed || unsigned || short > 0 || long > 0 {
			return "", false
		}
		return base, true
	}
}

// builtinMangling is the Itanium encoding of builtin types.
var builtinMangling = map[string]string{
	"void":               "v",
	"bool":               "b",
	"char":               "c",
	"signed char":        "a",
	"unsigned char":      "h",
	"short":              "s",
	"unsigned short":     "t",
	"int":                "i",
	"unsigned int":       "j",
	"long":               "l",
	"unsigned long":      "m",
	"long long":          "x",
	"unsigned long long": "y",
	"__int128":           "n",
	"unsigned __int128":  "o",
	"float":              "f",
	"double":             "d",
	"long double":        "e",
	"wchar_t":            "w",
	"char8_t":            "Du",
	"char16_t":           "Ds",
	"char32_t":           "Di",
	"nullptr_t":          "Dn",
}
