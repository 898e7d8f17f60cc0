package categorization

// Rule maps a sender substring to a category label.
type Rule struct {
	Key      string `yaml:"key"`
	Category string `yaml:"category"`
}

// DefaultRules returns the sender rules in match order.
//
// The list keeps duplicate keys on purpose. "theguardian" is claimed by
// Global News before US News, "morningbrew" by Finance before Tech, and
// "nytimes" appears twice after "time" has already claimed it. Later
// entries for a claimed key never match; Shadowed reports them.
func DefaultRules() []Rule {
	return []Rule{
		// Finance
		{Key: "morningbrew", Category: "Finance"},
		{Key: "finimize", Category: "Finance"},
		{Key: "hustle", Category: "Finance"},
		{Key: "cnbc", Category: "Finance"},
		{Key: "seekingalpha", Category: "Finance"},
		{Key: "bloomberg", Category: "Finance"},

		// Creative
		{Key: "creativeindependent", Category: "Creative"},
		{Key: "design-milk", Category: "Creative"},
		{Key: "creativebloq", Category: "Creative"},
		{Key: "colossal", Category: "Creative"},
		{Key: "aiga", Category: "Creative"},
		{Key: "creativeboom", Category: "Creative"},

		// Global News
		{Key: "reuters", Category: "Global News"},
		{Key: "bbc", Category: "Global News"},
		{Key: "theguardian", Category: "Global News"},
		{Key: "apnews", Category: "Global News"},
		{Key: "time", Category: "Global News"},

		// US News
		{Key: "nytimes", Category: "US News"},
		{Key: "washingtonpost", Category: "US News"},
		{Key: "theguardian", Category: "US News"},
		{Key: "cnn", Category: "US News"},
		{Key: "politico", Category: "US News"},
		{Key: "axios", Category: "US News"},
		{Key: "usatoday", Category: "US News"},
		{Key: "nytimes", Category: "US News"},

		// Tech
		{Key: "techcrunch", Category: "Tech"},
		{Key: "theverge", Category: "Tech"},
		{Key: "wired", Category: "Tech"},
		{Key: "thedownload", Category: "Tech"},
		{Key: "morningbrew", Category: "Tech"},
		{Key: "engadget", Category: "Tech"},

		// Sports
		{Key: "morningblitz", Category: "Sports"},
		{Key: "yahoosports", Category: "Sports"},
		{Key: "cbssports", Category: "Sports"},
		{Key: "thesportsletter.com", Category: "Sports"},
	}
}

// GetCategoryNames returns the distinct category labels in first-seen order
func GetCategoryNames(rules []Rule) []string {
	seen := make(map[string]bool, len(rules))
	names := make([]string, 0, len(rules))
	for _, r := range rules {
		if !seen[r.Category] {
			seen[r.Category] = true
			names = append(names, r.Category)
		}
	}
	return names
}
