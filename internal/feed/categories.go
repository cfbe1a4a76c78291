package feed

import "sort"

// categoryNames maps the arXiv categories we know about to display names.
var categoryNames = map[string]string{
	"cs.AI": "Artificial Intelligence",
	"cs.CL": "Computation and Language",
	"cs.CV": "Computer Vision and Pattern Recognition",
	"cs.IR": "Information Retrieval",
	"cs.LG": "Machine Learning",
	"cs.NE": "Neural and Evolutionary Computing",
	"cs.RO": "Robotics",
	"stat.ML": "Machine Learning (Statistics)",
}

// CategoryName returns a human-readable name for a category, or the raw
// category code when it is not a known one.
func CategoryName(category string) string {
	if name, ok := categoryNames[category]; ok {
		return name
	}
	return category
}

// KnownCategory reports whether the category code is one we have a name for.
func KnownCategory(category string) bool {
	_, ok := categoryNames[category]
	return ok
}

// Category pairs an arXiv category code with its display name.
type Category struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Categories returns all known categories sorted by code.
func Categories() []Category {
	out := make([]Category, 0, len(categoryNames))
	for code, name := range categoryNames {
		out = append(out, Category{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
