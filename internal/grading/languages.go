package grading

import "strings"

// sandboxLanguages maps exam language identifiers to the identifiers the
// execution service expects. Unknown identifiers pass through unchanged.
var sandboxLanguages = map[string]string{
	"js":         "javascript",
	"javascript": "javascript",
	"node":       "javascript",
	"ts":         "typescript",
	"typescript": "typescript",
	"py":         "python",
	"python":     "python",
	"python3":    "python",
	"c":          "c",
	"c++":        "cpp",
	"cpp":        "cpp",
	"c#":         "csharp",
	"cs":         "csharp",
	"csharp":     "csharp",
	"java":       "java",
	"go":         "go",
	"golang":     "go",
	"rb":         "ruby",
	"ruby":       "ruby",
	"rs":         "rust",
	"rust":       "rust",
	"kt":         "kotlin",
	"kotlin":     "kotlin",
}

// MapLanguage translates an exam language to a sandbox identifier.
func MapLanguage(language string) string {
	if mapped, ok := sandboxLanguages[strings.ToLower(strings.TrimSpace(language))]; ok {
		return mapped
	}
	return language
}
