package portfolio

import "strings"

// skillAliases folds common spellings of the same technology together.
var skillAliases = map[string]string{
	"golang":              "go",
	"go lang":             "go",
	"k8s":                 "kubernetes",
	"js":                  "javascript",
	"ts":                  "typescript",
	"nodejs":              "node.js",
	"node":                "node.js",
	"reactjs":             "react",
	"react.js":            "react",
	"vuejs":               "vue",
	"vue.js":              "vue",
	"postgres":            "postgresql",
	"py":                  "python",
	"ml":                  "machine learning",
	"ai/ml":               "machine learning",
	"amazon web services": "aws",
}

// CanonicalSkill lowercases, trims and collapses a skill name and resolves
// known aliases. Matching is done on canonical names only.
func CanonicalSkill(skill string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(skill), " "))
	if canonical, ok := skillAliases[normalized]; ok {
		return canonical
	}
	return normalized
}

// SplitSkills splits "Python, SQL | Spark" style lists and canonicalizes each
// item, keeping the first occurrence of duplicates.
func SplitSkills(values ...string) []string {
	result := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		for _, item := range strings.FieldsFunc(value, isSkillSeparator) {
			skill := CanonicalSkill(item)
			if skill == "" {
				continue
			}
			if _, ok := seen[skill]; ok {
				continue
			}
			seen[skill] = struct{}{}
			result = append(result, skill)
		}
	}
	return result
}

func isSkillSeparator(r rune) bool {
	return r == ',' || r == ';' || r == '|' || r == '\n'
}
