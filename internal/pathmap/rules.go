package pathmap

import (
	"path"
	"slices"
	"strings"
)

// Rule names as reported in Mapping.Rule.
const (
	ruleGlobalRules = "global-rules"
	ruleSchemaIndex = "schema-index"
	ruleLexical     = "lexical"
	ruleProperty    = "property"
	ruleTemplate    = "template"
	ruleConcept     = "concept"
	ruleExample     = "example"
	ruleContent     = "content"
)

// lexicalMarkers are directory names below schemas/ whose documents render
// as lexical pages, at any depth.
var lexicalMarkers = []string{
	"Entities",
	"Types",
	"Functions",
	"PropertySets",
	"QuantitySets",
	"PropertyEnumerations",
}

// rule matches a path relative to the docs root. A nil build marks the
// category as unsupported.
type rule struct {
	name  string
	match func(sub string) bool
	build func(sub string) string
}

func defaultRules() []rule {
	return []rule{
		{
			name: ruleGlobalRules,
			match: func(sub string) bool {
				return inSchemas(sub) && hasDirSegment(sub, "GlobalRules")
			},
		},
		{
			name: ruleSchemaIndex,
			match: func(sub string) bool {
				return inSchemas(sub) && path.Base(sub) == "README.md"
			},
			build: func(sub string) string {
				return path.Join(strings.ToLower(path.Base(path.Dir(sub))), "content.html")
			},
		},
		{
			name: ruleLexical,
			match: func(sub string) bool {
				if !inSchemas(sub) {
					return false
				}
				return slices.ContainsFunc(lexicalMarkers, func(m string) bool {
					return hasDirSegment(sub, m)
				})
			},
			build: func(sub string) string {
				return path.Join("lexical", stem(sub)+".htm")
			},
		},
		{
			name:  ruleProperty,
			match: prefixed("properties/"),
			build: func(sub string) string {
				return path.Join("property", stem(sub)+".htm")
			},
		},
		{
			name:  ruleTemplate,
			match: prefixed("templates/"),
			build: buildTemplate,
		},
		{
			name:  ruleConcept,
			match: prefixed("concepts/"),
			build: func(sub string) string {
				return path.Join(path.Dir(sub), "content.html")
			},
		},
		{
			name:  ruleExample,
			match: prefixed("examples/"),
		},
	}
}

// buildTemplate maps templates/A B/C/x.md to concepts/A_B/C/content.html.
func buildTemplate(sub string) string {
	dir := path.Dir(strings.TrimPrefix(sub, "templates/"))
	if dir == "." {
		return "concepts/content.html"
	}
	parts := strings.Split(dir, "/")
	for i, p := range parts {
		parts[i] = strings.ReplaceAll(p, " ", "_")
	}
	return "concepts/" + strings.Join(parts, "/") + "/content.html"
}

func inSchemas(sub string) bool {
	return strings.HasPrefix(sub, "schemas/")
}

func prefixed(prefix string) func(string) bool {
	return func(sub string) bool {
		return strings.HasPrefix(sub, prefix)
	}
}

// hasDirSegment reports whether name is one of the directory segments of p.
func hasDirSegment(p, name string) bool {
	dirs := strings.Split(path.Dir(p), "/")
	return slices.Contains(dirs, name)
}
