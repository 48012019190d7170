package library

import "strings"

// Template is a content regex describing one way a language declares or uses
// a library.
type Template struct {
	// Pattern is a regular expression with ${artifact_name},
	// ${import_or_usage}, ${group_id} and ${artifact_id} placeholders.
	// Substituted values are regex-escaped.
	Pattern string

	// IgnoreCase makes the content match case-insensitive.
	IgnoreCase bool

	// Path restricts the template to files whose path matches.
	Path string

	// Maven splits the artifact name into ${group_id} and ${artifact_id}
	// at the first colon.
	Maven bool
}

// Language lists where a language keeps its dependency declarations.
type Language struct {
	Name       string
	Extensions []string
	Filenames  []string // manifest files searched instead of extensions when known
	Templates  []Template
}

// Qualifiers returns the search qualifiers that restrict a code search to
// this language's files.
func (l *Language) Qualifiers() []string {
	if len(l.Filenames) > 0 {
		q := make([]string, len(l.Filenames))
		for i, f := range l.Filenames {
			q[i] = "filename:" + f
		}
		return q
	}
	q := make([]string, len(l.Extensions))
	for i, e := range l.Extensions {
		q[i] = "extension:" + e
	}
	return q
}

// Languages is the table of supported target languages.
var Languages = []*Language{
	{
		Name:       "javascript", // also TypeScript
		Extensions: []string{"json", "js", "jsx", "ts", "tsx"},
		Templates: []Template{
			{Pattern: `(?:devDependencies|dependencies)":[\S\W]*"${artifact_name}"`, Path: `json$`},
			{Pattern: `(?:require.+|import.+|from.+)(?:"|')${artifact_name}(?:"|')`, Path: `(?:js|jsx|ts|tsx)$`},
		},
	},
	{
		Name:       "c#", // also Visual Basic
		Extensions: []string{"json", "config", "csproj", "vbproj"},
		Templates: []Template{
			{Pattern: `(?:<package\s*id=|<PackageReference\s*Include=|<Reference\s*Include=)"${artifact_name}`, IgnoreCase: true, Path: `(?:config|csproj|vbproj)$`},
			{Pattern: `dependencies":[\S\W]*"${artifact_name}"`, Path: `json$`},
		},
	},
	{
		Name:       "java", // also Kotlin
		Extensions: []string{"xml", "java", "gradle", "gradle.kts"},
		Templates: []Template{
			{Pattern: `compile.+${artifact_name}`, Path: `gradle`},
			{Pattern: `implementation.+${artifact_name}`, Path: `gradle`},
			{Pattern: `import.+${import_or_usage}`, Path: `java$`},
			{Pattern: `groupid>${group_id}</groupid>\s+<artifactid>${artifact_id}</artifactid>`, IgnoreCase: true, Path: `.xml$`, Maven: true},
		},
	},
	{
		Name:       "objective-c", // also Swift
		Extensions: []string{"m", "h", "swift"},
		Filenames:  []string{"Podfile", "Cartfile"},
		Templates: []Template{
			{Pattern: "pod (?:`|'|\")${artifact_name}(?:`|'|\")", Path: `Podfile$`},
			{Pattern: `${artifact_name}`, Path: `Cartfile$`},
			{Pattern: `(?:#(import|include) "${import_or_usage}"|import ${import_or_usage})`, Path: `(?:m|h|swift)$`},
		},
	},
	{
		Name:       "php",
		Extensions: []string{"json", "php"},
		Templates: []Template{
			{Pattern: `require":[\S\W]*"${artifact_name}"`, Path: `json$`},
			{Pattern: `${import_or_usage}`, Path: `php$`},
		},
	},
	{
		Name:       "python",
		Extensions: []string{"py"},
		Templates: []Template{
			{Pattern: `install_requires=[\S\W]*(?:"|')${artifact_name}(?:\[|\s+|~|=|>|<|!|"|')`, Path: `py$`},
			{Pattern: `(?:(?:import|from).+${import_or_usage}|(?:INSTALLED_APPS|THIRD_PARTY_APPS|MIDDLEWARE_CLASSES).+(?:"|')${import_or_usage})`, Path: `py$`},
		},
	},
	{
		Name:       "ruby",
		Extensions: []string{"rb"},
		Filenames:  []string{"Gemfile"},
		Templates: []Template{
			{Pattern: `gem (?:"|')${artifact_name}(?:"|')`, Path: `Gemfile$`},
			{Pattern: `require (?:"|')${import_or_usage}(?:"|')`, Path: `rb$`},
		},
	},
	{
		Name:       "scala",
		Extensions: []string{"sbt", "scala", "sc"},
		Templates: []Template{
			{Pattern: `import.+${import_or_usage}`, Path: `(?:scala|sc)$`},
		},
	},
	{
		Name:       "go",
		Extensions: []string{"go"},
		Templates: []Template{
			{Pattern: `${import_or_usage}`, IgnoreCase: true, Path: `go$`},
		},
	},
	{
		Name:       "markdown",
		Extensions: []string{"md"},
		Filenames:  []string{"readme.md"},
		Templates: []Template{
			{Pattern: `${artifact_name}`, IgnoreCase: true, Path: `readme.md$`},
		},
	},
}

// Find returns the language with the given name, ignoring case, or nil.
func Find(name string) *Language {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, l := range Languages {
		if l.Name == name {
			return l
		}
	}
	return nil
}
