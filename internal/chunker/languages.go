package chunker

// Mode selects which chunking strategy a language uses (spec §4.3).
type Mode int

const (
	// ModeBrace scans balanced {…} bodies preceded by class/function
	// declaration probes (C-family, TS/JS families).
	ModeBrace Mode = iota
	// ModeIndent locates "class X"/"def X" headers and spans each to the
	// next header indented at or less than its own, or EOF (Python-like).
	ModeIndent
	// ModeFallback has no semantic probe and always uses fixed-size
	// chunking with overlap.
	ModeFallback
)

// languageTable maps a file extension to its language name and chunking
// mode, grounded on the teacher's pkg/treesitter language registry
// (extension→grammar lookup) generalized here to extension→(name, mode)
// since this service has no grammar dependency to load.
var languageTable = map[string]struct {
	Name string
	Mode Mode
}{
	".go":    {"go", ModeBrace},
	".c":     {"c", ModeBrace},
	".h":     {"c", ModeBrace},
	".cc":    {"cpp", ModeBrace},
	".cpp":   {"cpp", ModeBrace},
	".hpp":   {"cpp", ModeBrace},
	".cs":    {"csharp", ModeBrace},
	".java":  {"java", ModeBrace},
	".js":    {"javascript", ModeBrace},
	".jsx":   {"javascript", ModeBrace},
	".ts":    {"typescript", ModeBrace},
	".tsx":   {"typescript", ModeBrace},
	".rs":    {"rust", ModeBrace},
	".kt":    {"kotlin", ModeBrace},
	".swift": {"swift", ModeBrace},
	".php":   {"php", ModeBrace},
	".scala": {"scala", ModeBrace},

	".py": {"python", ModeIndent},
	".rb": {"ruby", ModeIndent},

	".pl":   {"perl", ModeFallback},
	".pm":   {"perl", ModeFallback},
	".sql":  {"sql", ModeFallback},
	".sh":   {"shell", ModeFallback},
	".md":   {"markdown", ModeFallback},
	".yaml": {"yaml", ModeFallback},
	".yml":  {"yaml", ModeFallback},
	".json": {"json", ModeFallback},
}

// excludedDirs are skipped entirely during the directory walk (spec §4.3).
var excludedDirs = map[string]bool{
	"node_modules": true,
	"bin":          true,
	"obj":          true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"vendor":       true,
}

// excludedFiles are skipped regardless of extension.
var excludedFiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"go.sum":            true,
	"Cargo.lock":        true,
	".gitignore":        true,
	".dockerignore":     true,
}

// LanguageFor returns the language name and chunking mode for path's
// extension, and whether the extension is recognized at all.
func LanguageFor(ext string) (name string, mode Mode, ok bool) {
	entry, ok := languageTable[ext]
	if !ok {
		return "", ModeFallback, false
	}
	return entry.Name, entry.Mode, true
}
