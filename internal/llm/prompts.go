package llm

import (
	"embed"
	"path"
	"sort"
	"strings"
	"sync"
)

//go:embed prompts/*.txt
var promptFS embed.FS

// DefaultPromptVersion is used when no version is configured.
const DefaultPromptVersion = "v1"

var (
	promptsOnce sync.Once
	prompts     map[string]string
)

func loadPrompts() {
	prompts = make(map[string]string)
	entries, _ := promptFS.ReadDir("prompts")
	for _, e := range entries {
		name := e.Name()
		raw, err := promptFS.ReadFile(path.Join("prompts", name))
		if err != nil {
			continue
		}
		prompts[strings.TrimSuffix(name, path.Ext(name))] = string(raw)
	}
}

// PromptTemplate returns the system prompt for version. Unknown versions fall back to
// DefaultPromptVersion and report false.
func PromptTemplate(version string) (string, bool) {
	promptsOnce.Do(loadPrompts)
	version = strings.ToLower(strings.TrimSpace(version))
	if version == "" {
		version = DefaultPromptVersion
	}
	if p, ok := prompts[version]; ok {
		return p, true
	}
	return prompts[DefaultPromptVersion], false
}

// PromptVersions lists the embedded prompt versions in order.
func PromptVersions() []string {
	promptsOnce.Do(loadPrompts)
	out := make([]string, 0, len(prompts))
	for v := range prompts {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
