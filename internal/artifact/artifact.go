// Package artifact extracts structured artifacts (code, file paths,
// commands, errors, architecture mentions) from chunk text, ported from
// the multi-modal extractor in the original Python hooks (spec §4.3, C1).
package artifact

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/avrilcode/compactmem/internal/model"
)

var (
	codeBlockRe  = regexp.MustCompile("(?s)```(\\w+)?\\n(.*?)```")
	filePathRe   = regexp.MustCompile(`\b[\w/\-.]+\.(ts|js|tsx|jsx|py|go|rs|java|cpp|c|h|hpp|json|yaml|yml|md|txt|sh)\b`)
	numericOnlyRe = regexp.MustCompile(`^\d+\.\w+$`)
	commandRe    = regexp.MustCompile(`(?m)^\s*\$\s+(.+)$`)

	architectureKeywords = []string{
		"architecture", "pattern", "decided", "design", "strategy", "diagram",
		"flow", "structure", "pipeline", "workflow", "hierarchy",
	}
	architectureRe = buildArchitectureRe()

	errorPatterns = []struct {
		re *regexp.Regexp
	}{
		{regexp.MustCompile(`(?m)^.*(Error|Exception):\s*.+$`)},
		// Traceback header plus every indented continuation line that
		// follows it, stopping at the first unindented line (the final
		// "XError: ..." line is picked up by the pattern above instead).
		{regexp.MustCompile(`(?m)^Traceback.*$(?:\n[ \t]+.*$)*`)},
	}
)

func buildArchitectureRe() *regexp.Regexp {
	return regexp.MustCompile(`(?i)[^.!?]*\b(` + strings.Join(architectureKeywords, "|") + `)\b[^.!?]*[.!?]`)
}

// Extract pulls the full artifact bundle and derived flags from a chunk's
// combined intent/action/outcome text.
func Extract(text string) (model.Artifacts, model.Flags) {
	a := model.Artifacts{
		CodeSnippets: extractCode(text),
		Files:        extractFiles(text),
		Commands:     extractCommands(text),
		Errors:       extractErrors(text),
		Architecture: extractArchitecture(text),
	}
	f := model.Flags{
		HasCode:         len(a.CodeSnippets) > 0,
		HasFiles:        len(a.Files) > 0,
		HasArchitecture: len(a.Architecture) > 0,
		Success:         successRe.MatchString(text) && !failureRe.MatchString(text),
	}
	return a, f
}

var (
	successRe = regexp.MustCompile(`(?i)\b(done|fixed|resolved|tests? pass(es|ed)?|all green|works now|completed|succeeded)\b`)
	failureRe = regexp.MustCompile(`(?i)\b(error|failed|failure|exception|crash(ed)?)\b`)
)

func extractCode(text string) []model.CodeSnippet {
	var out []model.CodeSnippet
	for _, m := range codeBlockRe.FindAllStringSubmatch(text, -1) {
		lang := m[1]
		if lang == "" {
			lang = "plaintext"
		}
		code := strings.TrimSpace(m[2])
		if code != "" {
			out = append(out, model.CodeSnippet{Language: lang, Text: code})
		}
	}
	return out
}

func extractFiles(text string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range filePathRe.FindAllString(text, -1) {
		if numericOnlyRe.MatchString(m) {
			continue
		}
		norm := filepath.ToSlash(m)
		if !seen[norm] {
			seen[norm] = true
			out = append(out, norm)
		}
	}
	sort.Strings(out)
	return out
}

func extractCommands(text string) []string {
	var out []string
	for _, m := range commandRe.FindAllStringSubmatch(text, -1) {
		cmd := strings.TrimSpace(m[1])
		if cmd != "" && len(cmd) < 200 {
			out = append(out, cmd)
		}
	}
	return out
}

func extractErrors(text string) []string {
	var out []string
	for _, p := range errorPatterns {
		for _, m := range p.re.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			if m != "" {
				if len(m) > 500 {
					m = m[:500]
				}
				out = append(out, m)
			}
		}
	}
	return out
}

func extractArchitecture(text string) []string {
	var out []string
	for _, m := range architectureRe.FindAllString(text, -1) {
		m = strings.TrimSpace(m)
		if len(m) > 20 {
			out = append(out, m)
		}
	}
	return out
}
