package invoice

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Strategy is one heuristic for locating a JSON object in free text
type Strategy struct {
	Name string
	// Find returns the decoded object and true, or false if this heuristic found nothing usable
	Find func(text string) (map[string]any, bool)
}

var (
	objectPattern = regexp.MustCompile(`(?s)\{.*?\}`)
	fencePattern  = regexp.MustCompile("(?s)```json[ \t]*\r?\n(.*?)```")
)

// decodeObject parses s as a JSON object; an empty object counts as nothing found
func decodeObject(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	if len(m) == 0 {
		return nil, false
	}
	return m, true
}

// BracketSpan parses everything from the first '{' to the last '}'.
// This keeps nested objects intact and is the expected path.
func BracketSpan(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return nil, false
	}
	return decodeObject(text[start : end+1])
}

// RegexObject parses the first, shortest brace-delimited span.
// Nested braces truncate the match, so this only rescues flat objects.
func RegexObject(text string) (map[string]any, bool) {
	match := objectPattern.FindString(text)
	if match == "" {
		return nil, false
	}
	return decodeObject(match)
}

// FencedBlock parses the body of the first ```json fenced code block
func FencedBlock(text string) (map[string]any, bool) {
	match := fencePattern.FindStringSubmatch(text)
	if match == nil {
		return nil, false
	}
	return decodeObject(strings.TrimSpace(match[1]))
}

// DefaultStrategies are tried in this order by NewExtractor when none are given
var DefaultStrategies = []Strategy{
	{Name: "bracket-span", Find: BracketSpan},
	{Name: "regex-object", Find: RegexObject},
	{Name: "fenced-block", Find: FencedBlock},
}

// Extractor pulls a JSON object out of model output using the first strategy that succeeds
type Extractor struct {
	strategies []Strategy
}

// NewExtractor creates an Extractor trying strategies in order
func NewExtractor(strategies ...Strategy) *Extractor {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Extractor{strategies: strategies}
}

// Extract returns the first object found, or an empty non-nil map
func (e *Extractor) Extract(text string) map[string]any {
	m, _ := e.ExtractWithStrategy(text)
	return m
}

// ExtractWithStrategy is Extract that also names the winning strategy ("" if none)
func (e *Extractor) ExtractWithStrategy(text string) (map[string]any, string) {
	for _, s := range e.strategies {
		if m, ok := s.Find(text); ok {
			return m, s.Name
		}
	}
	return map[string]any{}, ""
}
