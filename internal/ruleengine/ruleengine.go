// Package ruleengine compiles and evaluates the YARA signature rules the
// mainframe distributes. It is the "signature-rule compiler" collaborator
// named out of scope by the specification: this package only adapts the
// go-yara binding to the shapes the rest of the pipeline needs (weight and
// filetype metadata extraction, scan-with-timeout).
package ruleengine

import (
	"fmt"
	"sort"
	"time"

	"github.com/hillu/go-yara/v4"
)

// Match is a single rule match against a scanned buffer, carrying the two
// metadata fields the aggregator and filetype gate care about.
type Match struct {
	RuleName  string
	Weight    int
	Filetypes []string // empty means "applies to every file"
}

// Rules is an immutable compiled rule set. A *Rules value is safe for
// concurrent use by many scanning goroutines; it is only ever replaced,
// never mutated, by rulestore.Store.
type Rules struct {
	compiled *yara.Rules
}

// Compile concatenates the named rule sources (joined by newline, per the
// mainframe's /rules response shape) and compiles them into a Rules value.
func Compile(sources map[string]string) (*Rules, error) {
	compiler, err := yara.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("yara compiler init: %w", err)
	}

	joined := joinSources(sources)
	if err := compiler.AddString(joined, ""); err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}

	compiled, err := compiler.GetRules()
	if err != nil {
		return nil, fmt.Errorf("get compiled rules: %w", err)
	}

	return &Rules{compiled: compiled}, nil
}

func joinSources(sources map[string]string) string {
	// Map iteration order doesn't matter for compilation (every rule ends
	// up in the same namespace regardless of concatenation order) but a
	// deterministic join keeps compile errors reproducible across runs.
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)

	joined := ""
	for i, name := range names {
		if i > 0 {
			joined += "\n"
		}
		joined += sources[name]
	}
	return joined
}

// ScanMem scans a single in-memory buffer with a wall-clock timeout,
// returning every rule that matched along with its weight/filetype
// metadata. A scan that times out or errors internally is reported as an
// error (spec §7, "Rule scan" kind).
func (r *Rules) ScanMem(data []byte, timeout time.Duration) ([]Match, error) {
	var matches []Match

	timeoutSec := int(timeout / time.Second)
	if timeoutSec < 1 {
		timeoutSec = 1
	}

	err := r.compiled.ScanMemWithCallback(data, yara.ScanFlagsFastMode, timeoutSec,
		func(m *yara.MatchRule) (bool, error) {
			weight := 0
			var filetypes []string
			for _, meta := range m.Metas {
				switch meta.Identifier {
				case "weight":
					if i, ok := meta.Value.(int64); ok {
						weight = int(i)
					} else if i, ok := meta.Value.(int); ok {
						weight = i
					}
				case "filetype":
					if s, ok := meta.Value.(string); ok && s != "" {
						filetypes = splitFiletypes(s)
					}
				}
			}
			matches = append(matches, Match{
				RuleName:  m.Rule,
				Weight:    weight,
				Filetypes: filetypes,
			})
			return true, nil // keep scanning for further matches
		},
	)
	if err != nil {
		return nil, fmt.Errorf("yara scan: %w", err)
	}
	return matches, nil
}

// Close releases the underlying YARA rule handle.
func (r *Rules) Close() {
	if r.compiled != nil {
		r.compiled.Destroy()
	}
}

func splitFiletypes(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ' ' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
