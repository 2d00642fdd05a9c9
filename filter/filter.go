// Package filter matches resource requests against Adblock Plus rule sets.
package filter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pmezard/adblock/adblock"

	"github.com/hazyhaar/pagegraph/graph"
)

// Engine checks requests against a compiled rule set. Blocking and exception
// rules live in separate matchers so a match can report which side fired: an
// exception always wins over a block, and a fired exception is reported even
// when it cancelled the block.
type Engine struct {
	block   *adblock.RuleMatcher
	except  *adblock.RuleMatcher
	rules   int
	skipped int
}

var _ graph.FilterMatcher = (*Engine)(nil)

// NewEngine compiles the given rule lines. Comments, list headers and blank
// lines are ignored; cosmetic rules and lines the matcher cannot compile are
// skipped and counted, the way browsers consume real-world lists.
func NewEngine(rules []string) *Engine {
	e := &Engine{block: adblock.NewMatcher(), except: adblock.NewMatcher()}
	blockID, exceptID := 0, 0
	for _, raw := range rules {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "!") || strings.HasPrefix(line, "[") {
			continue
		}
		if isCosmetic(line) {
			e.skipped++
			continue
		}
		rule, err := adblock.ParseRule(line)
		if err != nil || rule == nil {
			e.skipped++
			continue
		}
		if rule.Exception {
			if err := e.except.AddRule(rule, exceptID); err != nil {
				e.skipped++
				continue
			}
			exceptID++
		} else {
			if err := e.block.AddRule(rule, blockID); err != nil {
				e.skipped++
				continue
			}
			blockID++
		}
		e.rules++
	}
	return e
}

// NewEngineFromFiles compiles the concatenation of the given list files.
func NewEngineFromFiles(paths ...string) (*Engine, error) {
	var rules []string
	for _, path := range paths {
		lines, err := LoadListFile(path)
		if err != nil {
			return nil, err
		}
		rules = append(rules, lines...)
	}
	return NewEngine(rules), nil
}

// RuleCount returns the number of compiled rules.
func (e *Engine) RuleCount() int { return e.rules }

// SkippedCount returns the number of rule-like lines that were not compiled.
func (e *Engine) SkippedCount() int { return e.skipped }

// Match implements graph.FilterMatcher.
func (e *Engine) Match(req graph.FilterRequest) (graph.FilterMatch, error) {
	rq := &adblock.Request{
		URL:          req.URL,
		Domain:       req.Domain,
		OriginDomain: req.SourceDomain,
		ContentType:  contentType(req.RequestType),
	}
	blocked, _, err := e.block.Match(rq)
	if err != nil {
		return graph.FilterMatch{}, fmt.Errorf("filter: matching %s: %w", req.URL, err)
	}
	excepted, _, err := e.except.Match(rq)
	if err != nil {
		return graph.FilterMatch{}, fmt.Errorf("filter: matching %s: %w", req.URL, err)
	}
	return graph.FilterMatch{Matched: blocked && !excepted, Exception: excepted}, nil
}

// LoadList reads one rule per line.
func LoadList(r io.Reader) ([]string, error) {
	var rules []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		rules = append(rules, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("filter: reading rules: %w", err)
	}
	return rules, nil
}

// LoadListFile reads a rule list from disk.
func LoadListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	defer f.Close()
	return LoadList(f)
}

// isCosmetic reports element-hiding and snippet rules, which have no network
// interpretation.
func isCosmetic(line string) bool {
	for _, sep := range []string{"##", "#@#", "#?#", "#$#"} {
		if strings.Contains(line, sep) {
			return true
		}
	}
	return false
}

// contentType maps recorded request types onto Adblock Plus option names.
func contentType(requestType string) string {
	switch requestType {
	case "xhr":
		return "xmlhttprequest"
	case "unknown":
		return "other"
	}
	return requestType
}
