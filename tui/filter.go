package tui

import (
	"regexp"
	"strings"
	"time"
)

type filterKind int

const (
	filterText      filterKind = iota // plain text substring match against command
	filterDuration                    // d>100ms, d<10ms
	filterError                       // "error" keyword
	filterDirection                   // dir:call, dir:dispatch, etc.
)

type durationOp int

const (
	durGT durationOp = iota // >
	durLT                   // <
)

type filterCondition struct {
	kind filterKind

	// filterText
	text string

	// filterDuration
	durOp    durationOp
	durValue time.Duration

	// filterDirection — matched against monitorEvent.Direction
	dirPattern string
}

var reDuration = regexp.MustCompile(`^d([><])(\d+(?:\.\d+)?)(us|µs|ms|s|m)$`)

func parseFilter(input string) []filterCondition {
	tokens := strings.Fields(input)
	conds := make([]filterCondition, 0, len(tokens))

	for _, tok := range tokens {
		if c, ok := parseDuration(tok); ok {
			conds = append(conds, c)
			continue
		}
		if strings.ToLower(tok) == "error" {
			conds = append(conds, filterCondition{kind: filterError})
			continue
		}
		if c, ok := parseDirection(tok); ok {
			conds = append(conds, c)
			continue
		}
		conds = append(conds, filterCondition{
			kind: filterText,
			text: strings.ToLower(tok),
		})
	}
	return conds
}

func parseDuration(tok string) (filterCondition, bool) {
	m := reDuration.FindStringSubmatch(tok)
	if m == nil {
		return filterCondition{}, false
	}
	op := durGT
	if m[1] == "<" {
		op = durLT
	}
	unit := m[3]
	raw := m[2] + unitSuffix(unit)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return filterCondition{}, false
	}
	return filterCondition{
		kind:     filterDuration,
		durOp:    op,
		durValue: d,
	}, true
}

func unitSuffix(unit string) string {
	switch unit {
	case "us", "µs":
		return "us"
	case "ms":
		return "ms"
	case "s":
		return "s"
	case "m":
		return "m"
	}
	return "ms"
}

func parseDirection(tok string) (filterCondition, bool) {
	lower := strings.ToLower(tok)
	if !strings.HasPrefix(lower, "dir:") {
		return filterCondition{}, false
	}
	pattern := lower[4:]
	if pattern == "" {
		return filterCondition{}, false
	}
	return filterCondition{
		kind:       filterDirection,
		dirPattern: pattern,
	}, true
}

func (c filterCondition) matchesEvent(ev monitorEvent) bool {
	switch c.kind {
	case filterText:
		return strings.Contains(strings.ToLower(ev.Command), c.text)
	case filterDuration:
		dur := time.Duration(ev.DurationMs * float64(time.Millisecond))
		switch c.durOp {
		case durGT:
			return dur > c.durValue
		case durLT:
			return dur < c.durValue
		}
	case filterError:
		return ev.Error != ""
	case filterDirection:
		return strings.Contains(strings.ToLower(ev.Direction), c.dirPattern)
	}
	return false
}

func matchAllConditions(ev monitorEvent, conds []filterCondition) bool {
	for _, c := range conds {
		if !c.matchesEvent(ev) {
			return false
		}
	}
	return true
}

func describeFilter(input string) string {
	conds := parseFilter(input)
	if len(conds) == 0 {
		return input
	}
	var parts []string
	for _, c := range conds {
		switch c.kind {
		case filterText:
			parts = append(parts, "text:"+c.text)
		case filterDuration:
			op := ">"
			if c.durOp == durLT {
				op = "<"
			}
			parts = append(parts, "d"+op+c.durValue.String())
		case filterError:
			parts = append(parts, "error")
		case filterDirection:
			parts = append(parts, "dir:"+c.dirPattern)
		}
	}
	return strings.Join(parts, " ")
}
