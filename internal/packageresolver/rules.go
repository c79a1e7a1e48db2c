package packageresolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tsukumogami/embeddb/internal/distribution"
)

// Rule pairs a predicate with the finder that produces a package for
// distributions it matches.
type Rule struct {
	Name   string
	Match  DistributionMatch
	Finder PackageFinder
}

// Rules is the ordered rule list for one command.
type Rules struct {
	command distribution.Command
	rules   []Rule
}

// NewRules returns a rule list evaluated in the given order.
func NewRules(command distribution.Command, rules ...Rule) *Rules {
	return &Rules{command: command, rules: append([]Rule(nil), rules...)}
}

// Command returns the command the rules were built for.
func (r *Rules) Command() distribution.Command {
	return r.command
}

// Len returns the number of rules.
func (r *Rules) Len() int {
	return len(r.rules)
}

// Resolve walks the rules in order. The first rule that matches and
// produces a package wins. A finder error stops the walk.
func (r *Rules) Resolve(d distribution.Distribution) (*distribution.Package, error) {
	for _, rule := range r.rules {
		if !rule.Match.Matches(d) {
			continue
		}
		pkg, err := rule.Finder.PackageFor(d)
		if err != nil {
			var unsupported *UnsupportedDistributionError
			if errors.As(err, &unsupported) && unsupported.Command == "" {
				unsupported.Command = r.command
			}
			return nil, err
		}
		if pkg != nil {
			return pkg, nil
		}
	}
	return nil, &UnsupportedDistributionError{Command: r.command, Distribution: d}
}

// Explain renders the rule list in evaluation order.
func (r *Rules) Explain() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rules for %s:\n", r.command)
	for i, rule := range r.rules {
		name := rule.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "%3d. %s\n", i+1, name)
		fmt.Fprintf(&b, "     match: %s\n", rule.Match)
		fmt.Fprintf(&b, "     -> %s\n", rule.Finder.Describe())
	}
	return b.String()
}
