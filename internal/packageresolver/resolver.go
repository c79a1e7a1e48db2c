package packageresolver

import (
	"strings"

	"github.com/tsukumogami/embeddb/internal/config"
	"github.com/tsukumogami/embeddb/internal/distribution"
)

// Resolver resolves distributions for one command against a download
// origin.
type Resolver struct {
	rules        *Rules
	origin       string
	toolsVersion distribution.Version
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithOrigin sets the prefix package paths are resolved against.
func WithOrigin(origin string) Option {
	return func(r *Resolver) {
		r.origin = strings.TrimRight(origin, "/")
	}
}

// WithToolsVersion sets the tools version used when a Distribution does
// not carry one.
func WithToolsVersion(v distribution.Version) Option {
	return func(r *Resolver) {
		r.toolsVersion = v
	}
}

// WithRules replaces the built-in rule tables.
func WithRules(rules *Rules) Option {
	return func(r *Resolver) {
		r.rules = rules
	}
}

// New returns a Resolver for command using the built-in rule tables and
// the configured download origin.
func New(command distribution.Command, opts ...Option) (*Resolver, error) {
	r := &Resolver{origin: config.GetDownloadOrigin()}
	for _, opt := range opts {
		opt(r)
	}
	if r.rules == nil {
		rules, err := ForCommand(command)
		if err != nil {
			return nil, err
		}
		r.rules = rules
	}
	return r, nil
}

// Resolve returns the package for d with its URL filled in.
func (r *Resolver) Resolve(d distribution.Distribution) (distribution.Package, error) {
	if d.ToolsVersion.IsZero() {
		d.ToolsVersion = r.toolsVersion
	}
	pkg, err := r.rules.Resolve(d)
	if err != nil {
		return distribution.Package{}, err
	}
	return pkg.WithOrigin(r.origin), nil
}

// Explain renders the rules the resolver walks.
func (r *Resolver) Explain() string {
	return r.rules.Explain()
}

// Rules returns the underlying rule list.
func (r *Resolver) Rules() *Rules {
	return r.rules
}
