package resolve

import (
	"github.com/darisdzakwanhoesien2/research-landscape/internal/citation"
)

// Result is the outcome of resolving and rewriting one document.
type Result struct {
	Table     Table                 `json:"table"`
	Rewritten string                `json:"-"`
	Stats     citation.RewriteStats `json:"rewrite"`
}

// Run extracts the citation tokens of source, resolves them and rewrites the
// document with the resolved keys. Neither the corpus nor the registry is
// modified.
func (p *Pipeline) Run(source string) (*Result, error) {
	table, err := p.Resolve(citation.Extract(source))
	if err != nil {
		return nil, err
	}
	rewritten, stats := citation.Rewrite(source, table.Replacements())
	p.logger.Info().
		Int("tokens", len(table)).
		Int("unresolved", len(table.Unresolved())).
		Int("macros", stats.Macros).
		Int("rewritten", stats.Rewritten).
		Int("removed", stats.Removed).
		Msg("rewrote citations")
	return &Result{Table: table, Rewritten: rewritten, Stats: stats}, nil
}
