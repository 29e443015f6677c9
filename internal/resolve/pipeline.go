package resolve

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/darisdzakwanhoesien2/research-landscape/internal/registry"
)

// strategy attempts to resolve a token. It reports ok=false to pass the
// token on to the next strategy.
type strategy func(p *Pipeline, token string, kind registry.Kind) (Record, bool, error)

// strategies run in this order and the first success wins. Reordering them
// changes which source a token is attributed to.
var strategies = []strategy{
	byCorpusKey,
	byCuratedDB,
	byCorpusDOIReverse,
}

// Pipeline resolves tokens against a corpus and the curated registry.
// It never mutates either.
type Pipeline struct {
	corpus   Corpus
	registry *registry.Registry
	logger   zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger makes the pipeline log each decision at debug level.
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a pipeline. A nil corpus resolves through the registry alone.
func New(corpus Corpus, reg *registry.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{
		corpus:   corpus,
		registry: reg,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ResolveToken runs the strategy chain for a single token.
func (p *Pipeline) ResolveToken(token string) (Record, error) {
	kind := p.registry.DetectKind(token)
	for _, s := range strategies {
		rec, ok, err := s(p, token, kind)
		if err != nil {
			return Record{}, errors.Wrapf(err, "resolving %q", token)
		}
		if ok {
			rec.Raw, rec.Kind = token, kind
			p.logger.Debug().
				Str("token", token).
				Str("method", string(rec.Method)).
				Str("key", rec.ResolvedKey).
				Str("doi", rec.ResolvedDOI).
				Msg("resolved citation")
			return rec, nil
		}
	}
	p.logger.Debug().Str("token", token).Str("kind", string(kind)).Msg("unresolved citation")
	return Record{Raw: token, Kind: kind, Method: MethodUnresolved}, nil
}

// Resolve produces one record per distinct token, in first-seen order.
func (p *Pipeline) Resolve(tokens []string) (Table, error) {
	seen := make(map[string]bool, len(tokens))
	table := make(Table, 0, len(tokens))
	for _, tok := range tokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		rec, err := p.ResolveToken(tok)
		if err != nil {
			return nil, err
		}
		table = append(table, rec)
	}
	return table, nil
}

func byCorpusKey(p *Pipeline, token string, _ registry.Kind) (Record, bool, error) {
	if p.corpus == nil {
		return Record{}, false, nil
	}
	doi, ok, err := p.corpus.LookupKey(token)
	if err != nil || !ok {
		return Record{}, false, err
	}
	return Record{ResolvedKey: token, ResolvedDOI: doi, Method: MethodCorpusKey}, true, nil
}

func byCuratedDB(p *Pipeline, token string, _ registry.Kind) (Record, bool, error) {
	doi, ok := p.registry.LookupByKey(token)
	if !ok {
		return Record{}, false, nil
	}
	rec := Record{ResolvedDOI: doi, Method: MethodCuratedDB}
	if key, ok := p.registry.CanonicalKey(doi); ok {
		rec.ResolvedKey = key
	}
	return rec, true, nil
}

// byCorpusDOIReverse maps a DOI token back to a corpus key. When several keys
// share the DOI the lexicographically smallest wins.
func byCorpusDOIReverse(p *Pipeline, token string, kind registry.Kind) (Record, bool, error) {
	if p.corpus == nil || kind != registry.KindDOI {
		return Record{}, false, nil
	}
	keys, err := p.corpus.LookupDOI(strings.ToLower(token))
	if err != nil || len(keys) == 0 {
		return Record{}, false, err
	}
	best := keys[0]
	for _, k := range keys[1:] {
		if k < best {
			best = k
		}
	}
	if len(keys) > 1 {
		p.logger.Debug().Str("token", token).Strs("keys", keys).Str("chosen", best).Msg("ambiguous DOI")
	}
	return Record{ResolvedKey: best, ResolvedDOI: token, Method: MethodCorpusDOIReverse}, true, nil
}
