// Package conflict picks a deterministic winner among competing opinions
// about one contested domain.
//
// Resolution runs three rules in priority order:
//
//  1. Safety override: a Safety, Fire or Structural opinion that flags a
//     critical issue wins unconditionally (highest specialty weight first).
//  2. Domain expertise: the specialty that owns the contested domain wins
//     when its opinion scores above ExpertiseScoreThreshold.
//  3. Weighted voting: vote = specialty weight × domain bonus × basis. A
//     winner holding less than half of the total vote is flagged for human
//     review.
package conflict

import (
	"fmt"
	"sort"

	"github.com/stingtools/council/core"
	"github.com/stingtools/council/logging"
)

const (
	// ExpertiseScoreThreshold is the score an owning specialty must exceed to win by expertise.
	ExpertiseScoreThreshold = 0.8
	// DomainBonus multiplies the vote of a specialty that owns the contested domain.
	DomainBonus = 1.5
	// HumanReviewThreshold is the weighted-vote confidence below which human review is requested.
	HumanReviewThreshold = 0.5
)

// VoteBasis selects the per-opinion factor used in weighted voting.
type VoteBasis string

const (
	// VoteByScore multiplies by the opinion's score.
	VoteByScore VoteBasis = "score"
	// VoteByConfidence multiplies by score × confidence, so a hesitant
	// high score counts for less than a confident one.
	VoteByConfidence VoteBasis = "confidence"
)

// Options configures a Resolver.
type Options struct {
	VoteBasis VoteBasis
	Logger    logging.Logger
}

// Resolver resolves conflicts. It is stateless and safe for concurrent use.
type Resolver struct {
	basis  VoteBasis
	logger logging.Logger
}

// New creates a Resolver. The default vote basis is VoteByScore.
func New(optFns ...func(o *Options)) *Resolver {
	opts := Options{VoteBasis: VoteByScore}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.VoteBasis != VoteByConfidence {
		opts.VoteBasis = VoteByScore
	}
	return &Resolver{basis: opts.VoteBasis, logger: logging.OrNoOp(opts.Logger)}
}

// VoteBasis returns the configured vote basis.
func (r *Resolver) VoteBasis() VoteBasis { return r.basis }

// Resolve picks a winner for domain among opinions. An empty opinion set is
// a contract error.
func (r *Resolver) Resolve(domain string, opinions []core.Opinion) (*core.ConflictResolution, error) {
	if len(opinions) == 0 {
		return nil, fmt.Errorf("resolve %q: %w", domain, core.ErrNoOpinions)
	}
	if domain == "" {
		domain = "General"
	}
	res := &core.ConflictResolution{
		Domain:   domain,
		Opinions: append([]core.Opinion(nil), opinions...),
	}

	if w, ok := safetyOverride(opinions); ok {
		res.Winner = w
		res.Method = core.MethodSafetyOverride
		res.Confidence = 1.0
		res.Notes = append(res.Notes, fmt.Sprintf("%s flagged a critical issue", w.Specialty))
		r.logger.Info("conflict resolved by safety override", "domain", domain, "winner", w.EvaluatorID, "specialty", w.Specialty.String())
		return res, nil
	}

	if len(opinions) == 1 {
		res.Winner = opinions[0]
		res.Method = core.MethodConsensus
		res.Confidence = opinions[0].Confidence
		return res, nil
	}

	if w, ok := domainExpertise(domain, opinions); ok {
		res.Winner = w
		res.Method = core.MethodDomainExpertise
		res.Confidence = w.Score
		res.Notes = append(res.Notes, fmt.Sprintf("%s has authority over %s", w.Specialty, domain))
		r.logger.Debug("conflict resolved by domain expertise", "domain", domain, "winner", w.EvaluatorID)
		return res, nil
	}

	w, confidence := r.weightedVote(domain, opinions)
	res.Winner = w
	res.Method = core.MethodWeightedVoting
	res.Confidence = confidence
	if confidence < HumanReviewThreshold {
		res.RequiresHumanReview = true
		res.Notes = append(res.Notes, fmt.Sprintf("winner holds %.0f%% of the weighted vote; human review recommended", confidence*100))
		r.logger.Warn("conflict needs human review", "domain", domain, "confidence", confidence)
	}
	return res, nil
}

// ResolveAll groups the issues of opinions by domain and resolves every
// domain referenced by more than one opinion. Results are sorted by domain.
func (r *Resolver) ResolveAll(opinions []core.Opinion) ([]core.ConflictResolution, error) {
	if len(opinions) == 0 {
		return nil, core.ErrNoOpinions
	}
	byDomain := map[string][]core.Opinion{}
	for _, o := range opinions {
		for _, d := range o.Domains() {
			byDomain[d] = append(byDomain[d], o)
		}
	}
	domains := make([]string, 0, len(byDomain))
	for d, ops := range byDomain {
		if len(ops) > 1 {
			domains = append(domains, d)
		}
	}
	sort.Strings(domains)

	out := make([]core.ConflictResolution, 0, len(domains))
	for _, d := range domains {
		res, err := r.Resolve(d, byDomain[d])
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, nil
}

// better reports whether a outranks b under the shared tie-break order:
// higher specialty weight, then higher score, then smaller evaluator id.
func better(a, b core.Opinion) bool {
	if wa, wb := a.Specialty.Weight(), b.Specialty.Weight(); wa != wb {
		return wa > wb
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.EvaluatorID < b.EvaluatorID
}

func safetyOverride(opinions []core.Opinion) (core.Opinion, bool) {
	var best core.Opinion
	found := false
	for _, o := range opinions {
		if !o.Specialty.IsSafetyCritical() || !o.HasCriticalIssues() {
			continue
		}
		if !found || better(o, best) {
			best = o
			found = true
		}
	}
	return best, found
}

func domainExpertise(domain string, opinions []core.Opinion) (core.Opinion, bool) {
	authority, ok := core.AuthorityFor(domain)
	if !ok {
		return core.Opinion{}, false
	}
	var best core.Opinion
	found := false
	for _, o := range opinions {
		if o.Specialty != authority || o.Score <= ExpertiseScoreThreshold {
			continue
		}
		if !found || better(o, best) {
			best = o
			found = true
		}
	}
	return best, found
}

func (r *Resolver) vote(domain string, o core.Opinion) float64 {
	v := o.Specialty.Weight()
	if o.Specialty.OwnsDomain(domain) {
		v *= DomainBonus
	}
	v *= o.Score
	if r.basis == VoteByConfidence {
		v *= o.Confidence
	}
	return v
}

func (r *Resolver) weightedVote(domain string, opinions []core.Opinion) (core.Opinion, float64) {
	var (
		best     core.Opinion
		bestVote = -1.0
		total    float64
	)
	for _, o := range opinions {
		v := r.vote(domain, o)
		total += v
		if v > bestVote || (v == bestVote && better(o, best)) {
			best, bestVote = o, v
		}
	}
	if total <= 0 {
		return best, 0
	}
	return best, bestVote / total
}
