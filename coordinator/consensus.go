package coordinator

import (
	"context"
	"math"
	"time"

	"github.com/stingtools/council/bus"
	"github.com/stingtools/council/core"
)

// GetConsensus runs the bounded-round consensus protocol over every active
// evaluator.
//
// Round 1 evaluates the proposal in parallel. When the population variance of
// the scores is below VarianceThreshold the result is StatusConsensus.
// Otherwise every opinion is shared with every other active evaluator and
// another round runs, up to MaxConsensusRounds. A protocol that never settles
// ends as StatusMajority, or StatusDisagreement when most final opinions
// dissent from the aggregate, and carries the resolved domain conflicts.
//
// An empty registry, or one where every evaluator failed, yields
// StatusNoAgents. Only contract violations and a context that is already
// done are returned as errors; evaluator failures never are.
func (c *Coordinator) GetConsensus(ctx context.Context, proposal *core.DesignProposal, ec core.EvaluationContext) (*core.ConsensusResult, error) {
	if proposal == nil {
		return nil, core.ErrNilProposal
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	evaluators := c.active()
	if len(evaluators) == 0 {
		c.logger.Info("consensus skipped: no active evaluators", "proposal_id", proposal.ID())
		return c.finish(ctx, proposal, &core.ConsensusResult{Status: core.StatusNoAgents}, start), nil
	}

	var (
		opinions []core.Opinion
		agg      aggregate
		rounds   int
		settled  bool
	)
	for round := 1; round <= c.config.MaxConsensusRounds; round++ {
		if round > 1 {
			if ctx.Err() != nil {
				break
			}
			c.shareFeedback(ctx, evaluators, opinions)
		}

		roundCtx := ec
		roundCtx.Round = round
		got := c.evaluateRound(ctx, evaluators, proposal, roundCtx)
		if len(got) == 0 {
			break
		}
		opinions, rounds = got, round
		agg = c.aggregate(opinions)

		c.logger.Debug("consensus round completed",
			"proposal_id", proposal.ID(), "round", round, "opinions", len(opinions),
			"score", agg.score, "variance", agg.variance)

		if agg.variance < c.config.VarianceThreshold {
			settled = true
			break
		}
	}

	if len(opinions) == 0 {
		c.logger.Warn("consensus failed: every evaluator abstained",
			"proposal_id", proposal.ID(), "evaluators", len(evaluators))
		return c.finish(ctx, proposal, &core.ConsensusResult{Status: core.StatusNoAgents, Rounds: 1}, start), nil
	}

	res := c.buildResult(opinions, agg, rounds)
	if settled {
		res.Status = core.StatusConsensus
	} else {
		if 2*len(res.DissentingOpinions) > len(opinions) {
			res.Status = core.StatusDisagreement
		} else {
			res.Status = core.StatusMajority
		}
		if conflicts, err := c.resolver.ResolveAll(opinions); err == nil {
			res.Conflicts = conflicts
		}
	}
	return c.finish(ctx, proposal, res, start), nil
}

// evaluateRound collects one opinion per evaluator, normalizing scores and
// stamping the round.
func (c *Coordinator) evaluateRound(ctx context.Context, evaluators []core.Evaluator, proposal *core.DesignProposal, ec core.EvaluationContext) []core.Opinion {
	replies := fanOut(ctx, c, "evaluate", evaluators, func(ctx context.Context, e core.Evaluator) (*core.Opinion, error) {
		return e.Evaluate(ctx, proposal, ec)
	})
	opinions := make([]core.Opinion, 0, len(replies))
	for _, r := range replies {
		if r.value == nil {
			c.logger.Warn("evaluator returned no opinion",
				"evaluator_id", r.evaluator.ID(), "specialty", r.evaluator.Specialty().String(), "operation", "evaluate")
			continue
		}
		op := *r.value
		op.Normalize()
		if op.EvaluatorID == "" {
			op.EvaluatorID = r.evaluator.ID()
		}
		if !op.Specialty.Valid() {
			op.Specialty = r.evaluator.Specialty()
		}
		op.Round = ec.Round
		opinions = append(opinions, op)
	}
	return opinions
}

// shareFeedback delivers every opinion to every active evaluator except its
// author. Each evaluator receives its feedback sequentially in one call slot.
func (c *Coordinator) shareFeedback(ctx context.Context, evaluators []core.Evaluator, opinions []core.Opinion) {
	fanOut(ctx, c, "receive_feedback", evaluators, func(ctx context.Context, e core.Evaluator) (struct{}, error) {
		for _, op := range opinions {
			if op.EvaluatorID == e.ID() {
				continue
			}
			if err := e.ReceiveFeedback(ctx, op); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
}

type aggregate struct {
	score    float64
	variance float64
}

// aggregate computes the weighted mean score and the population variance of
// the individual scores about their arithmetic mean.
func (c *Coordinator) aggregate(opinions []core.Opinion) aggregate {
	var wsum, wtotal, sum float64
	for _, op := range opinions {
		w := c.expertise(op.EvaluatorID)
		if op.HasCriticalIssues() {
			w *= c.config.CriticalIssueWeight
		}
		wsum += w * op.Score
		wtotal += w
		sum += op.Score
	}

	mean := sum / float64(len(opinions))
	var sq float64
	for _, op := range opinions {
		d := op.Score - mean
		sq += d * d
	}

	score := mean
	if wtotal > 0 {
		score = wsum / wtotal
	}
	return aggregate{score: core.Clamp01(score), variance: sq / float64(len(opinions))}
}

// expertise returns the registered evaluator's weight, or DefaultExpertise
// when the evaluator is unknown or reports a weight that is not positive or NaN.
func (c *Coordinator) expertise(evaluatorID string) float64 {
	e, ok := c.Evaluator(evaluatorID)
	if !ok {
		return c.config.DefaultExpertise
	}
	w := e.ExpertiseWeight()
	if w <= 0 || math.IsNaN(w) {
		return c.config.DefaultExpertise
	}
	return core.Clamp01(w)
}

func (c *Coordinator) buildResult(opinions []core.Opinion, agg aggregate, rounds int) *core.ConsensusResult {
	res := &core.ConsensusResult{
		Score:    agg.score,
		Rounds:   rounds,
		Variance: agg.variance,
		Opinions: opinions,
	}

	seenIssue := map[string]bool{}
	seenStrength := map[string]bool{}
	critical := false
	for _, op := range opinions {
		for _, is := range op.Issues {
			if !seenIssue[is.Key()] {
				seenIssue[is.Key()] = true
				res.Issues = append(res.Issues, is)
			}
		}
		for _, s := range op.Strengths {
			if !seenStrength[s] {
				seenStrength[s] = true
				res.Strengths = append(res.Strengths, s)
			}
		}
		if op.HasCriticalIssues() {
			critical = true
		}
		if d := op.Score - agg.score; d > c.config.DissentThreshold || -d > c.config.DissentThreshold {
			res.DissentingOpinions = append(res.DissentingOpinions, op)
		}
	}

	res.Approved = agg.score >= c.config.ConsensusThreshold && !critical
	return res
}

// finish stamps the duration, logs and publishes the result.
func (c *Coordinator) finish(ctx context.Context, proposal *core.DesignProposal, res *core.ConsensusResult, start time.Time) *core.ConsensusResult {
	res.Duration = time.Since(start)
	c.logger.Info("consensus completed",
		"proposal_id", proposal.ID(), "status", string(res.Status), "score", res.Score,
		"approved", res.Approved, "rounds", res.Rounds, "opinions", len(res.Opinions))

	c.bus.Publish(ctx, bus.Message{
		Topic:    bus.TopicConsensusCompleted,
		SenderID: SenderID,
		Payload:  *res,
		Metadata: map[string]string{"proposal_id": proposal.ID(), "status": string(res.Status)},
	})
	return res
}
