package coordinator

import (
	"context"
	"errors"
	"testing"

	"github.com/stingtools/council/core"
	"github.com/stingtools/council/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAction(t *testing.T) {
	overload := core.Issue{Code: "overload", Description: "slab overloaded", Severity: core.SeverityError, Domain: "LoadBearing"}
	egress := core.Issue{Code: "egress", Description: "exit blocked", Severity: core.SeverityCritical, Domain: "Egress"}

	tests := []struct {
		name       string
		evaluators func() []core.Evaluator
		valid      bool
		issues     []string
		warnings   []string
	}{
		{
			name:       "no evaluators",
			evaluators: func() []core.Evaluator { return nil },
			valid:      true,
		},
		{
			name: "all valid",
			evaluators: func() []core.Evaluator {
				return []core.Evaluator{
					testutil.NewFakeEvaluator("a", core.SpecialtyCost),
					testutil.NewFakeEvaluator("b", core.SpecialtyFire),
				}
			},
			valid: true,
		},
		{
			name: "single rejection invalidates",
			evaluators: func() []core.Evaluator {
				return []core.Evaluator{
					testutil.NewFakeEvaluator("a", core.SpecialtyCost),
					testutil.NewFakeEvaluator("b", core.SpecialtyStructural).
						WithValidation(core.ValidationResult{Valid: false, Issues: []core.Issue{overload}}),
				}
			},
			valid:  false,
			issues: []string{"overload"},
		},
		{
			name: "issues and warnings are unioned",
			evaluators: func() []core.Evaluator {
				return []core.Evaluator{
					testutil.NewFakeEvaluator("a", core.SpecialtyStructural).
						WithValidation(core.ValidationResult{Valid: false, Issues: []core.Issue{overload}, Warnings: []string{"check deflection"}}),
					testutil.NewFakeEvaluator("b", core.SpecialtyFire).
						WithValidation(core.ValidationResult{Valid: false, Issues: []core.Issue{overload, egress}, Warnings: []string{"check deflection", "review exits"}}),
				}
			},
			valid:    false,
			issues:   []string{"overload", "egress"},
			warnings: []string{"check deflection", "review exits"},
		},
		{
			name: "failing evaluator is skipped",
			evaluators: func() []core.Evaluator {
				return []core.Evaluator{
					testutil.NewFakeEvaluator("a", core.SpecialtyCost),
					testutil.NewFakeEvaluator("b", core.SpecialtySafety).WithValidateError(errors.New("unreachable")),
				}
			},
			valid: true,
		},
	}

	for _, parallel := range []bool{false, true} {
		for _, tt := range tests {
			name := tt.name
			if parallel {
				name += " parallel"
			}
			t.Run(name, func(t *testing.T) {
				c := New(func(o *Options) { o.Config.ParallelValidation = parallel })
				for _, e := range tt.evaluators() {
					require.NoError(t, c.Register(e))
				}

				res, err := c.ValidateAction(context.Background(), core.Action{Type: "move_wall", Target: "w1"})
				require.NoError(t, err)
				assert.Equal(t, tt.valid, res.Valid)

				var codes []string
				for _, is := range res.Issues {
					codes = append(codes, is.Code)
				}
				assert.Equal(t, tt.issues, codes)
				assert.Equal(t, tt.warnings, res.Warnings)
			})
		}
	}
}

func TestValidateAction_QueriesActiveEvaluatorsOnce(t *testing.T) {
	a := testutil.NewFakeEvaluator("a", core.SpecialtyCost)
	idle := testutil.NewFakeEvaluator("idle", core.SpecialtyFire)
	idle.SetActive(false)
	c := New()
	require.NoError(t, c.Register(a))
	require.NoError(t, c.Register(idle))

	_, err := c.ValidateAction(context.Background(), core.Action{Type: "noop"})
	require.NoError(t, err)
	assert.Equal(t, 1, a.ValidateCalls())
	assert.Equal(t, 0, idle.ValidateCalls())
}

func TestValidateAction_CancelledContext(t *testing.T) {
	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ValidateAction(ctx, core.Action{Type: "noop"})
	assert.ErrorIs(t, err, context.Canceled)
}
