package evaluator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stingtools/council/core"
	"github.com/stingtools/council/logging"
	"github.com/stingtools/council/model"
)

// ErrMalformedReply is returned when a model reply holds no decodable JSON.
var ErrMalformedReply = errors.New("malformed model reply")

// ModelEvaluatorOptions configures a ModelEvaluator.
type ModelEvaluatorOptions struct {
	ID              string
	Name            string
	ExpertiseWeight float64
	// Instruction is appended to the generated role prompt.
	Instruction string
	MaxTokens   int64
	Temperature *float64
	// MaxFeedback caps the peer opinions quoted in one prompt, newest kept.
	MaxFeedback int
	Logger      logging.Logger
}

// DefaultModelEvaluatorOptions are applied before option functions.
var DefaultModelEvaluatorOptions = ModelEvaluatorOptions{
	ExpertiseWeight: 0.7,
	MaxTokens:       1024,
	MaxFeedback:     8,
}

// ModelEvaluator asks a language model to act as a specialist reviewer.
type ModelEvaluator struct {
	*Base
	llm    model.Model
	opts   ModelEvaluatorOptions
	logger logging.Logger
}

var _ core.Evaluator = (*ModelEvaluator)(nil)

// NewModelEvaluator creates a model-backed evaluator for specialty.
func NewModelEvaluator(specialty core.Specialty, llm model.Model, optFns ...func(o *ModelEvaluatorOptions)) *ModelEvaluator {
	opts := DefaultModelEvaluatorOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxFeedback < 0 {
		opts.MaxFeedback = 0
	}
	return &ModelEvaluator{
		Base:   NewBase(opts.ID, opts.Name, specialty, opts.ExpertiseWeight),
		llm:    llm,
		opts:   opts,
		logger: logging.OrNoOp(opts.Logger),
	}
}

// Model returns the underlying model.
func (e *ModelEvaluator) Model() model.Model { return e.llm }

const opinionContract = `Reply with one JSON object and nothing else:
{"score": <0..1>, "confidence": <0..1>, "summary": "<text>", "strengths": ["<text>"],
 "issues": [{"code": "<id>", "description": "<text>", "severity": "Info|Minor|Warning|Major|Error|Critical", "domain": "<tag>", "location": "<where>"}],
 "aspect_scores": {"<domain>": <0..1>}}`

const suggestionContract = `Reply with one JSON array and nothing else:
[{"title": "<text>", "description": "<text>", "category": "<domain>", "confidence": <0..1>, "impact": <0..1>,
  "priority": "Low|Medium|High|Urgent",
  "modifications": [{"kind": "add_element|update_element|remove_element|set_parameter", "element_id": "<id>",
    "element": {"id": "<id>", "type": "<type>", "name": "<name>", "properties": {}}, "parameter": "<name>", "value": <any>}]}]`

const validationContract = `Reply with one JSON object and nothing else:
{"valid": <true|false>, "issues": [{"code": "<id>", "description": "<text>", "severity": "Info|Minor|Warning|Major|Error|Critical", "domain": "<tag>"}], "warnings": ["<text>"]}`

func (e *ModelEvaluator) system() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a %s specialist reviewing building design proposals.", e.Name(), e.Specialty())
	if d := e.Specialty().Domains(); len(d) > 0 {
		fmt.Fprintf(&b, " You have authority over: %s.", strings.Join(d, ", "))
	}
	if e.opts.Instruction != "" {
		b.WriteString(" ")
		b.WriteString(e.opts.Instruction)
	}
	return b.String()
}

func (e *ModelEvaluator) generate(ctx context.Context, operation, prompt string) (string, error) {
	resp, err := e.llm.Generate(ctx, model.Request{
		System:      e.system(),
		Prompt:      prompt,
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", e.ID(), operation, err)
	}
	if resp.Usage != nil {
		e.logger.Debug("model call",
			"evaluator_id", e.ID(),
			"operation", operation,
			"model", e.llm.Info().Name,
			"total_tokens", resp.Usage.TotalTokens,
		)
	}
	return resp.Text, nil
}

// Evaluate implements core.Evaluator.
func (e *ModelEvaluator) Evaluate(ctx context.Context, proposal *core.DesignProposal, ec core.EvaluationContext) (*core.Opinion, error) {
	if proposal == nil {
		return nil, core.ErrNilProposal
	}
	var b strings.Builder
	b.WriteString("Evaluate the design proposal below from your specialty's point of view.\n")
	if ec.Round > 0 {
		fmt.Fprintf(&b, "This is consensus round %d.\n", ec.Round)
	}
	writeProposal(&b, proposal)
	writeJSONSection(&b, "Context parameters", ec.Parameters)
	writeJSONSection(&b, "Shared session state", ec.SharedState)
	peers := e.TakeFeedback()
	e.writeFeedback(&b, peers)
	b.WriteString("\n")
	b.WriteString(opinionContract)

	text, err := e.generate(ctx, "evaluate", b.String())
	if err != nil {
		return nil, err
	}

	var reply struct {
		Score        float64            `json:"score"`
		Confidence   *float64           `json:"confidence"`
		Summary      string             `json:"summary"`
		Strengths    []string           `json:"strengths"`
		Issues       []core.Issue       `json:"issues"`
		AspectScores map[string]float64 `json:"aspect_scores"`
	}
	if err := decodeReply(text, '{', '}', &reply); err != nil {
		return nil, fmt.Errorf("%s evaluate: %w", e.ID(), err)
	}
	confidence := 0.5
	if reply.Confidence != nil {
		confidence = *reply.Confidence
	}

	op := core.NewOpinion(e, reply.Score, confidence)
	op.Round = ec.Round
	op.Summary = reply.Summary
	op.Strengths = reply.Strengths
	op.Issues = reply.Issues
	for k, v := range reply.AspectScores {
		op.AspectScores[k] = core.Clamp01(v)
	}
	return op, nil
}

// Suggest implements core.Evaluator.
func (e *ModelEvaluator) Suggest(ctx context.Context, sc core.SuggestionContext) ([]core.Suggestion, error) {
	if sc.Proposal == nil {
		return nil, core.ErrNilProposal
	}
	var b strings.Builder
	b.WriteString("Suggest concrete improvements to the design proposal below within your specialty.\n")
	writeProposal(&b, sc.Proposal)
	if c := sc.Consensus; c != nil {
		fmt.Fprintf(&b, "\nCurrent consensus: %s, score %.2f, approved %t.\n", c.Status, c.Score, c.Approved)
		for _, is := range c.Issues {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", is.Severity, is.Description, is.DomainOrDefault())
		}
	}
	writeJSONSection(&b, "Shared session state", sc.SharedState)
	b.WriteString("\n")
	b.WriteString(suggestionContract)

	text, err := e.generate(ctx, "suggest", b.String())
	if err != nil {
		return nil, err
	}

	var out []core.Suggestion
	if err := decodeReply(text, '[', ']', &out); err != nil {
		var wrapped struct {
			Suggestions []core.Suggestion `json:"suggestions"`
		}
		if werr := decodeReply(text, '{', '}', &wrapped); werr != nil {
			return nil, fmt.Errorf("%s suggest: %w", e.ID(), err)
		}
		out = wrapped.Suggestions
	}
	for i := range out {
		out[i].EvaluatorID = e.ID()
		out[i].Specialty = e.Specialty()
	}
	return out, nil
}

// Validate implements core.Evaluator.
func (e *ModelEvaluator) Validate(ctx context.Context, action core.Action) (core.ValidationResult, error) {
	var b strings.Builder
	b.WriteString("Decide whether the action below is acceptable within your specialty.\n")
	if raw, err := json.MarshalIndent(action, "", "  "); err == nil {
		fmt.Fprintf(&b, "\nAction:\n%s\n", raw)
	}
	if action.Proposal != nil {
		writeProposal(&b, action.Proposal)
	}
	b.WriteString("\n")
	b.WriteString(validationContract)

	text, err := e.generate(ctx, "validate", b.String())
	if err != nil {
		return core.ValidationResult{}, err
	}
	var res core.ValidationResult
	if err := decodeReply(text, '{', '}', &res); err != nil {
		return core.ValidationResult{}, fmt.Errorf("%s validate: %w", e.ID(), err)
	}
	return res, nil
}

func (e *ModelEvaluator) writeFeedback(b *strings.Builder, peers []core.Opinion) {
	if len(peers) == 0 || e.opts.MaxFeedback == 0 {
		return
	}
	if len(peers) > e.opts.MaxFeedback {
		peers = peers[len(peers)-e.opts.MaxFeedback:]
	}
	b.WriteString("\nPeer opinions from the previous round (reconsider your score in their light):\n")
	for _, op := range peers {
		fmt.Fprintf(b, "- %s (%s): score %.2f, confidence %.2f.", op.EvaluatorName, op.Specialty, op.Score, op.Confidence)
		if op.Summary != "" {
			fmt.Fprintf(b, " %s", op.Summary)
		}
		for _, is := range op.Issues {
			fmt.Fprintf(b, " [%s %s]", is.Severity, is.Key())
		}
		b.WriteString("\n")
	}
}

func writeProposal(b *strings.Builder, p *core.DesignProposal) {
	fmt.Fprintf(b, "\nProposal %q (%s), version %d.\n", p.Name(), p.ID(), p.Version())
	if d := p.Description(); d != "" {
		fmt.Fprintf(b, "%s\n", d)
	}
	snap := p.Snapshot()
	raw, err := json.MarshalIndent(struct {
		Elements   []core.Element `json:"elements"`
		Parameters map[string]any `json:"parameters"`
	}{snap.Elements, snap.Parameters}, "", "  ")
	if err != nil {
		raw = []byte(fmt.Sprintf("%+v", snap))
	}
	fmt.Fprintf(b, "%s\n", raw)
}

func writeJSONSection(b *strings.Builder, title string, v map[string]any) {
	if len(v) == 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(b, "\n%s: %s\n", title, raw)
}

// decodeReply decodes the outermost openCh..closeCh span of text into v, which
// tolerates prose or code fences around the JSON.
func decodeReply(text string, openCh, closeCh byte, v any) error {
	start := strings.IndexByte(text, openCh)
	end := strings.LastIndexByte(text, closeCh)
	if start < 0 || end <= start {
		return fmt.Errorf("%w: no JSON %c...%c found", ErrMalformedReply, openCh, closeCh)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	return nil
}
