package classify

import (
	"context"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/mailwatch/internal/mail"
)

// Mode selects the classification strategy.
type Mode string

const (
	// ModeRule uses only the keyword scorer.
	ModeRule Mode = "rule"

	// ModeLLM asks the semantic backend first and falls back to the
	// keyword scorer on error or an ambiguous answer.
	ModeLLM Mode = "llm"
)

// Completer is the single-shot LLM backend used in ModeLLM. One external
// call per invocation, no retries; implementations never fall back.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Hooks receives classification events for instrumentation.
// The zero value is inert.
type Hooks struct {
	OnClassify func(mode string, priority mail.Priority)
	OnFallback func(reason string)
}

// Classifier annotates messages with a priority label. Classification
// never fails upward: the worst case is a deterministic rule decision, so
// every message receives exactly one of the two labels.
type Classifier struct {
	mode   Mode
	scorer *Scorer
	llm    Completer
	logger log.Logger
	hooks  Hooks
}

// NewClassifier creates a classifier. The scorer is always required since
// it is the fallback for ModeLLM; llm may be nil only in ModeRule.
func NewClassifier(mode Mode, scorer *Scorer, llm Completer, logger log.Logger, hooks Hooks) *Classifier {
	if logger == nil {
		logger = log.Nop()
	}
	if scorer == nil {
		panic(xerrors.New("scorer is required"))
	}
	if mode == ModeLLM && llm == nil {
		panic(xerrors.New("llm completer is required in llm mode"))
	}
	return &Classifier{
		mode:   mode,
		scorer: scorer,
		llm:    llm,
		logger: logger,
		hooks:  hooks,
	}
}

// Classify sets the priority label on a single message.
func (c *Classifier) Classify(ctx context.Context, m *mail.Message) {
	if c.mode == ModeLLM {
		m.Priority = c.classifyLLM(ctx, m)
	} else {
		m.Priority = c.classifyRule(m)
		c.emit(string(ModeRule), m.Priority)
	}
	c.logger.Info(ctx, "classified message",
		"id", m.ID,
		"subject", m.Subject,
		"priority", m.Priority,
		"mode", c.mode,
	)
}

// ClassifyBatch classifies messages independently, preserving input order.
func (c *Classifier) ClassifyBatch(ctx context.Context, msgs []*mail.Message) []*mail.Message {
	for _, m := range msgs {
		c.Classify(ctx, m)
	}
	return msgs
}

func (c *Classifier) classifyRule(m *mail.Message) mail.Priority {
	if c.scorer.IsHighPriority(m.Subject + " " + m.Body) {
		return mail.PriorityHigh
	}
	return mail.PriorityLow
}

// classifyLLM asks the semantic backend and falls back to the keyword
// scorer on error or an ambiguous answer. The fallback is the designed
// recovery path; backend failures never propagate past this method.
func (c *Classifier) classifyLLM(ctx context.Context, m *mail.Message) mail.Priority {
	raw, err := c.llm.Complete(ctx, BuildPrompt(m.Subject, m.Body))
	if err != nil {
		c.logger.Warn(ctx, "llm classification failed, falling back to rules",
			"id", m.ID, "error", err)
		c.fallback("error")
		p := c.classifyRule(m)
		c.emit(string(ModeRule), p)
		return p
	}

	p, ok := ParseLabel(raw)
	if !ok {
		c.logger.Warn(ctx, "llm response ambiguous, falling back to rules",
			"id", m.ID, "response", raw)
		c.fallback("ambiguous")
		p = c.classifyRule(m)
		c.emit(string(ModeRule), p)
		return p
	}

	c.emit(string(ModeLLM), p)
	return p
}

func (c *Classifier) emit(mode string, p mail.Priority) {
	if c.hooks.OnClassify != nil {
		c.hooks.OnClassify(mode, p)
	}
}

func (c *Classifier) fallback(reason string) {
	if c.hooks.OnFallback != nil {
		c.hooks.OnFallback(reason)
	}
}
