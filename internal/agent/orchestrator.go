// Package agent drives the conversational form-authoring pipeline: structure
// description, action generation, execution, QA critique, and reporting.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/faradid/formforge/internal/executor"
	"github.com/faradid/formforge/internal/gemini"
	"github.com/faradid/formforge/internal/report"
	"github.com/faradid/formforge/internal/schema"
	"github.com/faradid/formforge/internal/store"
)

// Store is the persistence surface the orchestrator reads and writes.
type Store interface {
	ListFormTypes(ctx context.Context, userID string) ([]store.FormType, error)
	ListRecords(ctx context.Context, userID string) ([]store.Record, error)
	ChatHistory(ctx context.Context, userID string) ([]store.ChatMessage, error)
	SaveChatMessage(ctx context.Context, userID, role string, messages []string) error
}

// Stats is the per-request token and request accounting.
type Stats struct {
	Requests         int `json:"requests"`
	InputTokens      int `json:"input_tokens"`
	OutputTokens     int `json:"output_tokens"`
	TotalTokens      int `json:"total_tokens"`
	ExamplesEstimate int `json:"examples_estimate"`
}

// Outcome is the final result of one pipeline run. Err is non-empty only
// when the pipeline failed outright; TextAnswer always carries something
// user-displayable.
type Outcome struct {
	TextAnswer string
	Success    bool
	Err        string
	Stats      Stats
}

// Orchestrator runs the five pipeline stages strictly sequentially. Later
// stages depend on the database state the earlier ones settled.
type Orchestrator struct {
	llm   gemini.Generator
	store Store
	exec  *executor.Executor
	usage *gemini.Usage
}

// New creates an orchestrator. The usage counters must be the same instance
// the LLM gateway reports into.
func New(llm gemini.Generator, store Store, exec *executor.Executor, usage *gemini.Usage) *Orchestrator {
	return &Orchestrator{llm: llm, store: store, exec: exec, usage: usage}
}

const failureMessage = "# ❌ خطا\n\nمتأسفانه خطایی رخ داد. لطفاً دوباره تلاش کنید."

// Handle runs the whole pipeline for one user message. Failures are turned
// into a localized failure answer rather than propagated, and still land in
// the chat log so the conversation stays consistent.
func (o *Orchestrator) Handle(ctx context.Context, userID, userInput string) Outcome {
	preReq, preIn, preOut := o.usage.Snapshot()

	text, success, err := o.run(ctx, userID, userInput)

	req, in, out := o.usage.Snapshot()
	stats := Stats{
		Requests:         req - preReq,
		InputTokens:      in - preIn,
		OutputTokens:     out - preOut,
		TotalTokens:      (in - preIn) + (out - preOut),
		ExamplesEstimate: ExamplesTokenEstimate,
	}

	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("pipeline failed")
		if saveErr := o.store.SaveChatMessage(ctx, userID, "assistant", []string{fmt.Sprintf("General error: %s", err)}); saveErr != nil {
			log.Warn().Err(saveErr).Msg("failed to persist error message")
		}
		return Outcome{TextAnswer: failureMessage, Success: false, Err: err.Error(), Stats: stats}
	}
	return Outcome{TextAnswer: text, Success: success, Stats: stats}
}

func (o *Orchestrator) run(ctx context.Context, userID, userInput string) (string, bool, error) {
	if err := o.store.SaveChatMessage(ctx, userID, "user", []string{userInput}); err != nil {
		return "", false, fmt.Errorf("save user message: %w", err)
	}

	pc, err := o.loadContext(ctx, userID, userInput)
	if err != nil {
		return "", false, err
	}

	// stage 1: free-text structure description, consumed only as context
	structure, err := o.llm.GenerateText(ctx, buildStructurePrompt(pc), 1)
	if err != nil {
		return "", false, fmt.Errorf("structure stage: %w", err)
	}
	log.Debug().Int("chars", len(structure)).Msg("structure description generated")

	// stage 2: strict-JSON action plan
	schemaPrompt := buildSchemaPrompt(pc, structure)
	env, schemaPrompt, err := o.generateActions(ctx, schemaPrompt)
	if err != nil {
		return "", false, fmt.Errorf("schema stage: %w", err)
	}
	actions := schema.SortActions(env.Actions)

	// stage 3: execution, with one regenerate-and-retry on batch abort
	steps := schema.StepMap{}
	var entries []report.Entry

	res, execErr := o.exec.Execute(ctx, userID, actions, steps, false)
	entries = append(entries, res.Entries...)
	success := res.Success
	if execErr != nil {
		log.Warn().Err(execErr).Msg("initial execution aborted, regenerating plan")
		entries = append(entries, report.Entry{
			Kind:    report.Error,
			Message: fmt.Sprintf("Initial execution failed: %s. Retrying with AI fix.", execErr),
		})
		env, _, err = o.generateActions(ctx, appendExecutionFailure(schemaPrompt, env, execErr.Error()))
		if err != nil {
			return "", false, fmt.Errorf("regeneration stage: %w", err)
		}
		actions = schema.SortActions(env.Actions)
		res, execErr = o.exec.Execute(ctx, userID, actions, steps, true)
		if execErr != nil {
			return "", false, fmt.Errorf("retry execution: %w", execErr)
		}
		entries = append(entries, res.Entries...)
		success = res.Success
	}

	midReport := report.Generate(entries)

	// stage 4: QA critique over fresh database state
	fresh, err := o.loadContext(ctx, userID, userInput)
	if err != nil {
		return "", false, err
	}
	qa := o.runQA(ctx, fresh, actions, steps, midReport)

	if len(qa.Fixes) > 0 && !qa.Validation.IsValid {
		log.Info().Int("fixes", len(qa.Fixes)).Strs("issues", qa.Validation.CriticalIssues).Msg("applying qa fixes")
		maxStep := steps.MaxStep()
		for _, a := range actions {
			if a.Step > maxStep {
				maxStep = a.Step
			}
		}
		fixes := make([]schema.Action, len(qa.Fixes))
		for i, fx := range qa.Fixes {
			fx.Step = maxStep + 1000 + i
			fixes[i] = fx
		}
		fixRes, fixErr := o.exec.Execute(ctx, userID, fixes, steps, true)
		entries = append(entries, fixRes.Entries...)
		if fixErr != nil {
			entries = append(entries, report.Entry{Kind: report.Error, Message: fmt.Sprintf("QA fix application failed: %s", fixErr)})
		} else {
			success = success && fixRes.Success
		}
	}

	// stage 5: finalize
	entries = append(entries, o.exec.ResolveRefs(ctx, userID, steps)...)
	final := report.Generate(entries)
	if err := o.store.SaveChatMessage(ctx, userID, "assistant", []string{final}); err != nil {
		return "", false, fmt.Errorf("save report: %w", err)
	}
	return final, success, nil
}

// generateActions issues the schema-stage call and, when the output fails
// structural validation, one corrective call with the errors fed back.
// Actions still invalid after the correction proceed to execution and fail
// individually there.
func (o *Orchestrator) generateActions(ctx context.Context, prompt string) (schema.ActionsEnvelope, string, error) {
	raw, err := o.llm.GenerateJSON(ctx, prompt, 2)
	if err != nil {
		return schema.ActionsEnvelope{}, prompt, err
	}
	env, parseErr := parseActionsEnvelope(raw)

	var errs []string
	var previous any = env
	if parseErr != nil {
		errs = []string{parseErr.Error()}
		previous = raw
	} else {
		errs = schema.ValidateActions(env.Actions)
	}
	if len(errs) == 0 {
		return env, prompt, nil
	}

	log.Warn().Strs("errors", errs).Msg("generated actions invalid, correcting once")
	prompt = appendStructureErrors(prompt, previous, errs)
	raw, err = o.llm.GenerateJSON(ctx, prompt, 2)
	if err != nil {
		return schema.ActionsEnvelope{}, prompt, err
	}
	env, parseErr = parseActionsEnvelope(raw)
	if parseErr != nil {
		return schema.ActionsEnvelope{}, prompt, parseErr
	}
	return env, prompt, nil
}

// runQA issues the critique call. A failed QA stage is never fatal: the
// pipeline proceeds as if the plan were valid.
func (o *Orchestrator) runQA(ctx context.Context, pc promptContext, executed []schema.Action, steps schema.StepMap, midReport string) schema.QAEnvelope {
	prompt := buildQAPrompt(pc, executed, steps, midReport)

	raw, err := o.llm.GenerateJSON(ctx, prompt, 3)
	if err != nil {
		log.Warn().Err(err).Msg("qa stage failed, skipping fixes")
		return schema.QAEnvelope{Validation: schema.QAVerdict{IsValid: true}}
	}
	qa, parseErr := parseQAEnvelope(raw)
	if parseErr != nil {
		log.Warn().Err(parseErr).Msg("qa output unparsable, skipping fixes")
		return schema.QAEnvelope{Validation: schema.QAVerdict{IsValid: true}}
	}

	if fixErrs := schema.ValidateActions(qa.Fixes); len(fixErrs) > 0 {
		log.Warn().Strs("errors", fixErrs).Msg("qa produced invalid fixes, retrying once")
		raw, err = o.llm.GenerateJSON(ctx, appendFixErrors(prompt, fixErrs), 3)
		if err != nil {
			return schema.QAEnvelope{Validation: schema.QAVerdict{IsValid: true}}
		}
		if retried, retryErr := parseQAEnvelope(raw); retryErr == nil {
			qa = retried
		}
	}
	return qa
}

func (o *Orchestrator) loadContext(ctx context.Context, userID, userInput string) (promptContext, error) {
	formTypes, err := o.store.ListFormTypes(ctx, userID)
	if err != nil {
		return promptContext{}, fmt.Errorf("load form types: %w", err)
	}
	records, err := o.store.ListRecords(ctx, userID)
	if err != nil {
		return promptContext{}, fmt.Errorf("load records: %w", err)
	}
	history, err := o.store.ChatHistory(ctx, userID)
	if err != nil {
		return promptContext{}, fmt.Errorf("load chat history: %w", err)
	}

	var b strings.Builder
	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, strings.Join(m.Messages, " "))
	}
	return promptContext{
		userInput:   userInput,
		chatHistory: b.String(),
		formTypes:   formTypes,
		records:     records,
	}, nil
}
