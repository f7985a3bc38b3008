// Package evaluation replays golden cases against an answer pipeline through
// the action bridge, grades every answer and verifies that re-asking the
// first sourced question reproduces the same answer.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/namel3ss/evalgate/internal/bridge"
	"github.com/namel3ss/evalgate/internal/golden"
	"github.com/namel3ss/evalgate/internal/graders"
	"github.com/namel3ss/evalgate/internal/models"
)

// answerLookupLimit reads only the newest Answer record. Retrieval candidates
// are listed in full because one ask may write any number of them.
const answerLookupLimit = 1

// ErrNoAnswer is returned when the pipeline finished an ask without leaving a
// new Answer record behind.
var ErrNoAnswer = errors.New("no answer record")

// Asset is a file uploaded into the pipeline before the cases run.
type Asset struct {
	Name        string
	ContentType string
	Path        string
}

// SampleAssets returns the sample documents found under assetsDir, in upload
// order. Missing files are skipped.
func SampleAssets(assetsDir string) []Asset {
	samples := []Asset{
		{Name: "sample.pdf", ContentType: "application/pdf"},
		{Name: "sample.md", ContentType: "text/markdown"},
		{Name: "sample.txt", ContentType: "text/plain"},
	}

	var out []Asset
	for _, a := range samples {
		a.Path = filepath.Join(assetsDir, a.Name)
		if _, err := os.Stat(a.Path); err != nil {
			slog.Debug("Skipping missing sample asset", "path", a.Path)
			continue
		}
		out = append(out, a)
	}
	return out
}

// Runner evaluates golden cases. It is strictly sequential: every action call
// receives the state returned by the previous one.
type Runner struct {
	bridge  bridge.Bridge
	store   bridge.RecordStore
	graders []graders.Grader
	offline bool

	listeners []ProgressListener
}

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventSeedComplete   EventType = "seed_complete"
	EventCaseStart      EventType = "case_start"
	EventCaseComplete   EventType = "case_complete"
	EventGraderResult   EventType = "grader_result"
	EventReplayComplete EventType = "replay_complete"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType  EventType
	CaseID     string
	CaseNum    int
	TotalCases int
	Passed     bool
	Details    map[string]any
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithOffline sets the offline flag sent with every question.
func WithOffline(offline bool) RunnerOption {
	return func(r *Runner) {
		r.offline = offline
	}
}

// WithThemePassScore sets the per-case pass score of the theme grader. It
// only affects progress reporting; helpfulness is gated on the run mean.
func WithThemePassScore(score float64) RunnerOption {
	return func(r *Runner) {
		for i, g := range r.graders {
			if g.Kind() != models.GraderKindTheme {
				continue
			}
			if tg, err := graders.Create(models.GraderKindTheme, g.Name(), map[string]any{"pass_score": score}); err == nil {
				r.graders[i] = tg
			} else {
				slog.Warn("Ignoring theme pass score", "score", score, "error", err)
			}
		}
	}
}

// NewRunner creates a runner that drives b and reads answers back from store.
func NewRunner(b bridge.Bridge, store bridge.RecordStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		bridge:  b,
		store:   store,
		graders: graders.Default(),
		offline: true,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// OnProgress registers a progress listener
func (r *Runner) OnProgress(listener ProgressListener) {
	r.listeners = append(r.listeners, listener)
}

func (r *Runner) notifyProgress(event ProgressEvent) {
	for _, listener := range r.listeners {
		listener(event)
	}
}

// Result is the outcome of evaluating every case.
type Result struct {
	Cases                 []models.CaseResult
	DeterministicReplayOK bool
	// State is the conversation state after the last action.
	State bridge.State
}

type actionIDs struct {
	upload, sync, ingest, ask string
}

func (r *Runner) resolveActions(ctx context.Context) (actionIDs, error) {
	manifest, err := r.bridge.Manifest(ctx)
	if err != nil {
		return actionIDs{}, fmt.Errorf("loading manifest: %w", err)
	}

	var ids actionIDs
	lookups := []struct {
		dst       *string
		typ, flow string
	}{
		{&ids.upload, bridge.ActionTypeUploadSelect, ""},
		{&ids.sync, bridge.ActionTypeCallFlow, bridge.FlowSyncLibrary},
		{&ids.ingest, bridge.ActionTypeCallFlow, bridge.FlowIngestSelected},
		{&ids.ask, bridge.ActionTypeCallFlow, bridge.FlowAskQuestion},
	}
	for _, l := range lookups {
		id, err := bridge.FindAction(manifest, l.typ, l.flow)
		if err != nil {
			return actionIDs{}, err
		}
		*l.dst = id
	}
	return ids, nil
}

// Run uploads assets, syncs and ingests the library, then evaluates cases in
// id order and verifies replay determinism on the first sourced case.
func (r *Runner) Run(ctx context.Context, cases []golden.Case, assets []Asset) (*Result, error) {
	ids, err := r.resolveActions(ctx)
	if err != nil {
		return nil, err
	}

	state, err := r.seed(ctx, ids, assets)
	if err != nil {
		return nil, err
	}
	r.notifyProgress(ProgressEvent{
		EventType:  EventSeedComplete,
		TotalCases: len(cases),
		Details:    map[string]any{"assets": len(assets)},
	})

	return r.evaluate(ctx, ids.ask, cases, state)
}

func (r *Runner) invoke(ctx context.Context, actionID string, payload bridge.Payload, state bridge.State) (bridge.State, error) {
	resp, err := r.bridge.Invoke(ctx, actionID, payload, state)
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.State == nil {
		return state, nil
	}
	return resp.State, nil
}

func (r *Runner) seed(ctx context.Context, ids actionIDs, assets []Asset) (bridge.State, error) {
	state := bridge.State{}
	var err error

	for _, a := range assets {
		payload := bridge.Payload{"name": a.Name, "content_type": a.ContentType, "path": a.Path}
		if state, err = r.invoke(ctx, ids.upload, payload, state); err != nil {
			return nil, fmt.Errorf("uploading %s: %w", a.Name, err)
		}
	}

	if state, err = r.invoke(ctx, ids.sync, bridge.Payload{}, state); err != nil {
		return nil, fmt.Errorf("syncing library: %w", err)
	}
	if state, err = r.invoke(ctx, ids.ingest, bridge.Payload{}, state); err != nil {
		return nil, fmt.Errorf("ingesting selected sources: %w", err)
	}
	return state, nil
}

type replayAnchor struct {
	question   string
	answerText string
	citations  []string
}

func (r *Runner) evaluate(ctx context.Context, askID string, cases []golden.Case, state bridge.State) (*Result, error) {
	sorted := (&golden.Dataset{Cases: cases}).Sorted()
	results := make([]models.CaseResult, 0, len(sorted))
	var anchor *replayAnchor

	for i := range sorted {
		c := &sorted[i]
		r.notifyProgress(ProgressEvent{EventType: EventCaseStart, CaseID: c.ID, CaseNum: i + 1, TotalCases: len(sorted)})

		result, next, err := r.evaluateCase(ctx, askID, c, state)
		if err != nil {
			return nil, err
		}
		state = next
		results = append(results, result)

		r.notifyProgress(ProgressEvent{
			EventType:  EventCaseComplete,
			CaseID:     c.ID,
			CaseNum:    i + 1,
			TotalCases: len(sorted),
			Passed:     casePassed(result),
			Details:    map[string]any{"theme_score": result.ThemeScore, "answer_mode": result.AnswerMode},
		})

		if anchor == nil && !c.ExpectNoSource {
			anchor = &replayAnchor{question: result.Question, answerText: result.AnswerText, citations: result.Citations}
		}
	}

	replayOK := true
	if anchor != nil {
		var err error
		replayOK, state, err = r.verifyReplay(ctx, askID, anchor, state)
		if err != nil {
			return nil, err
		}
	}
	r.notifyProgress(ProgressEvent{EventType: EventReplayComplete, TotalCases: len(sorted), Passed: replayOK})

	return &Result{Cases: results, DeterministicReplayOK: replayOK, State: state}, nil
}

func (r *Runner) evaluateCase(ctx context.Context, askID string, c *golden.Case, state bridge.State) (models.CaseResult, bridge.State, error) {
	question := strings.TrimSpace(c.Question)
	if question == "" {
		return models.CaseResult{}, nil, fmt.Errorf("case %s has empty question", c.ID)
	}

	watermark, err := r.answerWatermark(ctx)
	if err != nil {
		return models.CaseResult{}, nil, fmt.Errorf("case %s: %w", c.ID, err)
	}

	next, err := r.invoke(ctx, askID, bridge.Payload{"message": question, "offline": r.offline}, state)
	if err != nil {
		return models.CaseResult{}, nil, fmt.Errorf("case %s: asking question: %w", c.ID, err)
	}

	answer, err := r.answerAfter(ctx, watermark)
	if err != nil {
		return models.CaseResult{}, nil, fmt.Errorf("case %s: %w", c.ID, err)
	}

	selected, err := r.selectedCandidates(ctx, answer.ID)
	if err != nil {
		return models.CaseResult{}, nil, fmt.Errorf("case %s: %w", c.ID, err)
	}

	chatCitations, err := next.ChatCitations()
	if err != nil {
		return models.CaseResult{}, nil, fmt.Errorf("case %s: %w", c.ID, err)
	}

	gc := &graders.Context{
		Case:                 c,
		AnswerMode:           next.AnswerMode(),
		AnswerText:           answer.AnswerText,
		Citations:            answer.Citations,
		SelectedCandidateIDs: selected,
		ChatCitations:        chatCitations,
	}

	result := models.CaseResult{
		ID:                   c.ID,
		Question:             question,
		ExpectNoSource:       c.ExpectNoSource,
		AnswerMode:           gc.AnswerMode,
		AnswerText:           answer.AnswerText,
		Citations:            answer.Citations,
		SelectedCandidateIDs: selected,
	}
	if err := r.runGraders(ctx, gc, &result); err != nil {
		return models.CaseResult{}, nil, fmt.Errorf("case %s: %w", c.ID, err)
	}
	return result, next, nil
}

func (r *Runner) runGraders(ctx context.Context, gc *graders.Context, result *models.CaseResult) error {
	for _, g := range r.graders {
		res, err := g.Grade(ctx, gc)
		if err != nil {
			return fmt.Errorf("failed to run grader %s: %w", g.Name(), err)
		}

		switch g.Kind() {
		case models.GraderKindCitationCoverage:
			result.CitationCoverage = res.Passed
		case models.GraderKindCitationCorrectness:
			result.CitationCorrectness = res.Passed
		case models.GraderKindCitationConstraints:
			result.ExpectedCitationConstraintsOK = res.Passed
		case models.GraderKindTheme:
			result.ThemeScore = res.Score
		case models.GraderKindNoSource:
			result.NoSourceBehaviorOK = res.Passed
		}

		slog.Debug("Grader result", "case", result.ID, "grader", res.Name, "passed", res.Passed, "feedback", res.Feedback)
		r.notifyProgress(ProgressEvent{
			EventType: EventGraderResult,
			CaseID:    result.ID,
			Passed:    res.Passed,
			Details:   map[string]any{"grader": res.Name, "score": res.Score, "feedback": res.Feedback},
		})
	}
	return nil
}

// answerWatermark returns the id of the newest Answer record, or 0 when the
// store holds none.
func (r *Runner) answerWatermark(ctx context.Context) (int, error) {
	rec, ok, err := bridge.LatestRecord(ctx, r.store, bridge.SchemaAnswer, answerLookupLimit)
	if err != nil || !ok {
		return 0, err
	}
	answer, err := bridge.DecodeAnswer(rec)
	if err != nil {
		return 0, err
	}
	return answer.ID, nil
}

// answerAfter returns the newest Answer record. An ask that left no record
// newer than watermark fails with ErrNoAnswer instead of reusing an older
// answer.
func (r *Runner) answerAfter(ctx context.Context, watermark int) (bridge.AnswerRecord, error) {
	rec, ok, err := bridge.LatestRecord(ctx, r.store, bridge.SchemaAnswer, answerLookupLimit)
	if err != nil {
		return bridge.AnswerRecord{}, err
	}
	if !ok {
		return bridge.AnswerRecord{}, ErrNoAnswer
	}
	answer, err := bridge.DecodeAnswer(rec)
	if err != nil {
		return bridge.AnswerRecord{}, err
	}
	if answer.ID <= watermark {
		return bridge.AnswerRecord{}, fmt.Errorf("%w: newest answer %d predates the ask", ErrNoAnswer, answer.ID)
	}
	return answer, nil
}

// selectedCandidates returns the chunk ids retrieval selected for answerID, in
// record order.
func (r *Runner) selectedCandidates(ctx context.Context, answerID int) ([]string, error) {
	rows, err := r.store.ListRecords(ctx, bridge.SchemaRetrievalCandidate, 0)
	if err != nil {
		return nil, fmt.Errorf("listing %s records: %w", bridge.SchemaRetrievalCandidate, err)
	}

	selected := []string{}
	for _, row := range rows {
		cand, err := bridge.DecodeCandidate(row)
		if err != nil {
			return nil, err
		}
		if cand.QueryID != answerID || cand.Decision != bridge.DecisionSelected || cand.ChunkID == "" {
			continue
		}
		selected = append(selected, cand.ChunkID)
	}
	return selected, nil
}

// verifyReplay asks the anchor question again and compares the new answer's
// text and ordered citations with the captured ones.
func (r *Runner) verifyReplay(ctx context.Context, askID string, anchor *replayAnchor, state bridge.State) (bool, bridge.State, error) {
	watermark, err := r.answerWatermark(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("replaying anchor question: %w", err)
	}

	next, err := r.invoke(ctx, askID, bridge.Payload{"message": anchor.question, "offline": r.offline}, state)
	if err != nil {
		return false, nil, fmt.Errorf("replaying anchor question: %w", err)
	}

	answer, err := r.answerAfter(ctx, watermark)
	if err != nil {
		return false, nil, fmt.Errorf("replaying anchor question: %w", err)
	}

	ok := answer.AnswerText == anchor.answerText && slices.Equal(answer.Citations, anchor.citations)
	if !ok {
		slog.Warn("Replay produced a different answer", "question", anchor.question)
	}
	return ok, next, nil
}

func casePassed(r models.CaseResult) bool {
	if r.ExpectNoSource {
		return r.NoSourceBehaviorOK
	}
	return r.CitationCoverage && r.CitationCorrectness && r.ExpectedCitationConstraintsOK
}
