package evaluation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/namel3ss/evalgate/internal/bridge"
	"github.com/namel3ss/evalgate/internal/golden"
	"github.com/namel3ss/evalgate/internal/metrics"
	"github.com/namel3ss/evalgate/internal/models"
	"github.com/namel3ss/evalgate/internal/offline"
	"github.com/namel3ss/evalgate/internal/pipeline"
	"github.com/namel3ss/evalgate/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	actionUpload = "page.upload"
	actionSync   = "page.sync"
	actionIngest = "page.ingest"
	actionAsk    = "page.ask"
)

func testManifest() *bridge.Manifest {
	return &bridge.Manifest{Actions: map[string]bridge.Action{
		actionUpload: {ID: actionUpload, Type: bridge.ActionTypeUploadSelect},
		actionSync:   {ID: actionSync, Type: bridge.ActionTypeCallFlow, Flow: bridge.FlowSyncLibrary},
		actionIngest: {ID: actionIngest, Type: bridge.ActionTypeCallFlow, Flow: bridge.FlowIngestSelected},
		actionAsk:    {ID: actionAsk, Type: bridge.ActionTypeCallFlow, Flow: bridge.FlowAskQuestion},
	}}
}

func intPtr(v int) *int { return &v }

type fakeAnswer struct {
	text      string
	mode      string
	citations []string
	selected  []string
	chat      []any
	skip      bool
	// rejected adds that many rejected candidates after the selected ones.
	rejected int
}

// fakePipeline answers questions through a MockBridge and writes the records a
// real pipeline would into an in-memory store.
type fakePipeline struct {
	t        *testing.T
	store    *records.MemoryStore
	answer   func(question string, call int) fakeAnswer
	asks     map[string]int
	payloads []bridge.Payload
	uploads  []string
	calls    int
}

func newFakePipeline(t *testing.T, answer func(question string, call int) fakeAnswer) (*MockBridge, *fakePipeline) {
	t.Helper()

	ctrl := gomock.NewController(t)
	b := NewMockBridge(ctrl)
	f := &fakePipeline{t: t, store: records.NewMemoryStore(), answer: answer, asks: map[string]int{}}

	b.EXPECT().Manifest(gomock.Any()).Return(testManifest(), nil)
	b.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(f.invoke).AnyTimes()
	return b, f
}

func (f *fakePipeline) invoke(ctx context.Context, actionID string, payload bridge.Payload, state bridge.State) (*bridge.Response, error) {
	seen, _ := state["calls"].(int)
	require.Equal(f.t, f.calls, seen, "state from the previous call must be threaded through")
	f.calls++

	next := state.Clone()
	next["calls"] = f.calls

	switch actionID {
	case actionUpload:
		f.uploads = append(f.uploads, payload["name"].(string))
	case actionAsk:
		f.payloads = append(f.payloads, payload)
		question := payload["message"].(string)
		a := f.answer(question, f.asks[question])
		f.asks[question]++
		if a.skip {
			return &bridge.Response{State: next}, nil
		}

		id, err := f.store.Append(ctx, bridge.SchemaAnswer, bridge.Record{"answer_text": a.text, "citations": a.citations})
		require.NoError(f.t, err)
		for _, chunk := range a.selected {
			_, err := f.store.Append(ctx, bridge.SchemaRetrievalCandidate, bridge.Record{
				"query_id": id, "chunk_id": chunk, "decision": bridge.DecisionSelected,
			})
			require.NoError(f.t, err)
		}
		for i := range a.rejected {
			_, err := f.store.Append(ctx, bridge.SchemaRetrievalCandidate, bridge.Record{
				"query_id": id, "chunk_id": fmt.Sprintf("rejected-%d", i+2), "decision": "rejected",
			})
			require.NoError(f.t, err)
		}
		// Noise that must not be counted as selected for this answer.
		_, err = f.store.Append(ctx, bridge.SchemaRetrievalCandidate, bridge.Record{"query_id": id, "chunk_id": "rejected-1", "decision": "rejected"})
		require.NoError(f.t, err)
		_, err = f.store.Append(ctx, bridge.SchemaRetrievalCandidate, bridge.Record{"query_id": id + 100, "chunk_id": "other-1", "decision": bridge.DecisionSelected})
		require.NoError(f.t, err)

		next["answer_mode"] = a.mode
		next["chat"] = map[string]any{"citations": a.chat}
	}
	return &bridge.Response{State: next}, nil
}

func sourcedAnswer(citations ...string) fakeAnswer {
	return fakeAnswer{
		text:      "Citations-only mode is active.\n[1] citations explained",
		mode:      models.ModeCitationsOnly,
		citations: citations,
		selected:  citations,
		chat: []any{map[string]any{
			"citation_id": "c1", "title": "Guide", "page_number": 1, "snippet": "citations explained",
		}},
	}
}

func noSupportAnswer() fakeAnswer {
	return fakeAnswer{text: "I couldn't find support in your selected sources.", mode: models.ModeNoSupport, chat: []any{}}
}

func goldenCases() []golden.Case {
	return []golden.Case{
		{
			ID:                   "b-sourced",
			Question:             "How do citations work?",
			ExpectedAnswerThemes: []string{"citations"},
			ExpectedCitations:    []golden.ExpectedCitation{{SourceContains: "guide", Page: intPtr(1)}},
		},
		{ID: "a-none", Question: "What is the capital of Mars?", ExpectNoSource: true},
	}
}

func byQuestion(question string, _ int) fakeAnswer {
	if strings.Contains(question, "Mars") {
		return noSupportAnswer()
	}
	return sourcedAnswer("c1")
}

func TestRun_ScoresCasesInIDOrder(t *testing.T) {
	b, f := newFakePipeline(t, byQuestion)
	runner := NewRunner(b, f.store)

	var events []ProgressEvent
	runner.OnProgress(func(e ProgressEvent) { events = append(events, e) })

	res, err := runner.Run(context.Background(), goldenCases(), nil)
	require.NoError(t, err)
	require.Len(t, res.Cases, 2)

	none := res.Cases[0]
	assert.Equal(t, "a-none", none.ID)
	assert.True(t, none.NoSourceBehaviorOK)
	assert.Equal(t, models.ModeNoSupport, none.AnswerMode)
	assert.Empty(t, none.Citations)
	assert.NotNil(t, none.Citations)

	sourced := res.Cases[1]
	assert.Equal(t, "b-sourced", sourced.ID)
	assert.True(t, sourced.CitationCoverage)
	assert.True(t, sourced.CitationCorrectness)
	assert.True(t, sourced.ExpectedCitationConstraintsOK)
	assert.True(t, sourced.NoSourceBehaviorOK)
	assert.Equal(t, 1.0, sourced.ThemeScore)
	assert.Equal(t, []string{"c1"}, sourced.Citations)
	assert.Equal(t, []string{"c1"}, sourced.SelectedCandidateIDs)

	assert.True(t, res.DeterministicReplayOK)
	assert.Equal(t, 2, f.asks["How do citations work?"], "anchor question is asked again for replay")
	assert.Equal(t, 1, f.asks["What is the capital of Mars?"])

	for _, p := range f.payloads {
		assert.Equal(t, true, p["offline"])
	}

	m := metrics.Aggregate(res.Cases, res.DeterministicReplayOK)
	for _, name := range models.AllMetrics {
		assert.Equal(t, 1.0, m[name], name)
	}

	require.NotEmpty(t, events)
	assert.Equal(t, EventSeedComplete, events[0].EventType)
	assert.Equal(t, EventReplayComplete, events[len(events)-1].EventType)
	completed := 0
	for _, e := range events {
		if e.EventType == EventCaseComplete {
			completed++
			assert.True(t, e.Passed, e.CaseID)
		}
	}
	assert.Equal(t, 2, completed)
}

func TestRun_StrayCitationFailsCorrectness(t *testing.T) {
	b, f := newFakePipeline(t, func(string, int) fakeAnswer {
		a := sourcedAnswer("c1", "c9")
		a.selected = []string{"c1"}
		return a
	})

	res, err := NewRunner(b, f.store).Run(context.Background(), goldenCases()[:1], nil)
	require.NoError(t, err)
	require.Len(t, res.Cases, 1)
	assert.True(t, res.Cases[0].CitationCoverage)
	assert.False(t, res.Cases[0].CitationCorrectness)
	assert.Equal(t, []string{"c1"}, res.Cases[0].SelectedCandidateIDs)
}

func TestRun_ReorderedCitationsBreakReplay(t *testing.T) {
	b, f := newFakePipeline(t, func(_ string, call int) fakeAnswer {
		if call == 0 {
			return sourcedAnswer("c1", "c2")
		}
		return sourcedAnswer("c2", "c1")
	})

	res, err := NewRunner(b, f.store).Run(context.Background(), goldenCases()[:1], nil)
	require.NoError(t, err)
	assert.False(t, res.DeterministicReplayOK)
	assert.True(t, res.Cases[0].CitationCorrectness)
}

func TestRun_AllNoSourceSkipsReplay(t *testing.T) {
	b, f := newFakePipeline(t, func(string, int) fakeAnswer { return noSupportAnswer() })

	cases := []golden.Case{
		{ID: "n1", Question: "Unknown one?", ExpectNoSource: true},
		{ID: "n2", Question: "Unknown two?", ExpectNoSource: true},
	}
	res, err := NewRunner(b, f.store).Run(context.Background(), cases, nil)
	require.NoError(t, err)
	assert.True(t, res.DeterministicReplayOK)
	assert.Len(t, f.payloads, 2)
}

func TestRun_SeedsAssetsAndOfflineFlag(t *testing.T) {
	b, f := newFakePipeline(t, byQuestion)

	assets := []Asset{
		{Name: "sample.pdf", ContentType: "application/pdf", Path: "/tmp/sample.pdf"},
		{Name: "sample.md", ContentType: "text/markdown", Path: "/tmp/sample.md"},
	}
	res, err := NewRunner(b, f.store, WithOffline(false), WithThemePassScore(0.5)).Run(context.Background(), goldenCases(), assets)
	require.NoError(t, err)
	require.NotNil(t, res.State)

	assert.Equal(t, []string{"sample.pdf", "sample.md"}, f.uploads)
	// two uploads, sync, ingest, two asks and one replay
	assert.Equal(t, 7, f.calls)
	assert.Equal(t, 7, res.State["calls"])
	for _, p := range f.payloads {
		assert.Equal(t, false, p["offline"])
	}
}

func TestRun_EmptyQuestion(t *testing.T) {
	b, f := newFakePipeline(t, byQuestion)

	_, err := NewRunner(b, f.store).Run(context.Background(), []golden.Case{{ID: "blank", Question: "   "}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "case blank has empty question")
	assert.Empty(t, f.payloads)
}

func TestRun_MissingAnswerRecord(t *testing.T) {
	b, f := newFakePipeline(t, func(string, int) fakeAnswer { return fakeAnswer{skip: true} })

	_, err := NewRunner(b, f.store).Run(context.Background(), goldenCases()[:1], nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAnswer))
}

func TestRun_SkippedAskDoesNotReusePreviousAnswer(t *testing.T) {
	b, f := newFakePipeline(t, func(question string, _ int) fakeAnswer {
		if strings.Contains(question, "Mars") {
			return fakeAnswer{skip: true}
		}
		return sourcedAnswer("c1")
	})

	cases := []golden.Case{
		{ID: "a-sourced", Question: "How do citations work?"},
		{ID: "b-broken", Question: "What is the capital of Mars?", ExpectNoSource: true},
	}
	_, err := NewRunner(b, f.store).Run(context.Background(), cases, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAnswer))
	assert.Contains(t, err.Error(), "case b-broken")
}

func TestRun_SkippedReplayAskFails(t *testing.T) {
	b, f := newFakePipeline(t, func(_ string, call int) fakeAnswer {
		if call > 0 {
			return fakeAnswer{skip: true}
		}
		return sourcedAnswer("c1")
	})

	_, err := NewRunner(b, f.store).Run(context.Background(), goldenCases()[:1], nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAnswer))
	assert.Contains(t, err.Error(), "replaying anchor question")
}

func TestRun_ManyCandidatesKeepSelection(t *testing.T) {
	b, f := newFakePipeline(t, func(string, int) fakeAnswer {
		a := sourcedAnswer("c1", "c2", "c3")
		a.rejected = 500
		return a
	})

	res, err := NewRunner(b, f.store).Run(context.Background(), goldenCases()[:1], nil)
	require.NoError(t, err)
	require.Len(t, res.Cases, 1)
	assert.Equal(t, []string{"c1", "c2", "c3"}, res.Cases[0].SelectedCandidateIDs)
	assert.True(t, res.Cases[0].CitationCorrectness)
}

func TestRun_PipelineWithManyMatchingChunks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, pipeline.AppFile), []byte("app \"rag-demo\"\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	paragraphs := make([]string, 500)
	for i := range paragraphs {
		paragraphs[i] = fmt.Sprintf("Paragraph %d explains citations.", i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "sample.txt"), []byte(strings.Join(paragraphs, "\n\n")), 0o644))

	store := records.NewMemoryStore()
	p, err := pipeline.New(dir, store, pipeline.WithProvider(offline.Inert))
	require.NoError(t, err)

	res, err := NewRunner(p, store, WithOffline(true)).Run(context.Background(),
		[]golden.Case{{ID: "many", Question: "citations"}}, SampleAssets(filepath.Join(dir, "assets")))
	require.NoError(t, err)

	c := res.Cases[0]
	require.Len(t, c.Citations, pipeline.DefaultTopK)
	assert.Equal(t, c.Citations, c.SelectedCandidateIDs)
	assert.True(t, c.CitationCorrectness)
	assert.True(t, res.DeterministicReplayOK)
}

func TestRun_MissingAction(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := NewMockBridge(ctrl)

	m := testManifest()
	delete(m.Actions, actionAsk)
	b.EXPECT().Manifest(gomock.Any()).Return(m, nil)

	_, err := NewRunner(b, records.NewMemoryStore()).Run(context.Background(), goldenCases(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridge.ErrActionNotFound))
}

func TestRun_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	b := NewMockBridge(ctrl)
	store := NewMockRecordStore(ctrl)

	b.EXPECT().Manifest(gomock.Any()).Return(testManifest(), nil)
	b.EXPECT().Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(&bridge.Response{}, nil).Times(2)
	store.EXPECT().ListRecords(gomock.Any(), bridge.SchemaAnswer, answerLookupLimit).Return(nil, errors.New("boom"))

	_, err := NewRunner(b, store).Run(context.Background(), goldenCases()[:1], nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestSampleAssets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.md"), []byte("# hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.txt"), []byte("hi"), 0o644))

	assets := SampleAssets(dir)
	require.Len(t, assets, 2)
	assert.Equal(t, "sample.md", assets[0].Name)
	assert.Equal(t, "text/markdown", assets[0].ContentType)
	assert.Equal(t, filepath.Join(dir, "sample.md"), assets[0].Path)
	assert.Equal(t, "sample.txt", assets[1].Name)
}
