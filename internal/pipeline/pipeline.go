// Package pipeline is a local, deterministic answer pipeline over an
// application directory (app.ai plus uploaded assets). It exposes the same
// upload, sync, ingest and ask actions a hosted pipeline would, answers only
// from retrieved passages, and never calls a model provider.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/namel3ss/evalgate/internal/bridge"
	"github.com/namel3ss/evalgate/internal/models"
	"github.com/namel3ss/evalgate/internal/offline"
	"github.com/namel3ss/evalgate/internal/records"
)

// Action ids registered in the manifest.
const (
	ActionUploadSelect   = "page.library.upload_select"
	ActionSyncLibrary    = "page.library.sync_library"
	ActionIngestSelected = "page.library.ingest_selected"
	ActionAskQuestion    = "page.chat.ask_question"
)

// SchemaChunk holds ingested passages in the record store.
const SchemaChunk = "Chunk"

// DefaultTopK is how many retrieved passages an answer may cite.
const DefaultTopK = 3

// User-visible notices. They are also the failure-mode markers app.ai has to
// declare.
const (
	NoticeProviderFallback = "Provider unavailable. Running in citations-only mode."
	NoticeNoSupport        = "I couldn't find support in your selected sources."
	NoticeCitationsOnly    = "Citations-only mode is active."
)

// AppFile is the declarative source every application directory must contain.
const AppFile = "app.ai"

// ProviderEnvVar selects the answer provider.
const ProviderEnvVar = offline.ProviderVar

// Pipeline implements bridge.Bridge over an application directory.
type Pipeline struct {
	appDir   string
	store    records.Store
	topK     int
	provider string
}

var _ bridge.Bridge = (*Pipeline)(nil)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTopK sets how many passages an answer may cite.
func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithProvider overrides the provider read from N3_ANSWER_PROVIDER.
func WithProvider(name string) Option {
	return func(p *Pipeline) { p.provider = name }
}

// New creates a pipeline for appDir, which must contain app.ai.
func New(appDir string, store records.Store, opts ...Option) (*Pipeline, error) {
	if _, err := os.Stat(filepath.Join(appDir, AppFile)); err != nil {
		return nil, fmt.Errorf("app dir %s: %w", appDir, err)
	}
	if store == nil {
		return nil, errors.New("pipeline requires a record store")
	}

	p := &Pipeline{
		appDir:   appDir,
		store:    store,
		topK:     DefaultTopK,
		provider: os.Getenv(ProviderEnvVar),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Manifest lists the pipeline's actions.
func (p *Pipeline) Manifest(context.Context) (*bridge.Manifest, error) {
	return &bridge.Manifest{Actions: map[string]bridge.Action{
		ActionUploadSelect:   {ID: ActionUploadSelect, Type: bridge.ActionTypeUploadSelect},
		ActionSyncLibrary:    {ID: ActionSyncLibrary, Type: bridge.ActionTypeCallFlow, Flow: bridge.FlowSyncLibrary},
		ActionIngestSelected: {ID: ActionIngestSelected, Type: bridge.ActionTypeCallFlow, Flow: bridge.FlowIngestSelected},
		ActionAskQuestion:    {ID: ActionAskQuestion, Type: bridge.ActionTypeCallFlow, Flow: bridge.FlowAskQuestion},
	}}, nil
}

// Invoke runs actionID against a copy of state.
func (p *Pipeline) Invoke(ctx context.Context, actionID string, payload bridge.Payload, state bridge.State) (*bridge.Response, error) {
	next := state.Clone()

	var (
		result any
		err    error
	)
	switch actionID {
	case ActionUploadSelect:
		result, err = p.uploadSelect(payload, next)
	case ActionSyncLibrary:
		result, err = p.syncLibrary(next)
	case ActionIngestSelected:
		result, err = p.ingestSelected(ctx, next)
	case ActionAskQuestion:
		result, err = p.askQuestion(ctx, payload, next)
	default:
		return nil, fmt.Errorf("%w: %s", bridge.ErrActionNotFound, actionID)
	}
	if err != nil {
		return nil, fmt.Errorf("action %s: %w", actionID, err)
	}

	slog.Debug("Pipeline action completed", "action", actionID)
	return &bridge.Response{State: next, Result: result}, nil
}

// Upload is one uploaded file tracked in the state.
type Upload struct {
	Name        string `mapstructure:"name"`
	ContentType string `mapstructure:"content_type"`
	Path        string `mapstructure:"path"`
	DocumentID  string `mapstructure:"document_id"`
}

func (u Upload) state() map[string]any {
	return map[string]any{
		"name":         u.Name,
		"content_type": u.ContentType,
		"path":         u.Path,
		"document_id":  u.DocumentID,
	}
}

func (p *Pipeline) uploadSelect(payload bridge.Payload, state bridge.State) (any, error) {
	var up Upload
	if err := decode(map[string]any(payload), &up); err != nil {
		return nil, fmt.Errorf("decoding upload payload: %w", err)
	}
	if up.Name == "" {
		return nil, errors.New("upload payload requires a name")
	}
	if up.Path == "" {
		up.Path = filepath.Join("assets", up.Name)
	}
	if up.ContentType == "" {
		up.ContentType = ContentTypeFor(up.Name)
	}
	up.DocumentID = DocumentID(up.Name)

	uploads, err := uploadsFrom(state)
	if err != nil {
		return nil, err
	}

	replaced := false
	for i := range uploads {
		if uploads[i].DocumentID == up.DocumentID {
			uploads[i] = up
			replaced = true
		}
	}
	if !replaced {
		uploads = append(uploads, up)
	}

	list := make([]any, len(uploads))
	for i, u := range uploads {
		list[i] = u.state()
	}
	state["uploads"] = list

	selected := stringsFrom(state["selected"])
	if !slices.Contains(selected, up.DocumentID) {
		selected = append(selected, up.DocumentID)
	}
	state["selected"] = anyList(selected)

	return map[string]any{"document_id": up.DocumentID, "status": "selected"}, nil
}

func (p *Pipeline) syncLibrary(state bridge.State) (any, error) {
	uploads, err := uploadsFrom(state)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(uploads))
	for i, u := range uploads {
		names[i] = u.Name
	}
	state["library"] = map[string]any{
		"documents":      anyList(names),
		"document_count": len(names),
	}
	return map[string]any{"documents": len(names)}, nil
}

func (p *Pipeline) ingestSelected(ctx context.Context, state bridge.State) (any, error) {
	uploads, err := uploadsFrom(state)
	if err != nil {
		return nil, err
	}
	selected := stringsFrom(state["selected"])
	ingested := stringsFrom(state["ingested"])

	added := 0
	for _, up := range uploads {
		if !slices.Contains(selected, up.DocumentID) || slices.Contains(ingested, up.DocumentID) {
			continue
		}

		path := up.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.appDir, path)
		}
		pages, err := readPages(path, up.ContentType)
		if err != nil {
			return nil, err
		}

		chunks := chunkPages(up.DocumentID, up.Name, pages)
		if len(chunks) == 0 {
			slog.Warn("Upload produced no text", "name", up.Name)
		}
		for _, c := range chunks {
			if _, err := p.store.Append(ctx, SchemaChunk, bridge.Record(c.record())); err != nil {
				return nil, err
			}
		}
		added += len(chunks)
		ingested = append(ingested, up.DocumentID)
	}

	state["ingested"] = anyList(ingested)
	state["ready_documents"] = len(ingested)
	state["chunk_count"] = intFrom(state["chunk_count"]) + added

	return map[string]any{"status": "ingested", "chunks": added}, nil
}

type askPayload struct {
	Message string `mapstructure:"message"`
	Offline bool   `mapstructure:"offline"`
}

type scoredChunk struct {
	chunk Chunk
	score int
}

func (p *Pipeline) askQuestion(ctx context.Context, payload bridge.Payload, state bridge.State) (any, error) {
	var ask askPayload
	if err := decode(map[string]any(payload), &ask); err != nil {
		return nil, fmt.Errorf("decoding ask payload: %w", err)
	}
	question := strings.TrimSpace(ask.Message)
	if question == "" {
		return nil, errors.New("message is required")
	}

	ranked, err := p.retrieve(ctx, question, stringsFrom(state["ingested"]))
	if err != nil {
		return nil, err
	}
	selected := ranked
	if len(selected) > p.topK {
		selected = selected[:p.topK]
	}

	mode, text := p.compose(ask.Offline, selected)

	citationIDs := make([]any, len(selected))
	chatCitations := make([]any, len(selected))
	for i, s := range selected {
		citationIDs[i] = s.chunk.ID
		chatCitations[i] = map[string]any{
			"citation_id": s.chunk.ID,
			"title":       s.chunk.Title,
			"source_name": s.chunk.SourceName,
			"page_number": s.chunk.PageNumber,
			"snippet":     s.chunk.Snippet(),
		}
	}

	answerID, err := p.store.Append(ctx, bridge.SchemaAnswer, bridge.Record{
		"question":    question,
		"answer_text": text,
		"citations":   citationIDs,
		"mode":        mode,
	})
	if err != nil {
		return nil, err
	}

	for i, s := range ranked {
		decision := "rejected"
		if i < len(selected) {
			decision = bridge.DecisionSelected
		}
		if _, err := p.store.Append(ctx, bridge.SchemaRetrievalCandidate, bridge.Record{
			"query_id": answerID,
			"chunk_id": s.chunk.ID,
			"decision": decision,
			"score":    float64(s.score),
		}); err != nil {
			return nil, err
		}
	}

	chat, _ := state["chat"].(map[string]any)
	if chat == nil {
		chat = map[string]any{}
	}
	messages, _ := chat["messages"].([]any)
	messages = append(messages,
		map[string]any{"role": "user", "content": question},
		map[string]any{"role": "assistant", "content": text},
	)
	chat["messages"] = messages
	chat["citations"] = chatCitations
	state["chat"] = chat
	state["answer_mode"] = mode
	state["answer"] = map[string]any{
		"answer_text": text,
		"citations":   citationIDs,
	}

	return map[string]any{"answer_id": answerID, "answer_text": text, "mode": mode}, nil
}

// retrieve scores every ingested chunk by how many query keywords appear among
// its tokens and returns the chunks with a positive score, best first. Equal
// scores keep ingestion order.
func (p *Pipeline) retrieve(ctx context.Context, question string, ingested []string) ([]scoredChunk, error) {
	keywords := Keywords(question)
	if len(keywords) == 0 {
		return nil, nil
	}

	rows, err := p.store.ListRecords(ctx, SchemaChunk, 0)
	if err != nil {
		return nil, err
	}

	var ranked []scoredChunk
	for _, row := range rows {
		var c Chunk
		if err := decode(map[string]any(row), &c); err != nil {
			return nil, fmt.Errorf("decoding chunk: %w", err)
		}
		if !slices.Contains(ingested, c.DocumentID) {
			continue
		}

		tokens := make(map[string]bool)
		for _, t := range strings.Fields(Normalize(c.Text)) {
			tokens[t] = true
		}
		score := 0
		for _, k := range keywords {
			if tokens[k] {
				score++
			}
		}
		if score > 0 {
			ranked = append(ranked, scoredChunk{chunk: c, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked, nil
}

// compose builds the answer text. Without support the answer says so and
// cites nothing; otherwise the cited passages are listed under the notice for
// the active mode.
func (p *Pipeline) compose(offlineRun bool, selected []scoredChunk) (string, string) {
	if len(selected) == 0 {
		return models.ModeNoSupport, NoticeNoSupport
	}

	mode, notice := models.ModeCitationsOnly, NoticeCitationsOnly
	if !offlineRun && p.provider != "" && p.provider != offline.Inert {
		mode, notice = models.ModeProviderFallback, NoticeProviderFallback
	}

	var b strings.Builder
	b.WriteString(notice)
	b.WriteString("\n")
	for i, s := range selected {
		fmt.Fprintf(&b, "\n[%d] %s (page %d): %s", i+1, s.chunk.Title, s.chunk.PageNumber, s.chunk.Snippet())
	}
	return mode, b.String()
}

func decode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func uploadsFrom(state bridge.State) ([]Upload, error) {
	var uploads []Upload
	if raw, ok := state["uploads"]; ok && raw != nil {
		if err := decode(raw, &uploads); err != nil {
			return nil, fmt.Errorf("decoding uploads: %w", err)
		}
	}
	return uploads, nil
}

func stringsFrom(v any) []string {
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		return nil
	}
}

func intFrom(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func anyList(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
