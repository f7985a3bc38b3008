package bridge

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// State is the conversation state threaded through every action call.
type State map[string]any

// Clone returns a deep copy of the state's maps and slices so that an action
// can build its output without mutating the caller's value.
func (s State) Clone() State {
	if s == nil {
		return State{}
	}
	out := make(State, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case State:
		return val.Clone()
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, v2 := range val {
			m[k] = cloneValue(v2)
		}
		return m
	case []any:
		l := make([]any, len(val))
		for i, v2 := range val {
			l[i] = cloneValue(v2)
		}
		return l
	case []map[string]any:
		l := make([]map[string]any, len(val))
		for i, v2 := range val {
			l[i] = cloneValue(v2).(map[string]any)
		}
		return l
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}

// AnswerMode returns the answer_mode the pipeline left in the state.
func (s State) AnswerMode() string {
	if v, ok := s["answer_mode"]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// ChatCitation is one citation rendered in the chat view of the state.
type ChatCitation struct {
	CitationID string `mapstructure:"citation_id"`
	Title      string `mapstructure:"title"`
	SourceName string `mapstructure:"source_name"`
	PageNumber *int   `mapstructure:"page_number"`
	Snippet    string `mapstructure:"snippet"`
}

// DisplaySource returns the title when present, otherwise the source name.
func (c ChatCitation) DisplaySource() string {
	if c.Title != "" {
		return c.Title
	}
	return c.SourceName
}

// ChatCitations decodes state["chat"]["citations"]. A missing chat view
// yields no citations.
func (s State) ChatCitations() ([]ChatCitation, error) {
	chat, ok := s["chat"]
	if !ok || chat == nil {
		return nil, nil
	}

	var view struct {
		Citations []ChatCitation `mapstructure:"citations"`
	}
	if err := weakDecode(chat, &view); err != nil {
		return nil, fmt.Errorf("decoding chat citations: %w", err)
	}
	return view.Citations, nil
}

// AnswerRecord is the typed view of an Answer record.
type AnswerRecord struct {
	ID         int      `mapstructure:"id"`
	AnswerText string   `mapstructure:"answer_text"`
	Citations  []string `mapstructure:"citations"`
	Mode       string   `mapstructure:"mode"`
}

// DecodeAnswer decodes an Answer record. Empty citation ids are dropped.
func DecodeAnswer(r Record) (AnswerRecord, error) {
	var a AnswerRecord
	if err := weakDecode(map[string]any(r), &a); err != nil {
		return AnswerRecord{}, fmt.Errorf("decoding %s record: %w", SchemaAnswer, err)
	}
	citations := make([]string, 0, len(a.Citations))
	for _, c := range a.Citations {
		if c != "" {
			citations = append(citations, c)
		}
	}
	a.Citations = citations
	return a, nil
}

// CandidateRecord is the typed view of a RetrievalCandidate record.
type CandidateRecord struct {
	QueryID  int     `mapstructure:"query_id"`
	ChunkID  string  `mapstructure:"chunk_id"`
	Decision string  `mapstructure:"decision"`
	Score    float64 `mapstructure:"score"`
}

// DecisionSelected marks a candidate the pipeline used to build the answer.
const DecisionSelected = "selected"

// DecodeCandidate decodes a RetrievalCandidate record. A record without a
// query_id decodes with QueryID -1 so it never matches a real answer.
func DecodeCandidate(r Record) (CandidateRecord, error) {
	c := CandidateRecord{QueryID: -1}
	if err := weakDecode(map[string]any(r), &c); err != nil {
		return CandidateRecord{}, fmt.Errorf("decoding %s record: %w", SchemaRetrievalCandidate, err)
	}
	return c, nil
}

// weakDecode decodes loosely typed record values (JSON numbers, numeric
// strings) into typed structs.
func weakDecode(input any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}
