package decisioncards

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Iron-Ham/otto/internal/errors"
	"github.com/Iron-Ham/otto/internal/util"
)

// SchemaVersion is the only supported document version.
const SchemaVersion = 1

// OpenQuestion is a question the plan cannot answer without the operator.
type OpenQuestion struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	UserAnswer string `json:"userAnswer,omitempty"`
}

// Decision is one design choice the plan makes.
type Decision struct {
	ID             string `json:"id"`
	ProposedChange string `json:"proposedChange"`
	Why            string `json:"why"`
	Alternatives   string `json:"alternatives"`
	Assumptions    string `json:"assumptions"`
	FutureState    string `json:"futureState"`
	UserFeedback   string `json:"userFeedback,omitempty"`
	ApprovedHash   string `json:"approvedHash,omitempty"`
}

// Document is the decision-cards.json file.
type Document struct {
	SchemaVersion int            `json:"schemaVersion"`
	OpenQuestions []OpenQuestion `json:"openQuestions"`
	Decisions     []Decision     `json:"decisions"`
}

// Hash returns the hex sha256 of the decision's content fields. Whitespace
// runs are collapsed first, so reflowed text keeps its approval.
func Hash(d Decision) string {
	content, _ := json.Marshal(struct {
		ID             string `json:"id"`
		ProposedChange string `json:"proposedChange"`
		Why            string `json:"why"`
		Alternatives   string `json:"alternatives"`
		Assumptions    string `json:"assumptions"`
		FutureState    string `json:"futureState"`
	}{
		ID:             normalize(d.ID),
		ProposedChange: normalize(d.ProposedChange),
		Why:            normalize(d.Why),
		Alternatives:   normalize(d.Alternatives),
		Assumptions:    normalize(d.Assumptions),
		FutureState:    normalize(d.FutureState),
	})
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Approved reports whether d was approved at its current content.
func (d Decision) Approved() bool {
	return d.ApprovedHash != "" && d.ApprovedHash == Hash(d)
}

// Validate checks the shape the lead must produce.
func Validate(doc *Document) error {
	if doc == nil {
		return errors.NewValidationError("Decision cards: expected object")
	}
	if doc.SchemaVersion != SchemaVersion {
		return errors.NewValidationError("Decision cards: schemaVersion must be 1").
			WithField("schemaVersion").
			WithValue(doc.SchemaVersion)
	}
	if doc.OpenQuestions == nil || doc.Decisions == nil {
		return errors.NewValidationError("Decision cards: expected openQuestions[] and decisions[]")
	}
	if len(doc.Decisions) < 1 {
		return errors.NewValidationError("Decision cards: must include at least 1 decision").WithField("decisions")
	}
	for _, q := range doc.OpenQuestions {
		if err := requireText(q.ID, "openQuestions[].id"); err != nil {
			return err
		}
		if err := requireText(q.Question, "openQuestions[].question"); err != nil {
			return err
		}
	}
	for _, d := range doc.Decisions {
		fields := []struct{ value, label string }{
			{d.ID, "decisions[].id"},
			{d.ProposedChange, "decisions[].proposedChange"},
			{d.Why, "decisions[].why"},
			{d.Alternatives, "decisions[].alternatives"},
			{d.Assumptions, "decisions[].assumptions"},
			{d.FutureState, "decisions[].futureState"},
		}
		for _, f := range fields {
			if err := requireText(f.value, f.label); err != nil {
				return err
			}
		}
	}
	return nil
}

func requireText(value, label string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewValidationError(fmt.Sprintf("Decision cards: expected %s to be a non-empty string", label)).
			WithField(label)
	}
	return nil
}

// Parse decodes and validates a document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewValidationError("Decision cards: runner did not return valid JSON.").WithCause(err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Read loads the document at path. A missing file returns nil and no error.
func Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read decision cards: %w", err)
	}
	return Parse(data)
}

// Write persists doc atomically as indented JSON.
func Write(path string, doc *Document) error {
	if err := util.WriteJSONAtomic(path, doc); err != nil {
		return fmt.Errorf("failed to write decision cards: %w", err)
	}
	return nil
}

// Merge carries the operator's fields from previous into next by id.
// Answers always survive; feedback survives; an approval survives only
// when the decision's content hash is unchanged.
func Merge(next, previous *Document) *Document {
	if previous == nil {
		return next
	}
	answers := make(map[string]string, len(previous.OpenQuestions))
	for _, q := range previous.OpenQuestions {
		answers[q.ID] = q.UserAnswer
	}
	prior := make(map[string]Decision, len(previous.Decisions))
	for _, d := range previous.Decisions {
		prior[d.ID] = d
	}

	merged := &Document{
		SchemaVersion: SchemaVersion,
		OpenQuestions: make([]OpenQuestion, 0, len(next.OpenQuestions)),
		Decisions:     make([]Decision, 0, len(next.Decisions)),
	}
	for _, q := range next.OpenQuestions {
		if a := answers[q.ID]; a != "" {
			q.UserAnswer = a
		}
		merged.OpenQuestions = append(merged.OpenQuestions, q)
	}
	for _, d := range next.Decisions {
		p, ok := prior[d.ID]
		d.ApprovedHash = ""
		if ok {
			if p.UserFeedback != "" {
				d.UserFeedback = p.UserFeedback
			}
			if p.ApprovedHash != "" && Hash(p) == Hash(d) {
				d.ApprovedHash = p.ApprovedHash
			}
		}
		merged.Decisions = append(merged.Decisions, d)
	}
	return merged
}

// Schema is the JSON schema handed to the lead runner.
var Schema = json.RawMessage(`{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "additionalProperties": false,
  "required": ["schemaVersion", "openQuestions", "decisions"],
  "properties": {
    "schemaVersion": { "const": 1 },
    "openQuestions": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "question"],
        "properties": {
          "id": { "type": "string" },
          "question": { "type": "string" }
        }
      }
    },
    "decisions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["id", "proposedChange", "why", "alternatives", "assumptions", "futureState"],
        "properties": {
          "id": { "type": "string" },
          "proposedChange": { "type": "string" },
          "why": { "type": "string" },
          "alternatives": { "type": "string" },
          "assumptions": { "type": "string" },
          "futureState": { "type": "string" }
        }
      }
    }
  }
}`)
