package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedRecord marks records rejected while decoding backend payloads.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError reports one rejected record.
type MalformedRecordError struct {
	Kind  Kind
	ID    string
	Field string
	Value string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	id := e.ID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("malformed %s record %s: field %s=%q: %v", e.Kind, id, e.Field, e.Value, e.Err)
}

func (e *MalformedRecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// DecodeResult holds the records that decoded cleanly and the ones rejected.
type DecodeResult struct {
	Records  []Record
	Rejected []*MalformedRecordError
}

// Err joins all rejections, or returns nil when every record decoded.
func (r DecodeResult) Err() error {
	if len(r.Rejected) == 0 {
		return nil
	}
	errs := make([]error, len(r.Rejected))
	for i, rej := range r.Rejected {
		errs[i] = rej
	}
	return errors.Join(errs...)
}

// wireRecord is the JSON shape the backend uses for both incomes and expenses.
type wireRecord struct {
	ID          string          `json:"_id"`
	AltID       string          `json:"id"`
	Amount      json.RawMessage `json:"amount"`
	Date        string          `json:"date"`
	Category    json.RawMessage `json:"category"`
	Description string          `json:"description"`
	Source      string          `json:"source"`
	Note        string          `json:"note"`
}

type wireCategory struct {
	ID        string `json:"_id"`
	AltID     string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

type wireGoal struct {
	ID            string          `json:"_id"`
	AltID         string          `json:"id"`
	Title         string          `json:"title"`
	TargetAmount  json.RawMessage `json:"targetAmount"`
	CurrentAmount json.RawMessage `json:"currentAmount"`
	Image         string          `json:"image"`
}

// DecodeRecords decodes a list of records of the given kind. The list may be
// a bare JSON array or wrapped as {"incomes": [...]} / {"expenses": [...]}.
// Only an unreadable payload is an error; individual bad records are rejected
// and reported in the result.
func DecodeRecords(kind Kind, data []byte) (DecodeResult, error) {
	if !kind.Valid() {
		return DecodeResult{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	wire, err := unwrapRecordList(kind, data)
	if err != nil {
		return DecodeResult{}, err
	}
	res := DecodeResult{Records: make([]Record, 0, len(wire))}
	for _, w := range wire {
		rec, rej := w.toRecord(kind)
		if rej != nil {
			res.Rejected = append(res.Rejected, rej)
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

func unwrapRecordList(kind Kind, data []byte) ([]wireRecord, error) {
	var wire []wireRecord
	err := json.Unmarshal(data, &wire)
	if err == nil {
		return wire, nil
	}
	var envelope map[string]json.RawMessage
	if json.Unmarshal(data, &envelope) == nil {
		if list, ok := envelope[kind.String()+"s"]; ok {
			if err := json.Unmarshal(list, &wire); err != nil {
				return nil, fmt.Errorf("decode %s list: %w", kind, err)
			}
			return wire, nil
		}
	}
	return nil, fmt.Errorf("decode %s list: %w", kind, err)
}

func (w wireRecord) toRecord(kind Kind) (Record, *MalformedRecordError) {
	id := firstNonEmpty(w.ID, w.AltID)
	reject := func(field, value string, err error) *MalformedRecordError {
		return &MalformedRecordError{Kind: kind, ID: id, Field: field, Value: value, Err: err}
	}

	amount, err := parseAmountJSON(w.Amount)
	if err != nil {
		return Record{}, reject("amount", string(w.Amount), err)
	}
	date, err := ParseDate(w.Date)
	if err != nil {
		return Record{}, reject("date", w.Date, err)
	}
	cat, err := decodeCategoryRef(w.Category)
	if err != nil {
		return Record{}, reject("category", string(w.Category), err)
	}

	note := w.Description
	if kind == KindIncome {
		note = firstNonEmpty(w.Source, w.Description)
	}
	return Record{
		ID:       id,
		Kind:     kind,
		Amount:   amount,
		Date:     date,
		Category: cat,
		Note:     firstNonEmpty(note, w.Note),
	}, nil
}

// DecodeRecord decodes one record, bare or wrapped as {"income": {...}} /
// {"expense": {...}}. A record that fails validation is returned as a
// *MalformedRecordError.
func DecodeRecord(kind Kind, data []byte) (Record, error) {
	if !kind.Valid() {
		return Record{}, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", kind, err)
	}
	if inner, ok := envelope[kind.String()]; ok {
		data = inner
	}
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", kind, err)
	}
	rec, rej := w.toRecord(kind)
	if rej != nil {
		return Record{}, rej
	}
	return rec, nil
}

// decodeCategoryRef accepts a bare id string, an embedded category object or null.
func decodeCategoryRef(raw json.RawMessage) (*CategoryRef, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if strings.HasPrefix(s, `"`) {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, err
		}
		if strings.TrimSpace(id) == "" {
			return nil, nil
		}
		return &CategoryRef{ID: id}, nil
	}
	var wc wireCategory
	if err := json.Unmarshal(raw, &wc); err != nil {
		return nil, err
	}
	return &CategoryRef{ID: firstNonEmpty(wc.ID, wc.AltID), Name: wc.Name}, nil
}

// DecodeCategories decodes either a bare array or the {"categories": [...]}
// envelope the backend uses on list endpoints.
func DecodeCategories(data []byte) ([]Category, error) {
	var wire []wireCategory
	if err := json.Unmarshal(data, &wire); err != nil {
		var envelope struct {
			Categories []wireCategory `json:"categories"`
		}
		if err2 := json.Unmarshal(data, &envelope); err2 != nil {
			return nil, fmt.Errorf("decode categories: %w", err)
		}
		wire = envelope.Categories
	}
	out := make([]Category, 0, len(wire))
	for _, w := range wire {
		c := Category{ID: firstNonEmpty(w.ID, w.AltID), Name: w.Name}
		if w.CreatedAt != "" {
			if t, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
				c.CreatedAt = t
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// DecodeCategory decodes a single category, possibly wrapped in {"category": {...}}.
func DecodeCategory(data []byte) (Category, error) {
	var envelope struct {
		Category *wireCategory `json:"category"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Category != nil {
		return Category{ID: firstNonEmpty(envelope.Category.ID, envelope.Category.AltID), Name: envelope.Category.Name}, nil
	}
	var w wireCategory
	if err := json.Unmarshal(data, &w); err != nil {
		return Category{}, fmt.Errorf("decode category: %w", err)
	}
	return Category{ID: firstNonEmpty(w.ID, w.AltID), Name: w.Name}, nil
}

// DecodeGoals decodes the savings goal list.
func DecodeGoals(data []byte) ([]SavingsGoal, error) {
	var wire []wireGoal
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("decode goals: %w", err)
	}
	out := make([]SavingsGoal, 0, len(wire))
	for _, w := range wire {
		g, err := w.toGoal()
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// DecodeGoal decodes a single savings goal.
func DecodeGoal(data []byte) (SavingsGoal, error) {
	var w wireGoal
	if err := json.Unmarshal(data, &w); err != nil {
		return SavingsGoal{}, fmt.Errorf("decode goal: %w", err)
	}
	return w.toGoal()
}

func (w wireGoal) toGoal() (SavingsGoal, error) {
	id := firstNonEmpty(w.ID, w.AltID)
	target, err := parseAmountJSON(w.TargetAmount)
	if err != nil {
		return SavingsGoal{}, fmt.Errorf("goal %s target amount: %w", id, err)
	}
	current := Zero
	if len(w.CurrentAmount) > 0 && string(w.CurrentAmount) != "null" {
		current, err = parseAmountJSON(w.CurrentAmount)
		if err != nil {
			return SavingsGoal{}, fmt.Errorf("goal %s current amount: %w", id, err)
		}
	}
	return SavingsGoal{
		ID:            id,
		Title:         w.Title,
		TargetAmount:  target,
		CurrentAmount: current,
		ImageRef:      w.Image,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
