package appointments

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OutcomeUpdate is the body submitted when a call result is recorded.
// SaleValue accepts a JSON number, a numeric string, "" or null.
type OutcomeUpdate struct {
	Outcome       string          `json:"outcome"`
	Notes         string          `json:"notes"`
	SaleValue     json.RawMessage `json:"saleValue"`
	RecordingLink string          `json:"recordingLink"`
}

// outcomeChange is a validated OutcomeUpdate.
type outcomeChange struct {
	outcome   Outcome
	notes     string
	saleValue decimal.NullDecimal
	link      string
}

func (u OutcomeUpdate) validate() (outcomeChange, error) {
	outcome, err := ParseOutcome(u.Outcome)
	if err != nil {
		return outcomeChange{}, err
	}
	sale, err := ParseSaleValue(u.SaleValue)
	if err != nil {
		return outcomeChange{}, err
	}
	link := strings.TrimSpace(u.RecordingLink)
	if link != "" && !validRecordingLink(link) {
		return outcomeChange{}, ErrInvalidRecordingLink
	}
	return outcomeChange{
		outcome:   outcome,
		notes:     u.Notes,
		saleValue: sale,
		link:      link,
	}, nil
}

// apply writes the change into a. The sale value is only kept for conversions;
// commission is derived from the affiliate rate when one is known.
func (c outcomeChange) apply(a *Appointment, rate *decimal.Decimal, now time.Time) {
	outcome := c.outcome
	a.Outcome = &outcome
	a.Status = StatusForOutcome(outcome)
	a.Notes = c.notes

	a.SaleValue = decimal.NullDecimal{}
	a.CommissionAmount = decimal.NullDecimal{}
	if outcome == OutcomeConverted && c.saleValue.Valid {
		a.SaleValue = c.saleValue
		if rate != nil {
			a.CommissionAmount = decimal.NewNullDecimal(c.saleValue.Decimal.Mul(*rate).Round(2))
		}
	}

	if c.link != "" {
		if a.RecordingLinks == nil {
			a.RecordingLinks = make(map[Outcome]string)
		}
		a.RecordingLinks[outcome] = c.link
	}
	a.UpdatedAt = now
}

// ParseSaleValue parses an optional non-negative decimal.
func ParseSaleValue(raw json.RawMessage) (decimal.NullDecimal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.NullDecimal{}, nil
	}

	text := string(trimmed)
	if trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return decimal.NullDecimal{}, ErrInvalidSaleValue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return decimal.NullDecimal{}, nil
		}
	}

	value, err := decimal.NewFromString(text)
	if err != nil || value.IsNegative() || !fitsMoney(value) {
		return decimal.NullDecimal{}, ErrInvalidSaleValue
	}
	return decimal.NewNullDecimal(value), nil
}

// maxSaleValue is the first value that no longer fits sale_value NUMERIC(12, 2).
var maxSaleValue = decimal.New(1, 10)

// fitsMoney reports whether d is stored as-is in a NUMERIC(12, 2) column:
// whole cents and below maxSaleValue.
func fitsMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(2)) && d.LessThan(maxSaleValue)
}

func validRecordingLink(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
