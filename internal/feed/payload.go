package feed

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/doug4987/New-MM-Test/internal/schema"
)

// marketPayload mirrors the venue's market-update message shape. Identity
// fields appear either at the root or nested under "info" depending on the
// change type; ids arrive as numbers or strings.
type marketPayload struct {
	Meta struct {
		ChangeType string `json:"change_type"`
	} `json:"_meta"`
	Info *payloadInfo `json:"info"`

	SportEventID flexID `json:"sport_event_id"`
	EventID      flexID `json:"event_id"`
	MarketID     flexID `json:"market_id"`
	EventName    string `json:"event_name"`
	MarketType   string `json:"market_type"`

	Selections  []selectionGroup `json:"selections"`
	MarketLines []marketLine     `json:"market_lines"`
}

type payloadInfo struct {
	SportEventID flexID `json:"sport_event_id"`
	EventID      flexID `json:"event_id"`
	MarketID     flexID `json:"market_id"`
	EventName    string `json:"event_name"`
	MarketType   string `json:"market_type"`
}

type marketLine struct {
	Line       *float64         `json:"line"`
	Selections []selectionGroup `json:"selections"`
}

// selection is one venue row: a selection may be published before odds are
// posted, in which case Odds is null and the row is a placeholder.
type selection struct {
	Name      string           `json:"name"`
	Side      string           `json:"side"`
	Odds      *float64         `json:"odds"`
	Value     *decimal.Decimal `json:"value"`
	Stake     *decimal.Decimal `json:"stake"`
	LineID    flexID           `json:"line_id"`
	OutcomeID flexID           `json:"outcome_id"`
}

// selectionGroup accepts both a bare selection object and a nested array of
// selections, which the venue mixes freely.
type selectionGroup []selection

func (g *selectionGroup) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []selection
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*g = list
		return nil
	}
	var single selection
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}
	*g = selectionGroup{single}
	return nil
}

// flexID tolerates string and numeric id encodings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

func (f flexID) String() string {
	if f == "null" {
		return ""
	}
	return string(f)
}

func (f flexID) Empty() bool {
	return f.String() == ""
}

func firstID(ids ...flexID) string {
	for _, id := range ids {
		if !id.Empty() {
			return id.String()
		}
	}
	return ""
}

// stake returns the available size of the row. The venue's "value" field
// superseded the deprecated "stake" field.
func (s selection) stake() decimal.Decimal {
	if s.Value != nil {
		return *s.Value
	}
	if s.Stake != nil {
		return *s.Stake
	}
	return decimal.Zero
}

// price returns the row's odds, or OddsNone for a placeholder row.
func (s selection) price() schema.Odds {
	if s.Odds == nil {
		return schema.OddsNone
	}
	o := schema.Odds(int64(math.Round(*s.Odds)))
	if !o.Valid() {
		return schema.OddsNone
	}
	return o
}

func (s selection) selectionID() string {
	return firstID(s.OutcomeID, s.LineID)
}
