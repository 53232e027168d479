// Package feed normalizes raw venue update payloads into canonical
// level-change and wager-update events. Nothing past this boundary sees the
// venue's wire shapes.
package feed

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"

	"github.com/doug4987/New-MM-Test/internal/obs"
	"github.com/doug4987/New-MM-Test/internal/schema"
)

// Update is the canonical result of one market payload: the market's
// identity, whether this payload is its first sighting, and the level
// changes it implies.
type Update struct {
	Market     schema.MarketInfo
	Discovered bool
	Changes    []schema.LevelChange
}

// Normalizer converts venue payloads into canonical updates. Malformed
// payloads are dropped and counted, never surfaced as pipeline errors.
type Normalizer struct {
	seen      map[string]struct{}
	malformed atomic.Uint64
}

// NewNormalizer creates a normalizer with no known markets.
func NewNormalizer() *Normalizer {
	return &Normalizer{seen: make(map[string]struct{})}
}

// Malformed returns the number of payloads dropped so far.
func (n *Normalizer) Malformed() uint64 {
	return n.malformed.Load()
}

// Normalize parses one raw market-update payload. A payload can fan out to
// several markets (one per nested line); each market yields one Update.
// Returns nil for malformed or empty payloads.
func (n *Normalizer) Normalize(raw []byte) []Update {
	var p marketPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		n.drop("unmarshal payload: %v", err)
		return nil
	}

	eventID, marketID := p.identity()
	if eventID == "" && marketID == "" {
		n.drop("payload missing event and market identity, change_type=%q", p.Meta.ChangeType)
		return nil
	}

	base := schema.MarketInfo{
		EventID:   eventID,
		EventName: p.eventName(),
		Type:      schema.ParseMarketType(p.marketType()),
	}

	var updates []Update
	now := time.Now().UTC().UnixNano()

	if len(p.MarketLines) > 0 {
		// Nested line markets (spreads, totals): one book per line value.
		for _, line := range p.MarketLines {
			info := base
			info.MarketID = lineMarketID(eventID, marketID, line.Line)
			if line.Line != nil {
				info.LineValue = *line.Line
				info.HasLine = true
			}
			changes := n.lineChanges(info, line.Selections, now)
			if u, ok := n.update(info, changes); ok {
				updates = append(updates, u)
			}
		}
	} else if len(p.Selections) > 0 {
		// Flat selection markets (moneylines).
		info := base
		info.MarketID = flatMarketID(eventID, marketID)
		changes := n.lineChanges(info, p.Selections, now)
		if u, ok := n.update(info, changes); ok {
			updates = append(updates, u)
		}
	}

	if len(updates) == 0 {
		obs.UpdatesTotal.WithLabelValues("empty").Inc()
		return nil
	}
	obs.UpdatesTotal.WithLabelValues("ok").Inc()
	return updates
}

func (n *Normalizer) update(info schema.MarketInfo, changes []schema.LevelChange) (Update, bool) {
	if len(changes) == 0 {
		return Update{}, false
	}
	_, known := n.seen[info.MarketID]
	if !known {
		n.seen[info.MarketID] = struct{}{}
	}
	return Update{Market: info, Discovered: !known, Changes: changes}, true
}

// lineChanges flattens the selection groups of one line into canonical
// changes. The first group quotes the outcome (back), the second quotes
// against it (lay); rows carrying an explicit side override the convention.
func (n *Normalizer) lineChanges(info schema.MarketInfo, groups []selectionGroup, now int64) []schema.LevelChange {
	var changes []schema.LevelChange
	for gi, group := range groups {
		for _, sel := range group {
			id := sel.selectionID()
			if id == "" {
				n.drop("selection without id in market %s", info.MarketID)
				continue
			}
			changes = append(changes, schema.LevelChange{
				MarketID:      info.MarketID,
				Side:          sideOf(sel.Side, gi),
				SelectionID:   id,
				SelectionName: sel.Name,
				Price:         sel.price(),
				Stake:         sel.stake(),
				TsEvent:       now,
			})
		}
	}
	return changes
}

func sideOf(explicit string, groupIndex int) schema.Side {
	switch explicit {
	case "back":
		return schema.SideBack
	case "lay":
		return schema.SideLay
	}
	if groupIndex%2 == 0 {
		return schema.SideBack
	}
	return schema.SideLay
}

func (n *Normalizer) drop(format string, args ...any) {
	n.malformed.Add(1)
	obs.UpdatesTotal.WithLabelValues("malformed").Inc()
	logs.Debugf("drop payload: "+format, args...)
}

func (p marketPayload) identity() (eventID, marketID string) {
	info := p.Info
	if info == nil {
		info = &payloadInfo{}
	}
	eventID = firstID(p.SportEventID, p.EventID, info.SportEventID, info.EventID)
	marketID = firstID(p.MarketID, info.MarketID)
	return eventID, marketID
}

func (p marketPayload) eventName() string {
	if p.EventName != "" {
		return p.EventName
	}
	if p.Info != nil {
		return p.Info.EventName
	}
	return ""
}

func (p marketPayload) marketType() string {
	if p.MarketType != "" {
		return p.MarketType
	}
	if p.Info != nil {
		return p.Info.MarketType
	}
	return ""
}

// flatMarketID builds the canonical market key for direct-selection markets.
func flatMarketID(eventID, marketID string) string {
	if eventID == "" {
		return marketID
	}
	if marketID == "" {
		return eventID
	}
	return eventID + "_" + marketID
}

// lineMarketID extends the flat key with the line value so every line of a
// spread or total market owns its own book.
func lineMarketID(eventID, marketID string, line *float64) string {
	base := flatMarketID(eventID, marketID)
	if line == nil {
		return base
	}
	return fmt.Sprintf("%s_%s", base, strconv.FormatFloat(*line, 'f', -1, 64))
}
