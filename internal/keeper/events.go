package keeper

import (
	"github.com/gagliardetto/solana-go"

	"github.com/coldbell/mango-v4-go/internal/mango"
)

// planConsumeEvents returns the mango accounts touched by the first limit
// events, in first-seen order. perp_consume_events needs every one of them
// as a writable remaining account or the program stops early.
func planConsumeEvents(events []mango.AnyEvent, limit int) ([]solana.PublicKey, int) {
	if limit > len(events) {
		limit = len(events)
	}

	seen := make(map[solana.PublicKey]struct{})
	var out []solana.PublicKey
	add := func(pk solana.PublicKey) {
		if _, ok := seen[pk]; ok {
			return
		}
		seen[pk] = struct{}{}
		out = append(out, pk)
	}

	for _, ev := range events[:limit] {
		switch mango.EventType(ev.EventType) {
		case mango.EventTypeFill:
			fill, err := ev.AsFill()
			if err != nil {
				continue
			}
			add(fill.Maker)
			add(fill.Taker)
		case mango.EventTypeOut:
			outEvent, err := ev.AsOut()
			if err != nil {
				continue
			}
			add(outEvent.Owner)
		}
	}
	return out, limit
}
