package pricing

import "sort"

// variant is a pack as it would be bought in a plan; a first-time x2 pack
// shows up twice, once doubled and once at the normal grant.
type variant struct {
	id, name string
	tokens   int
	price    int
}

func variants(cat Catalog, first FirstTimeState) []variant {
	var out []variant
	for _, p := range cat.Packs {
		if p.FirstTimeX2 && first[p.ID] {
			out = append(out, variant{p.ID + "#x2", p.Name + " (x2)", p.Granted(true), p.PriceCents})
		}
		out = append(out, variant{p.ID, p.Name, p.Granted(false), p.PriceCents})
	}
	return out
}

// MinCostAtLeastTokens finds the cheapest combination yielding at least
// targetTokens, allowing overshoot up to one extra pack. It is used to quote a
// player's shortfall when a pull is refused for insufficient balance.
func MinCostAtLeastTokens(cat Catalog, targetTokens int, first FirstTimeState) Plan {
	plan := Plan{Currency: cat.Currency}
	effs := variants(cat, first)
	if targetTokens <= 0 || len(effs) == 0 {
		return plan
	}
	maxTok := 0
	for _, e := range effs {
		maxTok = max(maxTok, e.tokens)
	}
	limit := targetTokens + maxTok

	const inf = int(^uint(0) >> 1)
	cost := make([]int, limit+1) // min cost to reach exactly t units (capped at limit)
	via := make([]int, limit+1)  // variant used to reach t
	prev := make([]int, limit+1)
	for t := range cost {
		cost[t], via[t], prev[t] = inf, -1, -1
	}
	cost[0] = 0
	for t := 0; t <= limit; t++ {
		if cost[t] == inf {
			continue
		}
		for i, e := range effs {
			nt := min(t+e.tokens, limit)
			if c := cost[t] + e.price; c < cost[nt] {
				cost[nt], via[nt], prev[nt] = c, i, t
			}
		}
	}

	best := -1
	for t := targetTokens; t <= limit; t++ {
		if cost[t] != inf && (best < 0 || cost[t] < cost[best]) {
			best = t
		}
	}
	if best < 0 {
		return plan
	}

	counts := map[int]int{}
	for t := best; t > 0 && via[t] >= 0; t = prev[t] {
		counts[via[t]]++
	}
	idx := make([]int, 0, len(counts))
	for i := range counts {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		e, qty := effs[i], counts[i]
		sub := e.price * qty
		plan.Purchases = append(plan.Purchases, Purchase{
			PackID:     e.id,
			Name:       e.name,
			Qty:        qty,
			UnitPrice:  e.price,
			UnitTokens: e.tokens,
			Subtotal:   sub,
		})
		plan.SubCents += sub
		plan.TotalTokens += e.tokens * qty
	}
	plan.TaxCents, plan.TotalCents = applyTax(plan.SubCents, cat.TaxRate)
	return plan
}
