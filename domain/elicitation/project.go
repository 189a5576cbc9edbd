package elicitation

import (
	"fmt"
	"math"

	"gocalib/domain/core"
)

// DefaultOvershoot widens each item's intrinsic range on both sides.
const DefaultOvershoot = 0.1

// Project is a fully loaded elicitation study: the expert roster, the items and
// the common quantile levels.
type Project struct {
	Name    string    `json:"name"`
	Levels  Levels    `json:"levels"`
	Items   []Item    `json:"items"`
	Experts []*Expert `json:"experts"`
}

// Validate checks levels and identifier uniqueness
func (p *Project) Validate() error {
	if err := p.Levels.Validate(); err != nil {
		return err
	}
	seenItems := make(map[core.ItemID]bool, len(p.Items))
	for _, it := range p.Items {
		if it.ID.String() == "" {
			return fmt.Errorf("project %s: item with empty id", p.Name)
		}
		if seenItems[it.ID] {
			return fmt.Errorf("project %s: duplicate item %s", p.Name, it.ID)
		}
		seenItems[it.ID] = true
	}
	seenExperts := make(map[core.ExpertID]bool, len(p.Experts))
	for _, e := range p.Experts {
		if e.ID.String() == "" {
			return fmt.Errorf("project %s: expert with empty id", p.Name)
		}
		if seenExperts[e.ID] {
			return fmt.Errorf("project %s: duplicate expert %s", p.Name, e.ID)
		}
		seenExperts[e.ID] = true
	}
	return nil
}

// ExpertIDs returns the roster order
func (p *Project) ExpertIDs() []core.ExpertID {
	ids := make([]core.ExpertID, len(p.Experts))
	for i, e := range p.Experts {
		ids[i] = e.ID
	}
	return ids
}

// Expert looks up an expert by id
func (p *Project) Expert(id core.ExpertID) (*Expert, error) {
	for _, e := range p.Experts {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, core.NewNotFoundError("expert", id.String())
}

// Item looks up an item by id
func (p *Project) Item(id core.ItemID) (Item, error) {
	for _, it := range p.Items {
		if it.ID == id {
			return it, nil
		}
	}
	return Item{}, core.NewNotFoundError("item", id.String())
}

// SeedItems returns the items with a realization, in project order
func (p *Project) SeedItems() []Item {
	var seeds []Item
	for _, it := range p.Items {
		if it.IsSeed() {
			seeds = append(seeds, it)
		}
	}
	return seeds
}

// RemoveItem drops an item and every estimate for it
func (p *Project) RemoveItem(id core.ItemID) error {
	for i, it := range p.Items {
		if it.ID == id {
			p.Items = append(p.Items[:i], p.Items[i+1:]...)
			for _, e := range p.Experts {
				delete(e.Estimates, id)
			}
			return nil
		}
	}
	return core.NewNotFoundError("item", id.String())
}

// RemoveExpert drops an expert from the roster
func (p *Project) RemoveExpert(id core.ExpertID) error {
	for i, e := range p.Experts {
		if e.ID == id {
			p.Experts = append(p.Experts[:i], p.Experts[i+1:]...)
			return nil
		}
	}
	return core.NewNotFoundError("expert", id.String())
}

// RemoveTargets drops all items without a realization and returns how many were removed.
func (p *Project) RemoveTargets() int {
	var targets []core.ItemID
	for _, it := range p.Items {
		if !it.IsSeed() {
			targets = append(targets, it.ID)
		}
	}
	for i := len(targets) - 1; i >= 0; i-- {
		_ = p.RemoveItem(targets[i])
	}
	return len(targets)
}

// Clone returns a deep copy so that independent passes never share a roster.
func (p *Project) Clone() *Project {
	out := &Project{
		Name:    p.Name,
		Levels:  append(Levels(nil), p.Levels...),
		Items:   make([]Item, len(p.Items)),
		Experts: make([]*Expert, len(p.Experts)),
	}
	for i, it := range p.Items {
		out.Items[i] = it
		if it.Realization != nil {
			r := *it.Realization
			out.Items[i].Realization = &r
		}
	}
	for i, e := range p.Experts {
		out.Experts[i] = e.Clone()
	}
	return out
}

// ReduceLevels returns a copy of the project without the given level indices,
// dropping the matching value from every estimate.
func (p *Project) ReduceLevels(drop ...int) (*Project, error) {
	levels := p.Levels.Without(drop...)
	if err := levels.Validate(); err != nil {
		return nil, err
	}
	skip := make(map[int]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	out := p.Clone()
	out.Levels = levels
	for _, e := range out.Experts {
		for id, est := range e.Estimates {
			vals := make([]float64, 0, len(levels))
			for i, v := range est.Values {
				if !skip[i] {
					vals = append(vals, v)
				}
			}
			e.Estimates[id] = Estimate{Values: vals}
		}
	}
	return out, nil
}

// Bounds returns the intrinsic range of an item, in fitted space (log space
// for log-scale items): the span of all usable expert estimates and the
// realization, widened by overshoot on both sides.
func (p *Project) Bounds(item Item, overshoot float64) (lower, upper float64, err error) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, e := range p.Experts {
		est, ok := e.Estimates[item.ID]
		if !ok || est.Check(len(p.Levels), item.Scale) != nil {
			continue
		}
		lo = math.Min(lo, item.Scale.Forward(est.Values[0]))
		hi = math.Max(hi, item.Scale.Forward(est.Values[len(est.Values)-1]))
	}
	if item.IsSeed() {
		r := *item.Realization
		if item.Scale != ScaleLog || r > 0 {
			lo = math.Min(lo, item.Scale.Forward(r))
			hi = math.Max(hi, item.Scale.Forward(r))
		}
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, 0, fmt.Errorf("%w: no usable estimates for item %s", core.ErrInsufficientData, item.ID)
	}
	span := hi - lo
	if span == 0 {
		span = math.Max(math.Abs(hi), 1)
	}
	return lo - overshoot*span, hi + overshoot*span, nil
}
