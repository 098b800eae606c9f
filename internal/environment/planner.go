package environment

// StaticPlanner validates locations against a fixed list of known maps. It
// stands in where no live path planner is connected: a location is accepted
// when its map is known (or no maps are configured) and it is addressable,
// either by name or by coordinates away from the origin.
type StaticPlanner struct {
	Maps []string
}

func (p *StaticPlanner) IsValidLocation(mapID string, location Position) bool {
	if len(p.Maps) > 0 && !p.knows(mapID) {
		return false
	}
	if location.Name != "" {
		return true
	}
	return location.X != 0 || location.Y != 0
}

func (p *StaticPlanner) knows(mapID string) bool {
	for _, m := range p.Maps {
		if m == mapID {
			return true
		}
	}
	return false
}
