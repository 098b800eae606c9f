package environment

// Position is a pose on a named map.
type Position struct {
	X     float64 `yaml:"x" json:"x"`
	Y     float64 `yaml:"y" json:"y"`
	Theta float64 `yaml:"theta" json:"theta"`
	Name  string  `yaml:"name,omitempty" json:"name,omitempty"`
	Map   string  `yaml:"map,omitempty" json:"map,omitempty"`
}

func (p Position) Equal(other Position) bool {
	return p.Map == other.Map && p.X == other.X && p.Y == other.Y && p.Theta == other.Theta
}
