package model

// Filter is one query-time predicate over track attributes. A query is a
// conjunction of filters; invalid filters are dropped at compile time rather
// than failing the query.
type Filter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value,omitempty"`
	From  string `json:"from,omitempty"` // range lower bound
	To    string `json:"to,omitempty"`   // range upper bound
}

// Filter operators. The valid set depends on the field type: text fields take
// is/is_not/contains, numeric fields take is/range and the comparisons, key
// fields take is/adjacent/mode_switch/matches.
const (
	OpIs         = "is"
	OpIsNot      = "is_not"
	OpContains   = "contains"
	OpRange      = "range"
	OpGt         = "gt"
	OpLt         = "lt"
	OpGte        = "gte"
	OpLte        = "lte"
	OpAdjacent   = "adjacent"
	OpModeSwitch = "mode_switch"
	OpMatches    = "matches"
)
