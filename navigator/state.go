package navigator

// State is a stage of one search.
type State int

const (
	StateInit State = iota
	StateTranslate
	StateStrategySelect
	StateListingReady
	StateVisitLoop
	StateAggregate
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateInit:           "INIT",
	StateTranslate:      "TRANSLATE",
	StateStrategySelect: "STRATEGY_SELECT",
	StateListingReady:   "LISTING_READY",
	StateVisitLoop:      "VISIT_LOOP",
	StateAggregate:      "AGGREGATE",
	StateDone:           "DONE",
	StateFailed:         "FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}
