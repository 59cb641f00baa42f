package logic

// Encode maps a motion intent to relay channel levels.
//
// Stop deliberately uses differing levels so that a fault forcing both
// channels to the same level cannot be mistaken for idle. Extend and Retract
// use matching pairs, which is what the relay wiring switches on.
// Unknown intents encode as Stop.
func Encode(i Intent) Levels {
	switch i {
	case Extend:
		return Levels{A: true, B: true}
	case Retract:
		return Levels{A: false, B: false}
	default:
		return Levels{A: true, B: false}
	}
}

// IsStop reports whether l is the Stop encoding.
func (l Levels) IsStop() bool {
	return l == Encode(Stop)
}
