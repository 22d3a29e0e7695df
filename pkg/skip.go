package ddrescue

// SkipController tracks the self-adjusting forward leap issued on read
// errors during the copying phase: it doubles on consecutive failures,
// halves back toward the floor on success, and can be disabled outright.
type SkipController struct {
	skipbs     int64 // floor, 0 disables skipping entirely
	maxSkipbs  int64 // ceiling
	current    int64
	scannedAll bool // disables skipping once the whole domain has been seen once
}

const defaultMaxSkipbs = int64(1) << 30 // 1 GiB ceiling

// NewSkipController builds a controller with the given floor. maxSkipbs
// <= 0 selects the implementation ceiling of 1 GiB.
func NewSkipController(skipbs, maxSkipbs int64) *SkipController {
	if maxSkipbs <= 0 {
		maxSkipbs = defaultMaxSkipbs
	}
	if maxSkipbs > defaultMaxSkipbs {
		maxSkipbs = defaultMaxSkipbs
	}
	return &SkipController{skipbs: skipbs, maxSkipbs: maxSkipbs, current: skipbs}
}

// Enabled reports whether skipping is active: it requires a nonzero
// floor and that the domain has not yet been fully scanned once.
func (sc *SkipController) Enabled() bool {
	return sc.skipbs > 0 && !sc.scannedAll
}

// MarkFullyScanned disables skipping once the entire domain has been
// covered by at least one read attempt.
func (sc *SkipController) MarkFullyScanned() { sc.scannedAll = true }

// OnError doubles the current skip distance (capped at maxSkipbs) and
// returns it, to be used as the forward (or, in reverse mode, backward)
// leap past the failing cluster.
func (sc *SkipController) OnError() int64 {
	if !sc.Enabled() {
		return 0
	}
	sc.current *= 2
	if sc.current > sc.maxSkipbs {
		sc.current = sc.maxSkipbs
	}
	return sc.current
}

// OnSuccess halves the current skip distance back toward skipbs,
// reflecting a run of good reads after a prior skip.
func (sc *SkipController) OnSuccess() {
	if sc.current <= sc.skipbs {
		sc.current = sc.skipbs
		return
	}
	sc.current /= 2
	if sc.current < sc.skipbs {
		sc.current = sc.skipbs
	}
}

// Current returns the skip distance that would be used by the next
// error, without mutating state.
func (sc *SkipController) Current() int64 { return sc.current }
