// Package spacedrep implements the spaced-repetition scheduling engine.
//
// The engine models each learning item with an immutable MemoryState
// (stability, difficulty, counters, lifecycle state) and updates it with an
// FSRS-6 style memory model. It performs no I/O and never reads the wall
// clock: callers pass "now" explicitly and persist the returned values.
//
//	sched, err := spacedrep.NewScheduler(spacedrep.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	st := sched.NewState(uuid.New(), now)
//	st, log, err := sched.Review(st, spacedrep.Good, now)
package spacedrep
