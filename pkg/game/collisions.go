package game

import (
	"math"

	"github.com/frameball/server/pkg/game/constants"
)

// CollisionRouter classifies raw physics contact/trigger events into
// domain events and debounces them so one physical overlap cannot fire
// twice.
//
// Goal events are accepted at most once per (object, goal) pair for the
// whole session. Strike events are gated by a per (object, participant)
// cooldown and a minimum impact speed separating incidental contact from
// intentional throws.
type CollisionRouter struct {
	scoredGoals map[int]map[string]bool
	cooldowns   map[strikeKey]int64
	nextSweep   int64
}

type strikeKey struct {
	ObjectID int
	ClientID uint32
}

func NewCollisionRouter() *CollisionRouter {
	return &CollisionRouter{
		scoredGoals: make(map[int]map[string]bool),
		cooldowns:   make(map[strikeKey]int64),
	}
}

// AcceptGoal reports whether a goal event for the pair should fire, and
// marks the pair as scored when it does. Repeated overlap frames and the
// duplicate trigger/sweep detection paths all funnel through here.
func (r *CollisionRouter) AcceptGoal(objectID int, goalName string) bool {
	scored, ok := r.scoredGoals[objectID]
	if !ok {
		scored = make(map[string]bool)
		r.scoredGoals[objectID] = scored
	}
	if scored[goalName] {
		return false
	}
	scored[goalName] = true
	return true
}

// HasScored reports whether the pair already fired.
func (r *CollisionRouter) HasScored(objectID int, goalName string) bool {
	return r.scoredGoals[objectID][goalName]
}

// AcceptStrike evaluates an object-hits-participant contact. It returns
// the damage to apply and whether the strike is accepted. now is unix
// milliseconds.
func (r *CollisionRouter) AcceptStrike(objectID int, clientID uint32, speed float64, now int64) (int, bool) {
	if speed < constants.StrikeMinSpeed {
		return 0, false
	}
	key := strikeKey{ObjectID: objectID, ClientID: clientID}
	if expires, ok := r.cooldowns[key]; ok && now < expires {
		return 0, false
	}
	r.cooldowns[key] = now + constants.StrikeCooldown.Milliseconds()

	capped := math.Min(speed, constants.StrikeMaxSpeed)
	damage := int(math.Round(constants.StrikeBaseDamage * capped / constants.StrikeMaxSpeed))
	return damage, true
}

// Sweep drops expired cooldown entries. Called periodically by the tick
// loop to bound memory over long sessions.
func (r *CollisionRouter) Sweep(now int64) {
	if now < r.nextSweep {
		return
	}
	r.nextSweep = now + constants.CooldownSweepEvery.Milliseconds()
	for key, expires := range r.cooldowns {
		if now >= expires {
			delete(r.cooldowns, key)
		}
	}
}

// CooldownCount returns the number of live cooldown entries.
func (r *CollisionRouter) CooldownCount() int {
	return len(r.cooldowns)
}
