package dialogue

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/stakesim/stakesim/internal/persona"
)

// Fairness scorer weights. Each candidate starts at 1.0 and is adjusted by
// recency penalties and under-use/topic boosts.
const (
	scoreBase           = 1.0
	penaltyLastSpeaker  = 0.8
	penaltyRecentWindow = 0.6
	penaltyPreviousTurn = 0.4
	boostUnderUsed      = 0.5
	boostTopicMatch     = 0.5
	underUseRatio       = 0.8
	secondSpeakerOdds   = 0.4
)

// selectSpeakers decides the engaged subset for this turn and increments
// the selected personas' cumulative turn counts.
func (e *Engine) selectSpeakers(ctx context.Context, st *State) (stepOutput, error) {
	if len(st.Personas) == 0 {
		st.note("select: empty roster")
		st.Engaged = nil
		return stepOutput{state: st}, nil
	}

	cls := st.Classification
	if cls == nil {
		cls = &Classification{Intent: IntentGeneral, Confidence: confidenceGeneralLow}
	}

	var engaged []persona.Persona

	switch {
	case st.Policy.RequireAllPersonas:
		engaged = append(engaged, st.Personas...)
		st.note("select: policy requires all personas")

	case cls.Intent == IntentTargeted:
		for _, name := range cls.TargetPersonas {
			if p, ok := persona.ByName(st.Personas, name); ok {
				engaged = append(engaged, p)
			}
		}
		st.note(fmt.Sprintf("select: targeted %s", strings.Join(cls.TargetPersonas, ", ")))

	case cls.Intent == IntentFollowUp:
		if p, ok := persona.ByName(st.Personas, st.LastSpeaker); ok {
			engaged = append(engaged, p)
		}
		// occasionally add a second voice for variety
		if e.rng.Float64() < secondSpeakerOdds {
			if extra, ok := e.pickVarietySpeaker(st, engaged); ok {
				engaged = append(engaged, extra)
				st.note(fmt.Sprintf("select: follow-up with extra speaker %s", extra.Name))
			}
		}
		if len(engaged) == 1 {
			st.note(fmt.Sprintf("select: follow-up to %s", st.LastSpeaker))
		}

	default:
		engaged = e.selectByFairness(st, cls)
	}

	// Forced round-robin order overrides everything.
	if order := st.Policy.SpeakingOrder; len(order) > 0 {
		name := order[st.TurnCount%len(order)]
		if p, ok := persona.ByName(st.Personas, name); ok {
			engaged = []persona.Persona{p}
			st.note(fmt.Sprintf("select: forced speaking order -> %s", name))
		}
	}

	// A one-persona roster always answers; clearing lastSpeaker lets it
	// speak on consecutive turns.
	if len(st.Personas) == 1 {
		engaged = []persona.Persona{st.Personas[0]}
		st.LastSpeaker = ""
		st.note("select: single-persona roster, lastSpeaker cleared")
	} else if st.LastSpeaker != "" {
		// No persona answers itself twice within one exchange.
		engaged = excludeByName(engaged, st.LastSpeaker)
		if len(engaged) == 0 {
			if fallback, ok := anyOtherPersona(st.Personas, st.LastSpeaker); ok {
				engaged = []persona.Persona{fallback}
				st.note(fmt.Sprintf("select: fell back to %s after excluding last speaker", fallback.Name))
			} else {
				engaged = []persona.Persona{st.Personas[0]}
				st.note("select: last-resort fallback to first roster member")
			}
		}
	}

	for _, p := range engaged {
		st.TurnCounts[p.Name]++
	}
	st.Engaged = engaged

	e.logger.Debug("selected speakers",
		zap.Strings("engaged", persona.Names(engaged)),
		zap.String("intent", string(cls.Intent)))

	return stepOutput{state: st}, nil
}

// selectByFairness runs the fairness-weighted scorer for general intent
// and keeps the top candidates, count scaled by classification confidence.
func (e *Engine) selectByFairness(st *State, cls *Classification) []persona.Persona {
	type scored struct {
		p     persona.Persona
		score float64
	}

	avg := averageTurnCount(st)
	candidates := make([]scored, 0, len(st.Personas))
	for _, p := range st.Personas {
		candidates = append(candidates, scored{p: p, score: e.fairnessScore(st, p, avg, cls.Topic)})
	}

	// stable sort keeps roster order on ties
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	count := int(math.Round(cls.Confidence * 3))
	if count < 2 {
		count = 2
	}
	if count > 3 {
		count = 3
	}

	var out []persona.Persona
	for _, c := range candidates {
		if len(out) == count {
			break
		}
		if c.score <= 0 {
			continue
		}
		out = append(out, c.p)
	}
	st.note(fmt.Sprintf("select: fairness scorer picked %s", strings.Join(persona.Names(out), ", ")))
	return out
}

// fairnessScore computes one persona's selection weight.
func (e *Engine) fairnessScore(st *State, p persona.Persona, avgTurns float64, topic string) float64 {
	score := scoreBase

	if p.Name == st.LastSpeaker {
		score -= penaltyLastSpeaker
	}
	recent := st.RecentSpeakers
	if len(recent) > 2 {
		recent = recent[len(recent)-2:]
	}
	for _, name := range recent {
		if name == p.Name {
			score -= penaltyRecentWindow
			break
		}
	}
	if len(st.RecentSpeakers) > 0 && st.RecentSpeakers[len(st.RecentSpeakers)-1] == p.Name {
		score -= penaltyPreviousTurn
	}

	if avgTurns > 0 && float64(st.TurnCounts[p.Name]) < underUseRatio*avgTurns {
		score += boostUnderUsed
	}

	if topic != "" && topic != "general_inquiry" {
		needle := strings.ReplaceAll(topic, "_", " ")
		if strings.Contains(p.ProfileText(), needle) {
			score += boostTopicMatch
		}
	}

	return score
}

// pickVarietySpeaker finds a persona outside the current selection and not
// the immediately previous speaker.
func (e *Engine) pickVarietySpeaker(st *State, taken []persona.Persona) (persona.Persona, bool) {
	last := ""
	if len(st.RecentSpeakers) > 0 {
		last = st.RecentSpeakers[len(st.RecentSpeakers)-1]
	}
	for _, p := range st.Personas {
		if p.Name == last {
			continue
		}
		if _, ok := persona.ByName(taken, p.Name); ok {
			continue
		}
		return p, true
	}
	return persona.Persona{}, false
}

// routeAfterSelect sends collaborative turns to the discussion generator
// and everything else to individual responses.
func routeAfterSelect(st *State) Step {
	if st.Classification != nil && st.Classification.CollaborationGoal != "" && len(st.Engaged) > 1 {
		return StepCollaborate
	}
	return StepRespond
}

func averageTurnCount(st *State) float64 {
	if len(st.Personas) == 0 {
		return 0
	}
	total := 0
	for _, p := range st.Personas {
		total += st.TurnCounts[p.Name]
	}
	return float64(total) / float64(len(st.Personas))
}

func excludeByName(roster []persona.Persona, name string) []persona.Persona {
	out := roster[:0]
	for _, p := range roster {
		if p.Name != name {
			out = append(out, p)
		}
	}
	return out
}

func anyOtherPersona(roster []persona.Persona, name string) (persona.Persona, bool) {
	for _, p := range roster {
		if p.Name != name {
			return p, true
		}
	}
	return persona.Persona{}, false
}
