package patterns

import (
	"context"
	"math"
	"sort"
)

// TypeStats aggregates the patterns of one task type.
type TypeStats struct {
	Count          int     `json:"count"`
	Successful     int     `json:"successful"`
	AverageQuality float64 `json:"average_quality"`
}

// SkillCount is how often a skill appears across patterns.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// Stats is the overview returned by Store.Stats.
type Stats struct {
	Total          int                  `json:"total_patterns"`
	Successful     int                  `json:"successful"`
	SuccessRate    float64              `json:"success_rate"`
	AverageQuality float64              `json:"average_quality"`
	TotalReuses    int                  `json:"total_reuses"`
	ByTaskType     map[string]TypeStats `json:"by_task_type"`
	TopSkills      []SkillCount         `json:"top_skills"`
	Recovered      bool                 `json:"recovered"`
	Warnings       []string             `json:"warnings,omitempty"`
}

// Stats summarises the store. A corrupt document yields empty stats with
// Recovered set.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	doc, rep, err := s.store.Load(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := summarize(doc.Patterns)
	st.Recovered = rep.Recovered()
	st.Warnings = rep.Warnings()
	return st, nil
}

func summarize(all []Pattern) Stats {
	st := Stats{
		Total:      len(all),
		ByTaskType: make(map[string]TypeStats),
		TopSkills:  []SkillCount{},
	}
	if len(all) == 0 {
		return st
	}

	var quality float64
	qualityByType := make(map[string]float64)
	skills := make(map[string]int)
	for i := range all {
		p := &all[i]
		ts := st.ByTaskType[p.TaskType]
		ts.Count++
		if p.Success {
			st.Successful++
			ts.Successful++
		}
		st.ByTaskType[p.TaskType] = ts
		quality += p.QualityScore
		qualityByType[p.TaskType] += p.QualityScore
		st.TotalReuses += p.ReuseCount
		for _, sk := range p.SkillsUsed {
			skills[sk]++
		}
	}

	st.SuccessRate = round2(float64(st.Successful) / float64(st.Total))
	st.AverageQuality = round2(quality / float64(st.Total))
	for t, ts := range st.ByTaskType {
		ts.AverageQuality = round2(qualityByType[t] / float64(ts.Count))
		st.ByTaskType[t] = ts
	}

	for sk, n := range skills {
		st.TopSkills = append(st.TopSkills, SkillCount{Skill: sk, Count: n})
	}
	sort.Slice(st.TopSkills, func(i, j int) bool {
		if st.TopSkills[i].Count != st.TopSkills[j].Count {
			return st.TopSkills[i].Count > st.TopSkills[j].Count
		}
		return st.TopSkills[i].Skill < st.TopSkills[j].Skill
	})
	if len(st.TopSkills) > topSkills {
		st.TopSkills = st.TopSkills[:topSkills]
	}
	return st
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
