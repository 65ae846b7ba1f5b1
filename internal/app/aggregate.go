package app

import "sort"

// FilteredMatch is one outcome that survived relevance filtering for a skill.
type FilteredMatch struct {
	Skill       string
	CourseID    uint
	LOID        uint
	Score       float64
	Relevance   int
	SubjectCode string
	CourseName  string
	CLOText     string
	Reason      string
}

type MatchedOutcome struct {
	LOID   uint     `json:"lo_id"`
	Text   string   `json:"text"`
	Score  float64  `json:"score"`
	Skills []string `json:"skills"`
}

// CourseView rolls up every skill and outcome that matched one course.
type CourseView struct {
	CourseID    uint             `json:"course_id"`
	SubjectCode string           `json:"subject_code"`
	CourseName  string           `json:"course_name"`
	Skills      []string         `json:"skills"`
	Outcomes    []MatchedOutcome `json:"outcomes"`
	Reasons     []string         `json:"reasons,omitempty"`
	MaxScore    float64          `json:"max_score"`
}

// Aggregate groups matches by course. Courses are ordered by their highest
// score, then by ascending course id.
func Aggregate(matches []FilteredMatch) []CourseView {
	byCourse := make(map[uint]*CourseView)
	order := make([]uint, 0)

	for _, m := range matches {
		view, ok := byCourse[m.CourseID]
		if !ok {
			view = &CourseView{
				CourseID:    m.CourseID,
				SubjectCode: m.SubjectCode,
				CourseName:  m.CourseName,
				MaxScore:    m.Score,
			}
			byCourse[m.CourseID] = view
			order = append(order, m.CourseID)
		}
		if m.Score > view.MaxScore {
			view.MaxScore = m.Score
		}
		view.Skills = appendUnique(view.Skills, m.Skill)
		if m.Reason != "" {
			view.Reasons = appendUnique(view.Reasons, m.Reason)
		}
		view.addOutcome(m)
	}

	views := make([]CourseView, 0, len(order))
	for _, id := range order {
		views = append(views, *byCourse[id])
	}
	sort.SliceStable(views, func(i, j int) bool {
		if views[i].MaxScore != views[j].MaxScore {
			return views[i].MaxScore > views[j].MaxScore
		}
		return views[i].CourseID < views[j].CourseID
	})
	return views
}

func (v *CourseView) addOutcome(m FilteredMatch) {
	for i := range v.Outcomes {
		o := &v.Outcomes[i]
		if o.LOID != m.LOID {
			continue
		}
		if m.Score > o.Score {
			o.Score = m.Score
		}
		o.Skills = appendUnique(o.Skills, m.Skill)
		return
	}
	v.Outcomes = append(v.Outcomes, MatchedOutcome{
		LOID:   m.LOID,
		Text:   m.CLOText,
		Score:  m.Score,
		Skills: []string{m.Skill},
	})
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
