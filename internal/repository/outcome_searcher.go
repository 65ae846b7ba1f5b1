package repository

import (
	"context"
	"fmt"
	"strings"

	"course-advisor/internal/model"
)

// OutcomeQuery is a k-NN request over outcomes embedded in one dimension family.
type OutcomeQuery struct {
	Vector    []float32
	Dimension int
	// TopN bounds the number of distinct similarity ranks returned; ties at
	// the last rank are all kept.
	TopN    int
	Filters model.RetrievalFilters
}

// OutcomeHit is one raw search row. An outcome linked to several offerings
// yields one row per link.
type OutcomeHit struct {
	LOID        uint    `gorm:"column:lo_id"`
	CourseID    uint    `gorm:"column:course_id"`
	CLOText     string  `gorm:"column:clo_text"`
	CLONo       *int    `gorm:"column:clo_no"`
	SubjectCode string  `gorm:"column:subject_code"`
	CourseName  string  `gorm:"column:course_name"`
	CampusID    uint    `gorm:"column:campus_id"`
	FacultyID   uint    `gorm:"column:faculty_id"`
	Similarity  float64 `gorm:"column:similarity"`
}

// OutcomeSearcher hides the store-specific nearest neighbour query.
type OutcomeSearcher interface {
	SearchOutcomes(ctx context.Context, q OutcomeQuery) ([]OutcomeHit, error)
}

const outcomeColumns = `clo.id AS lo_id, clo.course_id, clo.text AS clo_text, coo.clo_no,
c.subject_code, c.name AS course_name, c.campus_id, c.faculty_id`

const outcomeJoins = `FROM course_learning_outcomes clo
JOIN embedding_vectors ev ON ev.id = clo.vector_id
JOIN courses c ON c.id = clo.course_id
LEFT JOIN course_offering_outcomes coo ON coo.clo_id = clo.id`

// outcomeConditions returns the WHERE conditions shared by every searcher.
// The dimension must already be validated.
func outcomeConditions(dimension int, f model.RetrievalFilters) ([]string, []interface{}) {
	conds := []string{
		fmt.Sprintf("clo.has_embedding_%d = ?", dimension),
		fmt.Sprintf("ev.embedding_%d IS NOT NULL", dimension),
	}
	args := []interface{}{true}

	if f.CampusID != nil {
		conds = append(conds, "c.campus_id = ?")
		args = append(args, *f.CampusID)
	}
	if f.FacultyID != nil {
		conds = append(conds, "c.faculty_id = ?")
		args = append(args, *f.FacultyID)
	}
	if f.IsGenEd != nil {
		conds = append(conds, "c.is_gen_ed = ?")
		args = append(args, *f.IsGenEd)
	}
	if len(f.AcademicYearSemesters) > 0 {
		entries := make([]string, 0, len(f.AcademicYearSemesters))
		for _, e := range f.AcademicYearSemesters {
			if len(e.Semesters) == 0 {
				entries = append(entries, "co.academic_year = ?")
				args = append(args, e.AcademicYear)
				continue
			}
			entries = append(entries, "(co.academic_year = ? AND co.semester IN ?)")
			args = append(args, e.AcademicYear, e.Semesters)
		}
		conds = append(conds, "EXISTS (SELECT 1 FROM course_offerings co WHERE co.course_id = c.id AND ("+
			strings.Join(entries, " OR ")+"))")
	}
	return conds, args
}
