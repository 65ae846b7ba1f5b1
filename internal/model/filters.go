package model

// AcademicYearSemesters selects offerings of one academic year. An empty
// Semesters list matches every semester of that year.
type AcademicYearSemesters struct {
	AcademicYear int   `json:"academic_year" binding:"required"`
	Semesters    []int `json:"semesters,omitempty"`
}

// RetrievalFilters scopes outcome search to courses. Nil fields are not
// applied. A course passes AcademicYearSemesters when any of its offerings
// matches any entry.
type RetrievalFilters struct {
	CampusID              *uint                   `json:"campus_id,omitempty"`
	FacultyID             *uint                   `json:"faculty_id,omitempty"`
	IsGenEd               *bool                   `json:"is_gen_ed,omitempty"`
	AcademicYearSemesters []AcademicYearSemesters `json:"academic_year_semesters,omitempty" binding:"omitempty,dive"`
}

// Matches reports whether a course with the given offerings passes the filters.
func (f RetrievalFilters) Matches(course Course, offerings []CourseOffering) bool {
	if f.CampusID != nil && course.CampusID != *f.CampusID {
		return false
	}
	if f.FacultyID != nil && course.FacultyID != *f.FacultyID {
		return false
	}
	if f.IsGenEd != nil && course.IsGenEd != *f.IsGenEd {
		return false
	}
	if len(f.AcademicYearSemesters) == 0 {
		return true
	}
	for _, o := range offerings {
		if o.CourseID != course.ID {
			continue
		}
		for _, entry := range f.AcademicYearSemesters {
			if entry.matches(o) {
				return true
			}
		}
	}
	return false
}

func (e AcademicYearSemesters) matches(o CourseOffering) bool {
	if o.AcademicYear != e.AcademicYear {
		return false
	}
	if len(e.Semesters) == 0 {
		return true
	}
	for _, s := range e.Semesters {
		if s == o.Semester {
			return true
		}
	}
	return false
}
