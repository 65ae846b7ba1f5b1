package model

import "time"

type Course struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	SubjectCode string    `gorm:"size:32;not null;index" json:"subject_code"`
	Name        string    `gorm:"size:256;not null" json:"name"`
	CampusID    uint      `gorm:"not null;index" json:"campus_id"`
	FacultyID   uint      `gorm:"not null;index" json:"faculty_id"`
	IsGenEd     bool      `gorm:"not null;default:false" json:"is_gen_ed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Course) TableName() string { return "courses" }

// CourseOffering is one run of a course in an academic year and semester.
type CourseOffering struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CourseID     uint      `gorm:"not null;index" json:"course_id"`
	AcademicYear int       `gorm:"not null;index" json:"academic_year"`
	Semester     int       `gorm:"not null" json:"semester"`
	CreatedAt    time.Time `json:"created_at"`
}

func (CourseOffering) TableName() string { return "course_offerings" }

// CourseOfferingOutcome links a learning outcome to an offering with the
// outcome number used in that offering's syllabus.
type CourseOfferingOutcome struct {
	ID               uint `gorm:"primaryKey" json:"id"`
	CourseOfferingID uint `gorm:"not null;index" json:"course_offering_id"`
	CLOID            uint `gorm:"column:clo_id;not null;index" json:"clo_id"`
	CLONo            int  `gorm:"column:clo_no;not null" json:"clo_no"`
}

func (CourseOfferingOutcome) TableName() string { return "course_offering_outcomes" }
