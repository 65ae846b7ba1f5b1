package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	views := Aggregate([]FilteredMatch{
		{Skill: "stats", CourseID: 2, LOID: 20, Score: 0.7, SubjectCode: "B", CLOText: "sample"},
		{Skill: "python", CourseID: 1, LOID: 10, Score: 0.8, SubjectCode: "A", CLOText: "code", Reason: "core"},
		{Skill: "stats", CourseID: 1, LOID: 11, Score: 0.6, SubjectCode: "A", CLOText: "test"},
		{Skill: "stats", CourseID: 1, LOID: 10, Score: 0.9, SubjectCode: "A", CLOText: "code", Reason: "core"},
		{Skill: "python", CourseID: 3, LOID: 30, Score: 0.7, SubjectCode: "C", CLOText: "other"},
	})

	require.Len(t, views, 3)
	assert.Equal(t, []uint{1, 2, 3}, []uint{views[0].CourseID, views[1].CourseID, views[2].CourseID},
		"highest score first, equal scores by course id")

	first := views[0]
	assert.Equal(t, 0.9, first.MaxScore)
	assert.Equal(t, []string{"python", "stats"}, first.Skills)
	assert.Equal(t, []string{"core"}, first.Reasons)
	require.Len(t, first.Outcomes, 2)
	assert.Equal(t, uint(10), first.Outcomes[0].LOID)
	assert.Equal(t, 0.9, first.Outcomes[0].Score)
	assert.Equal(t, []string{"python", "stats"}, first.Outcomes[0].Skills)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}
