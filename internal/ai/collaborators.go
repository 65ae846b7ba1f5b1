package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

type Category string

const (
	CategoryRelevant   Category = "relevant"
	CategoryIrrelevant Category = "irrelevant"
	CategoryDangerous  Category = "dangerous"
)

type Classification struct {
	Category Category `json:"category" validate:"required,oneof=relevant irrelevant dangerous"`
	Reason   string   `json:"reason"`
	Usage    Usage    `json:"-"`
}

type Profile struct {
	Summary   string   `json:"summary" validate:"required"`
	Interests []string `json:"interests"`
	Level     string   `json:"level"`
	Usage     Usage    `json:"-"`
}

type ExpandedSkill struct {
	Skill  string `json:"skill" validate:"required"`
	Reason string `json:"reason"`
}

type SkillExpansion struct {
	Skills []ExpandedSkill `json:"skills" validate:"min=1,max=6,dive"`
	Usage  Usage           `json:"-"`
}

// CourseCandidate is a retrieved course shown to the relevance scorer.
type CourseCandidate struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Outcomes []string `json:"outcomes"`
}

type ScoredCourse struct {
	Code   string `json:"code" validate:"required"`
	Name   string `json:"name"`
	Score  int    `json:"score" validate:"min=0,max=3"`
	Reason string `json:"reason"`
}

type RelevanceResult struct {
	Courses []ScoredCourse `json:"courses" validate:"dive"`
	Usage   Usage          `json:"-"`
}

// SynthesisCourse is one aggregated course passed to the answer writer.
type SynthesisCourse struct {
	Code     string   `json:"code"`
	Name     string   `json:"name"`
	Skills   []string `json:"skills"`
	Outcomes []string `json:"outcomes"`
	Reasons  []string `json:"reasons,omitempty"`
}

type SynthesisContext struct {
	Profile Profile           `json:"profile"`
	Courses []SynthesisCourse `json:"courses"`
}

type Synthesis struct {
	Answer            string `json:"answer" validate:"required"`
	SuggestedFollowUp string `json:"suggested_follow_up"`
	Usage             Usage  `json:"-"`
}

// Assistant implements every pipeline LLM step over one chat client.
type Assistant struct {
	chat *ChatClient
}

func NewAssistant(chat *ChatClient) *Assistant {
	return &Assistant{chat: chat}
}

const classifyPrompt = `You screen questions sent to a university course advisor.
Reply with JSON {"category": "relevant"|"irrelevant"|"dangerous", "reason": string}.
"relevant" means the learner asks about studying, skills, careers or courses.
"dangerous" means the request seeks harm to people or systems.
Everything else is "irrelevant".`

func (a *Assistant) Classify(ctx context.Context, question string) (*Classification, error) {
	var out Classification
	usage, err := a.chat.CompleteJSON(ctx, classifyPrompt, question, &out)
	if err != nil {
		return nil, fmt.Errorf("classify question failed: %w", err)
	}
	out.Usage = usage
	return &out, nil
}

const profilePrompt = `Describe the learner behind the question.
Reply with JSON {"summary": string, "interests": [string], "level": "beginner"|"intermediate"|"advanced"}.`

func (a *Assistant) BuildProfile(ctx context.Context, question string) (*Profile, error) {
	var out Profile
	usage, err := a.chat.CompleteJSON(ctx, profilePrompt, question, &out)
	if err != nil {
		return nil, fmt.Errorf("build learner profile failed: %w", err)
	}
	out.Usage = usage
	return &out, nil
}

const expandPrompt = `List the concrete skills the learner needs to reach their goal.
Reply with JSON {"skills": [{"skill": string, "reason": string}]} with 1 to 6 entries.
Write each skill in the language of the question.`

func (a *Assistant) ExpandSkills(ctx context.Context, question string, profile *Profile) (*SkillExpansion, error) {
	user := "Question: " + question
	if profile != nil {
		user += "\nLearner: " + profile.Summary
		if len(profile.Interests) > 0 {
			user += "\nInterests: " + strings.Join(profile.Interests, ", ")
		}
		if profile.Level != "" {
			user += "\nLevel: " + profile.Level
		}
	}

	var out SkillExpansion
	usage, err := a.chat.CompleteJSON(ctx, expandPrompt, user, &out)
	if err != nil {
		return nil, fmt.Errorf("expand skills failed: %w", err)
	}
	out.Usage = usage
	return &out, nil
}

const relevancePrompt = `Score how well each course teaches the skill for this learner.
Use 0 (unrelated) to 3 (directly teaches it).
Reply with JSON {"courses": [{"code": string, "name": string, "score": 0-3, "reason": string}]}.`

func (a *Assistant) ScoreRelevance(ctx context.Context, question, skill string, courses []CourseCandidate) (*RelevanceResult, error) {
	payload, err := json.Marshal(courses)
	if err != nil {
		return nil, fmt.Errorf("marshal course candidates failed: %w", err)
	}
	user := fmt.Sprintf("Question: %s\nSkill: %s\nCourses: %s", question, skill, payload)

	var out RelevanceResult
	usage, err := a.chat.CompleteJSON(ctx, relevancePrompt, user, &out)
	if err != nil {
		return nil, fmt.Errorf("score relevance failed: %w", err)
	}
	out.Usage = usage
	return &out, nil
}

const synthesisPrompt = `You are a university course advisor. Answer the question using only the courses given.
Reply with JSON {"answer": string, "suggested_follow_up": string} in the language of the question.`

func (a *Assistant) Synthesize(ctx context.Context, question string, sc SynthesisContext) (*Synthesis, error) {
	payload, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("marshal synthesis context failed: %w", err)
	}
	user := fmt.Sprintf("Question: %s\nContext: %s", question, payload)

	var out Synthesis
	usage, err := a.chat.CompleteJSON(ctx, synthesisPrompt, user, &out)
	if err != nil {
		return nil, fmt.Errorf("synthesize answer failed: %w", err)
	}
	out.Usage = usage
	return &out, nil
}
