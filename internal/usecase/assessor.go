package usecase

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"agribid-backend/internal/domain"
)

var assessmentScores = []int{85, 88, 92, 78, 95, 82}

// simulatedAssessor stands in for image-based grading until a real model exists.
type simulatedAssessor struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulatedAssessor returns an assessor drawing from rng. A nil rng uses a
// randomly seeded source.
func NewSimulatedAssessor(rng *rand.Rand) domain.QualityAssessor {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &simulatedAssessor{rng: rng}
}

func (a *simulatedAssessor) Assess(images []string) (domain.QualityGrade, domain.AIAssessment) {
	a.mu.Lock()
	score := assessmentScores[a.rng.IntN(len(assessmentScores))]
	confidence := a.rng.IntN(20) + 80
	a.mu.Unlock()

	grade := GradeForScore(score)
	return grade, domain.AIAssessment{
		Score:      score,
		Confidence: confidence,
		Notes:      fmt.Sprintf("Quality assessment based on image analysis. %s quality detected.", gradeLabel(grade)),
	}
}

func GradeForScore(score int) domain.QualityGrade {
	switch {
	case score >= 90:
		return domain.GradeA
	case score >= 80:
		return domain.GradeB
	case score >= 70:
		return domain.GradeC
	default:
		return domain.GradeD
	}
}

func gradeLabel(g domain.QualityGrade) string {
	switch g {
	case domain.GradeA:
		return "Excellent"
	case domain.GradeB:
		return "Good"
	case domain.GradeC:
		return "Fair"
	default:
		return "Poor"
	}
}
