package rules

// Quiz grading constants.
const (
	GradeBase    = 5.0
	GradeMax     = 10.0
	GradePassing = 6.0
)

// QuizGrade computes the grade for one quiz answer.
//
// A correct answer earns a bonus proportional to the mean of the question and
// subject difficulties (difficulty scale 1-5, bonus spans the remaining 5
// points at mean difficulty 3). Intellect above the baseline of 5 adds
// 0.2 per point. The result is clamped to [0, 10].
func QuizGrade(correct bool, questionDifficulty, subjectDifficulty int, intellect int) float64 {
	grade := GradeBase

	if correct {
		meanDifficulty := float64(questionDifficulty+subjectDifficulty) / 2.0
		grade += (GradeMax - GradeBase) * (meanDifficulty / 3.0)
	}

	grade += 0.2 * float64(intellect-5)

	if grade < 0 {
		return 0
	}
	if grade > GradeMax {
		return GradeMax
	}
	return grade
}

// QuizEXP converts a grade into an experience reward before buffs.
func QuizEXP(grade float64, subjectDifficulty int) int {
	return int(grade * float64(subjectDifficulty+1))
}

// MonthlyGradeRewards converts the count of passed subjects into the
// month-end reward pair (exp, reputation).
func MonthlyGradeRewards(passedSubjects int) (exp int, reputation int) {
	return 50 * passedSubjects, 10 * passedSubjects
}
