package engine

import (
	"context"
	"testing"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rules"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
)

func newQuizFixture(seed int64, theme string) (*fixture, *QuizSystem) {
	f := newFixture(seed)
	qs := NewQuizSystem(f.registry, f.applier, f.store, f.rand, f.logger, nopAnnouncer{}, theme)
	return f, qs
}

func TestSelectDailySubjectSpawnsQuiz(t *testing.T) {
	_, qs := newQuizFixture(1, "")
	e := qs.SelectDailySubject("sala", time.Now())
	sp, ok := e.Payload.(*events.SubjectPayload)
	if !ok {
		t.Fatalf("Expected SubjectPayload, got %T", e.Payload)
	}
	if sp.Subject == "" || len(sp.Questions) == 0 {
		t.Errorf("Expected a subject with questions, got %+v", sp)
	}
	if sp.Difficulty < 1 || sp.Difficulty > 5 {
		t.Errorf("Expected difficulty in [1,5], got %d", sp.Difficulty)
	}
}

func TestWeeklyThemeBiasesSubject(t *testing.T) {
	themed := 0
	const runs = 200
	for i := 0; i < runs; i++ {
		f, qs := newQuizFixture(int64(i), "alquimia")
		e := qs.SelectDailySubject("sala", time.Now())
		if e.Payload.(*events.SubjectPayload).Subject == "alquimia" {
			themed++
		}
		f.registry.Remove(e.ID)
	}
	// 70% bias plus the uniform share; anywhere clearly above uniform passes.
	if themed < runs/2 {
		t.Errorf("Expected themed subject to dominate, got %d/%d", themed, runs)
	}
}

func TestQuizAnswerAtMostOnce(t *testing.T) {
	f, qs := newQuizFixture(2, "")
	f.addPlayer("p1", 1)
	e := qs.SelectDailySubject("sala", time.Now())
	sp := e.Payload.(*events.SubjectPayload)

	ctx := context.Background()
	first := qs.Answer(ctx, e.ID, "p1", 0, sp.Questions[0].Answer)
	if !first.OK || !first.Correct {
		t.Fatalf("Expected correct first answer accepted, got %+v", first)
	}
	if first.Grade < rules.GradePassing {
		t.Errorf("Expected a passing grade for a correct answer at baseline intellect, got %.2f", first.Grade)
	}

	second := qs.Answer(ctx, e.ID, "p1", 0, sp.Questions[0].Answer)
	if second.OK || !second.AlreadyAnswered {
		t.Errorf("Expected repeat answer rejected, got %+v", second)
	}
}

func TestQuizGradePersisted(t *testing.T) {
	f, qs := newQuizFixture(3, "")
	f.addPlayer("p1", 1)
	e := qs.SelectDailySubject("sala", time.Now())
	sp := e.Payload.(*events.SubjectPayload)

	ctx := context.Background()
	res := qs.Answer(ctx, e.ID, "p1", 0, sp.Questions[0].Answer)

	avgs, _ := f.store.GetGradeAverages(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	got, ok := avgs["p1"][sp.Subject]
	if !ok {
		t.Fatalf("Expected a grade row for p1 in %s", sp.Subject)
	}
	if got != res.Grade {
		t.Errorf("Expected persisted grade %.2f, got %.2f", res.Grade, got)
	}
}

func TestQuizWrongAnswerStillGrades(t *testing.T) {
	f, qs := newQuizFixture(4, "")
	f.addPlayer("p1", 1)
	e := qs.SelectDailySubject("sala", time.Now())
	sp := e.Payload.(*events.SubjectPayload)

	wrong := (sp.Questions[0].Answer + 1) % len(sp.Questions[0].Options)
	res := qs.Answer(context.Background(), e.ID, "p1", 0, wrong)
	if !res.OK || res.Correct {
		t.Fatalf("Expected wrong answer accepted but marked incorrect, got %+v", res)
	}
	if res.Grade != 5.0 {
		t.Errorf("Expected base grade 5.0 at baseline intellect, got %.2f", res.Grade)
	}
	if res.TechniqueLearned != "" {
		t.Errorf("Expected no technique from a wrong answer, got %q", res.TechniqueLearned)
	}
}

func TestQuizQuestionIndexOutOfRange(t *testing.T) {
	f, qs := newQuizFixture(5, "")
	f.addPlayer("p1", 1)
	e := qs.SelectDailySubject("sala", time.Now())

	res := qs.Answer(context.Background(), e.ID, "p1", 99, 0)
	if res.OK || !res.NotFound {
		t.Errorf("Expected out-of-range question rejected, got %+v", res)
	}
}

func TestMonthlyGradingRewardsPassingSubjects(t *testing.T) {
	f := newFixture(6)
	f.addPlayer("p1", 1)
	f.addPlayer("p2", 1)
	gs := NewGradingSystem(f.store, f.applier, f.logger, nopAnnouncer{})

	ctx := context.Background()
	lastMonth := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	f.store.UpdatePlayerGrade(ctx, "p1", "alquimia", 8.0, lastMonth)
	f.store.UpdatePlayerGrade(ctx, "p1", "etiqueta", 7.0, lastMonth)
	f.store.UpdatePlayerGrade(ctx, "p2", "alquimia", 4.0, lastMonth)

	if err := gs.RunMonthly(ctx, "sala", time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("RunMonthly failed: %v", err)
	}

	p1, _ := f.store.GetPlayer(ctx, "p1")
	if p1.EXP != 100 || p1.Reputation != 20 {
		t.Errorf("Expected p1 rewarded (100 exp, 20 rep) for 2 passed subjects, got (%d, %d)", p1.EXP, p1.Reputation)
	}
	p2, _ := f.store.GetPlayer(ctx, "p2")
	if p2.EXP != 0 {
		t.Errorf("Expected p2 unrewarded with no passing average, got exp %d", p2.EXP)
	}
}
