package engine

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/player"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rewards"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/domain/rules"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/events"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/infra/storage"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/logger"
	"github.com/disparter/toguwaka-discord-game-sub000/internal/platform/metrics"
)

// TechniqueLearnChance is the per-correct-answer roll to learn a technique.
const TechniqueLearnChance = 0.30

// Subjects taught at the academy, with their base difficulty and the
// techniques a good answer can unlock.
var subjectCatalog = []struct {
	Name       string
	Difficulty int
	Techniques []string
}{
	{"combate_corporal", 3, []string{"Golpe Fantasma", "Postura de Ferro"}},
	{"estrategia", 4, []string{"Leitura de Campo", "Gambito Duplo"}},
	{"historia_da_academia", 2, []string{"Memória Eidética"}},
	{"alquimia", 4, []string{"Transmutação Menor", "Catalisador Rápido"}},
	{"educacao_fisica", 1, []string{"Fôlego Extra"}},
	{"etiqueta", 2, []string{"Palavra de Honra"}},
}

// subjectQuestions is the per-subject question bank. Difficulty is per
// question on the same 1-5 scale as the subject.
var subjectQuestions = map[string][]events.Question{
	"combate_corporal": {
		{Prompt: "Qual postura protege o flanco esquerdo?", Options: []string{"Guarda alta", "Guarda cruzada", "Guarda baixa"}, Answer: 1, Difficulty: 3},
		{Prompt: "O contra-ataque ideal após uma finta começa com:", Options: []string{"Recuo", "Pivô", "Avanço direto"}, Answer: 1, Difficulty: 4},
		{Prompt: "Quantos pontos vitais ensina o manual do primeiro ano?", Options: []string{"Cinco", "Sete", "Nove"}, Answer: 2, Difficulty: 2},
	},
	"estrategia": {
		{Prompt: "Em inferioridade numérica, o terreno preferido é:", Options: []string{"Campo aberto", "Corredor estreito", "Elevação exposta"}, Answer: 1, Difficulty: 4},
		{Prompt: "O primeiro princípio do cerco é:", Options: []string{"Velocidade", "Isolamento", "Intimidação"}, Answer: 1, Difficulty: 5},
		{Prompt: "Uma retirada fingida serve para:", Options: []string{"Poupar energia", "Quebrar a formação inimiga", "Ganhar tempo"}, Answer: 1, Difficulty: 3},
	},
	"historia_da_academia": {
		{Prompt: "Quem fundou a Academia Tokugawa?", Options: []string{"Ieyasu", "Hidetada", "Iemitsu"}, Answer: 0, Difficulty: 1},
		{Prompt: "O primeiro torneio interno aconteceu em qual década da fundação?", Options: []string{"Primeira", "Segunda", "Terceira"}, Answer: 1, Difficulty: 3},
		{Prompt: "O lema gravado no portão principal fala de:", Options: []string{"Força", "Disciplina", "Honra"}, Answer: 2, Difficulty: 2},
	},
	"alquimia": {
		{Prompt: "O solvente universal dos compêndios antigos é:", Options: []string{"Mercúrio", "Álcool destilado", "Água régia"}, Answer: 2, Difficulty: 4},
		{Prompt: "Transmutação estável exige equilíbrio de:", Options: []string{"Calor e pressão", "Massa e intenção", "Luz e sombra"}, Answer: 1, Difficulty: 5},
		{Prompt: "A cor de um catalisador saturado é:", Options: []string{"Âmbar", "Violeta", "Verde"}, Answer: 0, Difficulty: 3},
	},
	"educacao_fisica": {
		{Prompt: "O aquecimento padrão começa pelos:", Options: []string{"Tornozelos", "Ombros", "Pulsos"}, Answer: 0, Difficulty: 1},
		{Prompt: "Quantas voltas tem o circuito da manhã?", Options: []string{"Três", "Cinco", "Oito"}, Answer: 1, Difficulty: 1},
		{Prompt: "Respiração em corrida longa segue o ritmo:", Options: []string{"2-2", "3-1", "1-3"}, Answer: 0, Difficulty: 2},
	},
	"etiqueta": {
		{Prompt: "Ao cumprimentar um veterano, inclina-se:", Options: []string{"A cabeça", "O tronco", "Nada, aperta-se a mão"}, Answer: 1, Difficulty: 2},
		{Prompt: "O assento de honra em uma sala fica:", Options: []string{"Perto da porta", "Longe da porta", "Ao centro"}, Answer: 1, Difficulty: 3},
		{Prompt: "Interromper um duelo formal é permitido a:", Options: []string{"Qualquer aluno", "Apenas árbitros", "Ninguém"}, Answer: 1, Difficulty: 2},
	},
}

// QuizSystem runs the daily subject: one subject per day, one answer per
// player, graded against intellect and difficulty.
type QuizSystem struct {
	registry *events.Registry
	applier  *rewardApplier
	grades   storage.GradeStore
	rand     *Rand
	logger   *logger.Logger
	announce Announcer

	// weeklyTheme biases subject selection toward the themed subject.
	weeklyTheme string
}

// NewQuizSystem wires the daily-subject lifecycle.
func NewQuizSystem(registry *events.Registry, applier *rewardApplier, grades storage.GradeStore, rnd *Rand, log *logger.Logger, announce Announcer, weeklyTheme string) *QuizSystem {
	return &QuizSystem{
		registry:    registry,
		applier:     applier,
		grades:      grades,
		rand:        rnd,
		logger:      log,
		announce:    announce,
		weeklyTheme: weeklyTheme,
	}
}

// endOfDay returns the next local midnight after t. Daily events stay open
// until the next reset replaces them.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}

// SelectDailySubject picks the day's subject and opens the quiz event, valid
// until the next midnight reset. Called by the daily reset, and by recovery
// when a restart finds no subject open. When a weekly theme names a known
// subject it is picked with 70% probability, the rest of the catalog
// splitting the remainder uniformly.
func (qs *QuizSystem) SelectDailySubject(channelRef string, now time.Time) *events.WorldEvent {
	idx := -1
	qs.rand.Do(func(r *rand.Rand) {
		themed := qs.themeIndex()
		if themed >= 0 && r.Float64() < 0.70 {
			idx = themed
			return
		}
		idx = r.Intn(len(subjectCatalog))
		if idx == themed && len(subjectCatalog) > 1 {
			idx = (idx + 1) % len(subjectCatalog)
		}
	})

	subject := subjectCatalog[idx]
	payload := &events.SubjectPayload{
		Subject:    subject.Name,
		Difficulty: subject.Difficulty,
		Questions:  subjectQuestions[subject.Name],
	}

	e := &events.WorldEvent{
		ID:         events.NewEventID(events.EventTypeDailySubject, now),
		Type:       events.EventTypeDailySubject,
		ChannelRef: channelRef,
		StartTime:  now,
		EndTime:    endOfDay(now),
		Payload:    payload,
	}
	qs.registry.Insert(e)

	qs.logger.Event("DAILY_SUBJECT", "SYSTEM", subject.Name)
	qs.announce.Announce("daily_subject", channelRef, map[string]any{
		"event_id":  e.ID,
		"subject":   subject.Name,
		"questions": len(payload.Questions),
	})
	return e
}

func (qs *QuizSystem) themeIndex() int {
	for i, s := range subjectCatalog {
		if s.Name == qs.weeklyTheme {
			return i
		}
	}
	return -1
}

// Answer grades one player's attempt at today's quiz. Each player answers at
// most once per day regardless of correctness.
func (qs *QuizSystem) Answer(ctx context.Context, eventID, playerID string, questionIndex, optionIndex int) QuizResult {
	p, err := qs.applier.players.GetPlayer(ctx, playerID)
	if err != nil {
		qs.logger.Error("Quiz answer: player load failed: " + err.Error())
		return QuizResult{NotFound: true}
	}
	if p == nil {
		return QuizResult{NotFound: true}
	}

	now := time.Now()
	var res QuizResult
	var subject string
	var subjectDifficulty int
	answered := false

	found := qs.registry.WithEvent(eventID, func(e *events.WorldEvent) {
		sp, ok := e.Payload.(*events.SubjectPayload)
		if !ok || e.Expired(now) {
			return
		}
		if questionIndex < 0 || questionIndex >= len(sp.Questions) {
			return
		}
		if e.HasParticipant(playerID) {
			res.AlreadyAnswered = true
			return
		}
		e.AddParticipant(playerID)
		answered = true

		q := sp.Questions[questionIndex]
		res.Correct = optionIndex == q.Answer
		res.Grade = rules.QuizGrade(res.Correct, q.Difficulty, sp.Difficulty, p.Intellect)
		subject = sp.Subject
		subjectDifficulty = sp.Difficulty
	})

	if !found {
		res.NotFound = true
		return res
	}
	if res.AlreadyAnswered || !answered {
		if !answered && !res.AlreadyAnswered {
			res.NotFound = true
		}
		return res
	}

	if err := qs.grades.UpdatePlayerGrade(ctx, playerID, subject, res.Grade, now); err != nil {
		qs.logger.Error("Grade persist failed for " + playerID + ": " + err.Error())
	}

	base := rewards.Delta{EXP: rules.QuizEXP(res.Grade, subjectDifficulty)}
	res.Rewards = qs.applier.withClubBuffs(base, p.ClubID, now)
	if _, err := qs.applier.grant(ctx, playerID, res.Rewards); err != nil {
		qs.logger.Error("Quiz reward grant failed for " + playerID + ": " + err.Error())
	}

	if res.Correct {
		res.TechniqueLearned = qs.maybeLearnTechnique(ctx, p, subject)
	}

	// Mirror the updated participant list without removing the event; the
	// quiz stays open for other players.
	qs.registry.Sync(eventID)
	metrics.Get().RecordResolution()

	res.OK = true
	qs.logger.Event("QUIZ_ANSWERED", playerID, subject)
	return res
}

// maybeLearnTechnique rolls the learn chance against the subject's technique
// pool. Returns the learned technique name, or empty.
func (qs *QuizSystem) maybeLearnTechnique(ctx context.Context, p *player.Player, subject string) string {
	var pool []string
	for _, s := range subjectCatalog {
		if s.Name == subject {
			pool = p.Unknown(s.Techniques)
			break
		}
	}
	if len(pool) == 0 {
		return ""
	}

	learned := ""
	qs.rand.Do(func(r *rand.Rand) {
		if r.Float64() < TechniqueLearnChance {
			learned = pool[r.Intn(len(pool))]
		}
	})
	if learned == "" {
		return ""
	}

	p.Learn(learned)
	if err := qs.applier.players.UpdatePlayer(ctx, p.ID, map[string]any{"techniques": p.Techniques}); err != nil {
		qs.logger.Error("Technique persist failed for " + p.ID + ": " + err.Error())
		return ""
	}
	qs.logger.Event("TECHNIQUE_LEARNED", p.ID, learned)
	return learned
}

// HasOpenSubject reports whether a daily subject is currently answerable.
func (qs *QuizSystem) HasOpenSubject(now time.Time) bool {
	for _, rec := range qs.registry.SnapshotRecords() {
		if rec.Type == string(events.EventTypeDailySubject) && !rec.Completed && rec.EndTime.After(now) {
			return true
		}
	}
	return false
}

// AnnounceSubjectDay posts the 09:00 "dia de matéria" marker for the active
// subject, if one is open.
func (qs *QuizSystem) AnnounceSubjectDay(channelRef string, now time.Time) *events.WorldEvent {
	subject := ""
	for _, rec := range qs.registry.SnapshotRecords() {
		if rec.Type == string(events.EventTypeDailySubject) && !rec.Completed {
			var sp events.SubjectPayload
			if err := json.Unmarshal(rec.Data, &sp); err == nil {
				subject = sp.Subject
			}
		}
	}
	if subject == "" {
		return nil
	}

	e := &events.WorldEvent{
		ID:         events.NewEventID(events.EventTypeDiaDeMateria, now),
		Type:       events.EventTypeDiaDeMateria,
		ChannelRef: channelRef,
		StartTime:  now,
		EndTime:    endOfDay(now),
		Payload:    &events.MateriaPayload{Subject: subject},
	}
	qs.registry.Insert(e)
	qs.announce.Announce("dia_de_materia", channelRef, map[string]any{"subject": subject})
	return e
}
