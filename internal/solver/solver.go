// Package solver implements the per-profile workload: an authenticated quiz
// session answered with humanized pacing, backed by the word-history store.
//
// The scheduler treats this package as opaque; it only sees the Workload
// contract (run to completion, fail, or get cancelled).
package solver

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"lingbot/internal/config"
	"lingbot/internal/store"
	"lingbot/pkg/logx"
)

// AutoSolver answers one session's prompts the way a mediocre student would:
// variable delays, occasional distractions, deliberate mistakes for words it
// hasn't "memorized" yet, and synonym slips.
type AutoSolver struct {
	session *Session
	db      *store.Store
	log     logx.Logger
	cfg     config.SolverConfig
	rng     *rand.Rand

	seen map[int64]struct{}
}

func NewAutoSolver(session *Session, db *store.Store, log logx.Logger, cfg config.SolverConfig) *AutoSolver {
	return &AutoSolver{
		session: session,
		db:      db,
		log:     log,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		seen:    map[int64]struct{}{},
	}
}

func (a *AutoSolver) Run(ctx context.Context) error {
	userID := a.session.UserID()
	for i := 0; i < a.cfg.Runs; i++ {
		a.log.Info("starting session", logx.Int("n", i+1), logx.Int("of", a.cfg.Runs))
		kind := "next_session"
		if i == 0 {
			kind = "first_session"
		}
		if err := a.sleep(ctx, kind, 1); err != nil {
			return err
		}
		if err := a.distraction(ctx); err != nil {
			return err
		}

		for {
			word, err := a.session.NextWord(ctx)
			if err != nil {
				return err
			}
			if word == nil {
				break
			}
			if err := a.answerWord(ctx, word, userID); err != nil {
				return err
			}
			if err := a.sleep(ctx, "next_question", 1); err != nil {
				return err
			}
		}
		a.log.Info("session finished", logx.Int("n", i+1), logx.Int("of", a.cfg.Runs))
	}
	a.log.Info("all sessions finished")
	return nil
}

func (a *AutoSolver) answerWord(ctx context.Context, word *Word, userID int64) error {
	if word.Type == "marketing" {
		a.log.Debug("skipping marketing prompt")
		if err := a.sleep(ctx, "marketing_skip", 1); err != nil {
			return err
		}
		return a.distraction(ctx)
	}

	dbWord, err := a.db.GetWord(ctx, word.ID, userID)
	if err != nil {
		return err
	}
	synonyms, err := a.db.TranslateWords(ctx, SplitTranslations(word.Translations), userID)
	if err != nil {
		return err
	}
	a.log.Info("new prompt",
		logx.String("usage_example", word.UsageExample), logx.String("translations", word.Translations))

	if err := a.distraction(ctx); err != nil {
		return err
	}
	if err := a.sleep(ctx, "initial", 1); err != nil {
		return err
	}

	_, seenBefore := a.seen[word.ID]
	defer func() { a.seen[word.ID] = struct{}{} }()

	switch {
	case dbWord == nil && (len(synonyms) == 0 || !a.chance(a.cfg.SynonymChance)):
		a.log.Info("answer not in the db, sending nothing")
		if err := a.sleep(ctx, "give_up", 1); err != nil {
			return err
		}
		return a.sendNothing(ctx, word, userID)

	case dbWord == nil:
		a.log.Info("answer not in the db, but found a synonym")
		pick := synonyms[a.rng.Intn(len(synonyms))]
		if err := a.sleep(ctx, "typing", len(pick.Word)); err != nil {
			return err
		}
		_, err := a.sendAnswer(ctx, word, pick.Word, userID)
		return err

	case !seenBefore && a.mistakeChance(dbWord.SeenTimes):
		a.log.Debug("word history", logx.Int("seen_times", dbWord.SeenTimes), logx.Time("last_seen", dbWord.LastSeen))
		a.log.Info("simulating mistake")
		if len(synonyms) > 1 && a.chance(a.cfg.SynonymChance) {
			if err := a.sleep(ctx, "extra_think", 1); err != nil {
				return err
			}
			a.log.Info("submitting a synonym instead of the actual answer")
			pool := make([]store.Word, 0, len(synonyms)-1)
			for _, w := range synonyms {
				if w.ID != word.ID {
					pool = append(pool, w)
				}
			}
			if len(pool) == 0 {
				pool = synonyms
			}
			pick := pool[a.rng.Intn(len(pool))]
			if err := a.sleep(ctx, "typing", len(pick.Word)); err != nil {
				return err
			}
			_, err := a.sendAnswer(ctx, word, pick.Word, userID)
			return err
		}
		a.log.Info("submitting nothing instead of the actual answer")
		if err := a.sleep(ctx, "give_up", 1); err != nil {
			return err
		}
		return a.sendNothing(ctx, word, userID)

	default:
		a.log.Debug("word history", logx.Int("seen_times", dbWord.SeenTimes), logx.Time("last_seen", dbWord.LastSeen))
		if err := a.sleep(ctx, "typing", len(dbWord.ShownWord)); err != nil {
			return err
		}
		result, err := a.sendAnswer(ctx, word, dbWord.ShownWord, userID)
		if err != nil {
			return err
		}
		if result.Grade == nil || *result.Grade != GradeCorrect {
			return fmt.Errorf("word %d rejected the stored answer: sent %q, got %q/%q",
				word.ID, dbWord.ShownWord, result.Word, result.ShownAnswer)
		}
		return nil
	}
}

func (a *AutoSolver) sendNothing(ctx context.Context, word *Word, userID int64) error {
	a.log.Debug("sending nothing")
	result, err := a.session.SubmitAnswer(ctx, word.ID, "")
	if err != nil {
		return err
	}
	if result == nil || result.Word == "" || result.ShownAnswer == "" {
		return fmt.Errorf("word %d did not reveal an answer after entering nothing", word.ID)
	}
	a.log.Info("got answer", logx.String("shown", result.ShownAnswer), logx.String("word", result.Word))
	return a.recordResult(ctx, result, userID)
}

func (a *AutoSolver) sendAnswer(ctx context.Context, word *Word, answer string, userID int64) (*Word, error) {
	a.log.Info("sending answer", logx.String("answer", answer))
	result, err := a.session.SubmitAnswer(ctx, word.ID, answer)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("word %d: session ended mid-answer", word.ID)
	}
	if result.Grade != nil {
		a.log.Info("got result", logx.String("grade", result.Grade.String()))
	}
	a.log.Debug("correct answer", logx.String("shown", result.ShownAnswer), logx.String("word", result.Word))
	if err := a.recordResult(ctx, result, userID); err != nil {
		return nil, err
	}
	return result, nil
}

func (a *AutoSolver) recordResult(ctx context.Context, result *Word, userID int64) error {
	return a.db.HandleWord(ctx, store.WordData{
		ID:           result.ID,
		Word:         result.Word,
		ShownWord:    result.ShownAnswer,
		UsageExample: result.UsageExample,
		Translations: SplitTranslations(result.Translations),
	}, userID)
}

// mistakeChance decides whether to flub a word on its first sight today.
// Barely-seen words are much more likely to be "forgotten".
func (a *AutoSolver) mistakeChance(seenTimes int) bool {
	memReq := a.cfg.MemorizeRequirement
	if memReq <= 0 {
		memReq = 1
	}
	forgot := (1 - float64(seenTimes)/float64(memReq)) * (1 - a.cfg.BaseMemorizeChance)
	return a.chance(forgot) || a.chance(a.cfg.MistakeChance)
}

func (a *AutoSolver) chance(p float64) bool {
	return p > 0 && (p >= 1 || a.rng.Float64() < p)
}

func (a *AutoSolver) distraction(ctx context.Context) error {
	if !a.chance(a.cfg.DistractionChance) {
		return nil
	}
	a.log.Debug("simulating a distraction")
	return a.sleep(ctx, "distraction", 1)
}

// sleep waits a random duration from the profile's configured millisecond
// range for the given delay kind, scaled by times (e.g. answer length for
// typing). Unknown kinds sleep nothing.
func (a *AutoSolver) sleep(ctx context.Context, kind string, times int) error {
	r, ok := a.cfg.Speed[kind]
	if !ok || times <= 0 {
		return nil
	}
	span := r[1] - r[0]
	ms := r[0]
	if span > 0 {
		ms += a.rng.Intn(span + 1)
	}
	d := time.Duration(ms*times) * time.Millisecond
	a.log.Debug("simulating delay", logx.String("kind", kind), logx.Duration("sleep", d))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
