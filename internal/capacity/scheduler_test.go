package capacity

import (
	"context"
	"testing"
	"time"
)

func TestScheduler_InitialEvaluation(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	sched := NewScheduler(engine, store, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	waitFor(t, time.Second, func() bool {
		return engine.State() != nil
	}, "scheduler should evaluate once on start")
}

func TestScheduler_TriggerReEvaluates(t *testing.T) {
	engine, store, repo := newTestEngine(t)
	sched := NewScheduler(engine, store, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	waitFor(t, time.Second, func() bool {
		return repo.evaluationCount() >= 1
	}, "initial evaluation should record an audit entry")
	base := repo.evaluationCount()

	sched.Trigger()
	waitFor(t, time.Second, func() bool {
		return repo.evaluationCount() > base
	}, "trigger should cause a re-evaluation")
}

func TestScheduler_TickerFlushesUnsynced(t *testing.T) {
	engine, store, repo := newTestEngine(t)
	sched := NewScheduler(engine, store, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	repo.setFail(true)
	rule, err := store.CreateRule(ctx, siteSetRule("offline rule", 50, OperationSet, 400))
	if err != nil {
		t.Fatalf("CreateRule() error = %v", err)
	}
	if rule.Synced {
		t.Fatal("rule should start unsynced")
	}

	repo.setFail(false)
	waitFor(t, time.Second, func() bool {
		_, err := repo.GetRule(context.Background(), rule.ID)
		return err == nil
	}, "ticker should flush the unsynced rule once the repository recovers")
}

func TestScheduler_StartTwiceIsNoOp(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	sched := NewScheduler(engine, store, time.Hour, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	sched.Start(ctx)
	sched.Stop()
}

func TestScheduler_StopTwiceIsSafe(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	sched := NewScheduler(engine, store, time.Hour, nil)

	sched.Start(context.Background())
	sched.Stop()
	sched.Stop()
}

func TestNewScheduler_DefaultInterval(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	sched := NewScheduler(engine, store, 0, nil)
	if sched.interval != defaultEvaluationInterval {
		t.Errorf("interval = %v, want default %v", sched.interval, defaultEvaluationInterval)
	}
}
