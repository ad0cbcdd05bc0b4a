// Package capacity provides the dynamic capacity engine for Templegate.
//
// The engine computes how many visitors the site can admit by folding a
// static baseline (zones, time slots, live occupancy) with three layers of
// dynamic modifiers: conditional capacity rules, approved manual
// overrides, and rules owned by special events.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│                  Engine (engine.go)                    │
//	│  Folds baseline + rules + overrides + event rules      │
//	│  ┌──────────────┐    ┌──────────────┐                │
//	│  │    Store     │───▶│  Repository  │                │
//	│  │  (store.go)  │    │(repository.go)│               │
//	│  └──────────────┘    └──────────────┘                │
//	│        │                                              │
//	│        ▼                                              │
//	│  ┌──────────────────────────────────────────────┐    │
//	│  │  Fold Pipeline                                │    │
//	│  │  1. Load baseline (zones, slots, occupancy)   │    │
//	│  │  2. Fold rules: priority desc, cumulative     │    │
//	│  │  3. Apply active overrides                    │    │
//	│  │  4. Fold event-owned rules                    │    │
//	│  │  5. Record evaluation, publish state          │    │
//	│  └──────────────────────────────────────────────┘    │
//	└───────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - CapacityRule: conditional modifier (conditions AND-combined, effects
//     applied in list order)
//   - Override: unconditional manual intervention with approval gating
//   - SpecialEvent: dated bundle of rules, materialised at creation
//   - State: one evaluated snapshot (site, zone and slot figures)
//   - Engine: the fold; Store: cached entity lifecycle; Scheduler: the
//     periodic and triggered re-evaluation loop
//
// # Semantics
//
// Priority orders application, it does not pick a winner: every matching
// rule applies, higher priority first, and each rule's conditions are
// checked against the state its predecessors produced. Folding the same
// inputs twice yields identical snapshots because evaluation always
// starts from a fresh baseline.
//
// Persistence failures degrade rather than fail: lifecycle operations
// commit to the in-memory cache, flag the entity unsynced, and the
// scheduler flushes pending entities once the repository recovers.
//
// # Thread Safety
//
// Store, Engine and Scheduler are safe for concurrent use. Evaluation and
// mutation serialize on single locks, which is what keeps snapshots
// deterministic under concurrent API traffic.
//
// # Usage
//
//	repo := capacity.NewSQLiteRepository(db, cfg.Site.ID)
//	store := capacity.NewStore(repo)
//	store.SetLogger(log)
//
//	if err := store.Refresh(ctx); err != nil {
//	    return err
//	}
//
//	engine := capacity.NewEngine(store, repo, publisher, hub, recorder, log)
//	scheduler := capacity.NewScheduler(engine, store, cfg.Engine.EvaluationInterval, log)
//	store.SetOnChange(scheduler.Trigger)
//	scheduler.Start(ctx)
package capacity
