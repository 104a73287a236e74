// Package fanout distributes a stream of work items across a fixed set of
// isolated partitions ("tenants"), one worker per partition.
//
// A Controller reconciles the partition count against a target at startup,
// starts one worker per partition, and then runs numbered rounds: fetch a
// batch from the ItemSource, enqueue it on the shared work queue, and (in
// sync-drain mode) wait until every item has been processed. Each worker
// applies the EffectAdapter to the items it dequeues. Failed items are
// dropped after one attempt and reported through Hooks.OnItemFailed.
//
// # Quick Start
//
//	cfg := fanout.DefaultConfig()
//	cfg.TargetPartitions = 5
//
//	src := source.NewStatic([]fanout.WorkItem{"a@example.com", "b@example.com"})
//	dir := directory.NewMemory()
//	eff := effect.Func(upsert, notify)
//
//	ctrl, err := fanout.NewController(&cfg, src, dir, eff)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go func() { <-sigCh; ctrl.Kill("signal") }()
//	if err := ctrl.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Lifecycle
//
// The controller progresses through a state machine:
//
//	Starting → Reconciling → Running → Stopping → Stopped
//
// Any state may move to Stopping. Stopped is terminal.
//
// # Stopping
//
// The kill switch is cooperative. Rounds stop at the next boundary, sleeps
// and drain waits return early, and workers finish their in-flight item
// before exiting. Cancelling the Run context behaves the same way.
//
// See cmd/fanout for a complete binary wired to Postgres, NATS and the
// Identity Toolkit.
package fanout
