// Package scheduler holds notification triggers until their fire time.
//
// Each pending trigger gets its own timer. When it expires the trigger moves
// from pending to fired under the scheduler mutex and is handed to the Handler
// on a bounded goroutine pool; a concurrent Cancel either wins (the trigger is
// cancelled and never fires) or loses (Cancel reports false). The legal moves
// are pending->fired and pending->cancelled; both end states are terminal.
//
// Triggers whose fire time has already passed fire immediately. Nothing at
// this layer retries: delivery retries belong to the dispatcher.
//
// A Repository keeps triggers across restarts. Start re-arms pending ones and
// Stop disarms timers without firing them. Run wraps both for errgroup:
//
//	g.Go(sched.Run(ctx))
package scheduler
