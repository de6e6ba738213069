// Package shutdown coordinates interrupt handling and cleanup for the
// crmdesk shell.
//
// Usage:
//
//	ctx, stop := shutdown.WithSignals(context.Background())
//	defer stop()
//
//	h := shutdown.NewHandler(5 * time.Second)
//	h.OnShutdown(store.Close)
//	h.Wait(ctx)
package shutdown
