// Package pagepulse is the embeddable client event & notification
// pipeline. Applications construct one Pipeline per process at startup
// and pass it by reference to the code that emits telemetry or shows
// notifications — there is no ambient global instance.
//
//	p, err := pagepulse.New(
//		pagepulse.WithConfigFile("pagepulse.yaml"),
//		pagepulse.WithLogger(logger),
//	)
//	if err != nil { ... }
//	defer p.Close()
//
//	p.Emit(record.TypeClick, record.ClickPayload{Element: "cta"})
//	p.Notify(notify.ShowOptions{Title: "Saved", Kind: record.KindSuccess})
//
// Emit and Notify are fire-and-forget: they never return errors and never
// block on the network. Delivery failures are retried and eventually
// spilled to the durable store; persistence failures are logged and
// swallowed.
package pagepulse
