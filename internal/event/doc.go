// Package event is a small synchronous pub-sub bus that lets the workflow
// report progress without knowing who is listening.
//
// The orchestrator and its steps publish; the CLI subscribes to print
// progress lines and the logger subscribes to record them. Handlers run on
// the publishing goroutine, so they must be quick and must not publish
// recursively in a loop.
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypePhaseChanged, func(e event.Event) {
//	    pc := e.(event.PhaseChangedEvent)
//	    fmt.Println("phase:", pc.To)
//	})
//	bus.Publish(event.NewPhaseChangedEvent(runID, "execution", "user-feedback"))
package event
