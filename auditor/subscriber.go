package auditor

// Subscriber handles scan events. Handlers run synchronously on the scan
// goroutine, so they observe events in scan order.
type Subscriber struct {
	scanStartedHandler    func(ScanStarted)
	skipProgressHandler   func(SkipProgress)
	pairClassifiedHandler func(PairClassified)
	sinkFailedHandler     func(SinkFailed)
	scanCompletedHandler  func(ScanCompleted)
	scanFailedHandler     func(ScanFailed)
}

// OnScanStarted sets the handler for ScanStarted events
func OnScanStarted(fn func(ScanStarted)) func(*Subscriber) {
	return func(s *Subscriber) { s.scanStartedHandler = fn }
}

// OnSkipProgress sets the handler for SkipProgress events
func OnSkipProgress(fn func(SkipProgress)) func(*Subscriber) {
	return func(s *Subscriber) { s.skipProgressHandler = fn }
}

// OnPairClassified sets the handler for PairClassified events
func OnPairClassified(fn func(PairClassified)) func(*Subscriber) {
	return func(s *Subscriber) { s.pairClassifiedHandler = fn }
}

// OnSinkFailed sets the handler for SinkFailed events
func OnSinkFailed(fn func(SinkFailed)) func(*Subscriber) {
	return func(s *Subscriber) { s.sinkFailedHandler = fn }
}

// OnScanCompleted sets the handler for ScanCompleted events
func OnScanCompleted(fn func(ScanCompleted)) func(*Subscriber) {
	return func(s *Subscriber) { s.scanCompletedHandler = fn }
}

// OnScanFailed sets the handler for ScanFailed events
func OnScanFailed(fn func(ScanFailed)) func(*Subscriber) {
	return func(s *Subscriber) { s.scanFailedHandler = fn }
}

// NewSubscriber creates a Subscriber with the given options.
//
// Example:
//
//	sub := auditor.NewSubscriber(
//	  auditor.OnPairClassified(func(e auditor.PairClassified) { ... }),
//	)
//	svc := auditor.NewService(chain, sink, auditor.WithSubscriber(sub))
func NewSubscriber(opts ...func(*Subscriber)) *Subscriber {
	s := &Subscriber{
		scanStartedHandler:    func(ScanStarted) {},    // nop by default
		skipProgressHandler:   func(SkipProgress) {},   // nop by default
		pairClassifiedHandler: func(PairClassified) {}, // nop by default
		sinkFailedHandler:     func(SinkFailed) {},     // nop by default
		scanCompletedHandler:  func(ScanCompleted) {},  // nop by default
		scanFailedHandler:     func(ScanFailed) {},     // nop by default
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Notify dispatches ev to its handler
func (s *Subscriber) Notify(ev Event) {
	switch e := ev.(type) {
	case ScanStarted:
		s.scanStartedHandler(e)
	case SkipProgress:
		s.skipProgressHandler(e)
	case PairClassified:
		s.pairClassifiedHandler(e)
	case SinkFailed:
		s.sinkFailedHandler(e)
	case ScanCompleted:
		s.scanCompletedHandler(e)
	case ScanFailed:
		s.scanFailedHandler(e)
	}
}
