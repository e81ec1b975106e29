package errors

import "sync/atomic"

// Reporter receives every built EnhancedError.
type Reporter interface {
	Report(err *EnhancedError)
}

type reporterHolder struct{ r Reporter }

var activeReporter atomic.Pointer[reporterHolder]

// SetReporter installs r as the process wide reporter. A nil r disables
// reporting.
func SetReporter(r Reporter) {
	if r == nil {
		activeReporter.Store(nil)
		return
	}
	activeReporter.Store(&reporterHolder{r: r})
}

func report(ee *EnhancedError) {
	h := activeReporter.Load()
	if h == nil {
		return
	}
	h.r.Report(ee)
}
