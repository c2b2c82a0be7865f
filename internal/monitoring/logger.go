// Package monitoring holds the process-wide diagnostic logger used to
// surface data-quality events such as image identity fallbacks and schema
// migrations.
package monitoring

import (
	"fmt"
	"log"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil mutes it.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Recorder collects formatted log lines.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

// Lines returns a copy of the collected lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *Recorder) logf(format string, v ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, fmt.Sprintf(format, v...))
}

// Capture redirects Logf into a Recorder until restore is called.
func Capture() (rec *Recorder, restore func()) {
	prev := Logf
	rec = &Recorder{}
	Logf = rec.logf
	return rec, func() { Logf = prev }
}
