package controller

import (
	"time"

	"github.com/rubiojr/fmsearch/pkg/config"
	"github.com/rubiojr/fmsearch/pkg/tracking"
)

// Options are the controller tunables. Zero values fall back to the
// defaults from DefaultOptions.
type Options struct {
	MinChars       int
	Debounce       time.Duration
	MaxResults     int
	InitialResults int
	LoadMoreStep   int
	RequestTimeout time.Duration

	// Timers schedules the debounce. Nil means the runtime timer.
	Timers Timers
	// Tracker, when set, records result interactions from OpenResult.
	Tracker *tracking.Tracker
}

func DefaultOptions() Options {
	return Options{
		MinChars:       4,
		Debounce:       800 * time.Millisecond,
		MaxResults:     400,
		InitialResults: 100,
		LoadMoreStep:   50,
		RequestTimeout: 30 * time.Second,
		Timers:         RealTimers{},
	}
}

// OptionsFromConfig maps the [widget] config section onto Options.
func OptionsFromConfig(w config.WidgetConfig) Options {
	o := Options{
		MinChars:       w.MinChars,
		Debounce:       w.Debounce.Duration,
		MaxResults:     w.MaxResults,
		InitialResults: w.InitialResults,
		LoadMoreStep:   w.LoadMoreStep,
		RequestTimeout: w.RequestTimeout.Duration,
	}
	o.fillDefaults()
	return o
}

func (o *Options) fillDefaults() {
	d := DefaultOptions()
	if o.MinChars <= 0 {
		o.MinChars = d.MinChars
	}
	if o.Debounce <= 0 {
		o.Debounce = d.Debounce
	}
	if o.MaxResults <= 0 {
		o.MaxResults = d.MaxResults
	}
	if o.InitialResults <= 0 {
		o.InitialResults = d.InitialResults
	}
	if o.LoadMoreStep <= 0 {
		o.LoadMoreStep = d.LoadMoreStep
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = d.RequestTimeout
	}
	if o.Timers == nil {
		o.Timers = d.Timers
	}
}
