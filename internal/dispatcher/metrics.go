package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedrelay_ticks_total",
		Help: "Number of polling ticks executed",
	})
	ticksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedrelay_ticks_skipped_total",
		Help: "Number of ticks skipped because the previous tick was still running",
	})
	feedsChecked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedrelay_feeds_checked_total",
		Help: "Number of per-feed poll attempts",
	})
	entriesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedrelay_entries_dispatched_total",
		Help: "Number of new entries that triggered a notification",
	})
	sendErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedrelay_send_errors_total",
		Help: "Number of per-destination delivery failures",
	})
)
