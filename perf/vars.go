package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency         = metric.NewHistogram("1m1s")
	TickBatchLatency        = metric.NewHistogram("1m1s")
	CandidateTableSize      = metric.NewHistogram("10m10s")
	AdvertisementsPerSecond = metric.NewCounter("10s1s")
	KmpStarts               = metric.NewCounter("1h1m")
	KmpTimeouts             = metric.NewCounter("1h1m")
	SupplicantsAdmitted     = metric.NewCounter("1h1m")
	SupplicantsRejected     = metric.NewCounter("1h1m")
	SupplicantsPurged       = metric.NewCounter("1h1m")
	Disconnects             = metric.NewCounter("1h1m")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("wisun:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("wisun:TickBatchLatency (µs)", TickBatchLatency)
	expvar.Publish("wisun:CandidateTableSize", CandidateTableSize)
	expvar.Publish("wisun:Advertisements/s", AdvertisementsPerSecond)
	expvar.Publish("wisun:KmpStarts", KmpStarts)
	expvar.Publish("wisun:KmpTimeouts", KmpTimeouts)
	expvar.Publish("wisun:SupplicantsAdmitted", SupplicantsAdmitted)
	expvar.Publish("wisun:SupplicantsRejected", SupplicantsRejected)
	expvar.Publish("wisun:SupplicantsPurged", SupplicantsPurged)
	expvar.Publish("wisun:Disconnects", Disconnects)
}
