package user

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "todo",
	Name:      "auth_events_total",
	Help:      "Registrations, logins and logouts by outcome.",
}, []string{"event"})
