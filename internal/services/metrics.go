package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breederhub_messages_sent_total",
		Help: "Messages stored, by how they were sent.",
	}, []string{"kind"})

	messagesBlockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breederhub_messages_blocked_total",
		Help: "Message attempts rejected because the recipient blocked the sender.",
	})
)
