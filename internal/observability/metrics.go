package observability

import "github.com/prometheus/client_golang/prometheus"

// Notification channels.
const (
	ChannelTelegram = "telegram"
	ChannelPush     = "push"
)

var (
	botUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: serviceNamespace,
			Name:      "bot_updates_total",
			Help:      "Telegram updates handled, by kind.",
		},
		[]string{"kind"},
	)

	botCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: serviceNamespace,
			Name:      "bot_commands_total",
			Help:      "Bot commands and callback actions, by name.",
		},
		[]string{"command"},
	)

	botRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: serviceNamespace,
			Name:      "bot_rejections_total",
			Help:      "Operations refused with a user-facing error, by reason.",
		},
		[]string{"reason"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: serviceNamespace,
			Name:      "notifications_total",
			Help:      "Outbound notification attempts, by channel and result.",
		},
		[]string{"channel", "result"},
	)
)

func init() {
	prometheus.MustRegister(botUpdates, botCommands, botRejections, notifications)
}

// ObserveUpdate counts one inbound update ("message", "callback", "other").
func ObserveUpdate(kind string) { botUpdates.WithLabelValues(kind).Inc() }

// ObserveCommand counts one recognised command or callback action.
func ObserveCommand(command string) { botCommands.WithLabelValues(command).Inc() }

// ObserveRejection counts one operation refused with a user-facing error.
func ObserveRejection(reason string) { botRejections.WithLabelValues(reason).Inc() }

// ObserveNotification counts one delivery attempt on channel.
func ObserveNotification(channel string, delivered bool) {
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	notifications.WithLabelValues(channel, result).Inc()
}
