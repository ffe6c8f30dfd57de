package rabbitmq

// Имена exchange и очереди писем с напоминаниями.
const (
	Exchange        = "reminders"
	EmailQueue      = "reminders.email"
	EmailRoutingKey = "email"

	prefetchCount = 10
)

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

func GetReminderQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: EmailQueue, RoutingKey: EmailRoutingKey},
	}
}
