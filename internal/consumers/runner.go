package consumers

import (
	"context"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/iamtahmad1/traffic-manager/internal/platform/logging"
)

// Runner drives one sarama consumer group for a single consumer Type,
// mirroring the original's run_consumer poll loop: join the type's
// consumer group, consume until the context is cancelled, then close
// cleanly.
type Runner struct {
	group  sarama.ConsumerGroup
	topic  string
	typ    Type
	logger *logging.Logger
}

// NewRunner dials a consumer group for typ against the given brokers,
// topic, and group-id prefix.
func NewRunner(brokers []string, topic, groupPrefix string, typ Type, autoOffsetReset string, autoCommit bool, l *logging.Logger) (*Runner, error) {
	conf := sarama.NewConfig()
	conf.Consumer.Offsets.AutoCommit.Enable = autoCommit
	if autoOffsetReset == "earliest" {
		conf.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		conf.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	group, err := sarama.NewConsumerGroup(brokers, GroupID(groupPrefix, typ), conf)
	if err != nil {
		return nil, err
	}
	return &Runner{group: group, topic: topic, typ: typ, logger: l}, nil
}

// Run consumes until ctx is cancelled, rejoining the group after every
// rebalance (sarama's Consume call returns whenever the group rebalances
// or a server-side error requires rejoining).
func (r *Runner) Run(ctx context.Context, handler Handler) error {
	gh := newGroupHandler(r.typ, handler, r.logger)

	go func() {
		for err := range r.group.Errors() {
			r.logger.WithFields(logrus.Fields{"consumer_type": string(r.typ), "error": err.Error()}).
				Error("consumer group error")
		}
	}()

	for {
		if err := r.group.Consume(ctx, []string{r.topic}, gh); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close releases the consumer group's connections.
func (r *Runner) Close() error {
	return r.group.Close()
}
