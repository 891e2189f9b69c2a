// Package broker moves events between engine instances. Simple
// single-service events travel through the broker to whichever instance
// owns them; composite kill events never leave the process and run the
// in-process saga instead.
package broker

import (
	"context"

	"github.com/fragworks/fragstats/internal/domain/event"
)

// Topic names, one per queue class.
const (
	TopicPriority = "hlstats.events.priority"
	TopicStandard = "hlstats.events.standard"
	TopicBulk     = "hlstats.events.bulk"
)

// Publisher sends events to the topic matching their queue class.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) error
	Close() error
}

// DispatchFunc receives consumed events, in the order the broker
// delivers them per topic partition.
type DispatchFunc func(ctx context.Context, e event.Event) error

// Consumer pulls events from the three topics and hands them to a
// dispatch function until the context ends.
type Consumer interface {
	Run(ctx context.Context, dispatch DispatchFunc) error
	Close() error
}

// TopicFor maps an event's queue class to its topic.
func TopicFor(e event.Event) string {
	switch e.QueueClass() {
	case event.ClassPriority:
		return TopicPriority
	case event.ClassBulk:
		return TopicBulk
	default:
		return TopicStandard
	}
}

// Topics lists every topic the consumer subscribes to.
func Topics() []string {
	return []string{TopicPriority, TopicStandard, TopicBulk}
}
