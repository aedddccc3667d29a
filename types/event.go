package types

import "sort"

// Event is the outcome tag a behaviour emits at the end of a round.
type Event string

func (e Event) String() string {
	return string(e)
}

// EventSet is a closed set of events.
type EventSet map[Event]struct{}

func NewEventSet(events ...Event) EventSet {
	set := make(EventSet, len(events))
	for _, e := range events {
		set[e] = struct{}{}
	}
	return set
}

func (s EventSet) Has(e Event) bool {
	_, ok := s[e]
	return ok
}

// Sorted 返回排好序的事件列表，保证输出确定
func (s EventSet) Sorted() []Event {
	events := make([]Event, 0, len(s))
	for e := range s {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}
