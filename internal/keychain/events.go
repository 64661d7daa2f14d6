package keychain

import (
	"fmt"
	"time"
)

type EventType int

const (
	EventUnlock EventType = iota + 1
	EventLock
	EventPasswordChange
	EventItemAdded
	EventItemRemoved
)

func (t EventType) String() string {
	switch t {
	case EventUnlock:
		return "unlock"
	case EventLock:
		return "lock"
	case EventPasswordChange:
		return "password-change"
	case EventItemAdded:
		return "item-added"
	case EventItemRemoved:
		return "item-removed"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event describes a state change. It never carries secret material.
type Event struct {
	Type     EventType
	Keychain string
	Item     string
	Time     time.Time
}

func (k *Keychain) emit(t EventType, item string) {
	if k.opts.Notify == nil {
		return
	}
	k.opts.Notify(Event{Type: t, Keychain: k.uuid, Item: item, Time: now()})
}
