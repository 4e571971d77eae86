package finance

// =============================================================================
// CHANGE NOTIFICATION - Synchronous observer list
// =============================================================================

// EventKind names what changed.
type EventKind string

const (
	EventBudgetSet      EventKind = "budget_set"
	EventExpenseAdded   EventKind = "expense_added"
	EventExpenseEdited  EventKind = "expense_edited"
	EventExpenseDeleted EventKind = "expense_deleted"
	EventLoaded         EventKind = "loaded"
	EventImported       EventKind = "imported"
)

// Event describes one mutation. Month is set for budget and expense events;
// ExpenseID for expense events.
type Event struct {
	Kind      EventKind
	Month     Month
	Category  Category
	ExpenseID ExpenseID
}

// Subscriber is called synchronously after every successful mutation.
type Subscriber func(Event)

// Notifier fans an event out to every registered subscriber in
// registration order. It is not safe for concurrent use.
type Notifier struct {
	subs   map[int]Subscriber
	order  []int
	nextID int

	held    int
	pending bool
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]Subscriber)}
}

// Subscribe registers fn and returns a function that removes it.
// Registering never replaces an existing subscriber.
func (n *Notifier) Subscribe(fn Subscriber) (unsubscribe func()) {
	id := n.nextID
	n.nextID++
	n.subs[id] = fn
	n.order = append(n.order, id)

	return func() {
		if _, ok := n.subs[id]; !ok {
			return
		}
		delete(n.subs, id)
		for i, v := range n.order {
			if v == id {
				n.order = append(n.order[:i], n.order[i+1:]...)
				break
			}
		}
	}
}

// Len returns the number of registered subscribers.
func (n *Notifier) Len() int { return len(n.subs) }

// Publish delivers ev to all subscribers, unless a batch is open.
func (n *Notifier) Publish(ev Event) {
	if n.held > 0 {
		n.pending = true
		return
	}
	// Snapshot so subscribers may unsubscribe while being notified.
	ids := append([]int(nil), n.order...)
	for _, id := range ids {
		if fn, ok := n.subs[id]; ok {
			fn(ev)
		}
	}
}

// Batch runs fn with notifications held. If anything was published while
// held, a single event of the given kind is delivered afterwards, even when
// fn returns an error (whatever it applied stays applied). If fn panics the
// hold is released without delivering the batch event.
func (n *Notifier) Batch(kind EventKind, fn func() error) error {
	n.held++
	returned := false
	defer func() {
		n.held--
		if n.held == 0 && n.pending {
			n.pending = false
			if returned {
				n.Publish(Event{Kind: kind})
			}
		}
	}()

	err := fn()
	returned = true
	return err
}
