/*
Package events provides the in-memory operation event broker and the
repository's on-disk journal.

Every successful engine operation publishes one event (db.created,
field.inserted, ...). The broker fans events out to buffered subscriber
channels without blocking the publisher; a subscriber that falls behind
loses events rather than stalling writes.

The Journal is the standing subscriber: it appends one JSON line per event
to <root>/ops.log, routing op.failed events to <root>/errors.log. Both
files live beside the database directories and are skipped by the recovery
walk. The files open lazily so a journal can be attached before the
repository directory exists.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	journal := events.NewJournal(repoDir, broker)
	defer journal.Close()

	broker.Publish(&events.Event{Type: events.EventDbCreated, Database: "db0"})

# Limitations

  - Best-effort delivery: full subscriber buffers drop events
  - The journal is an audit trail, not a write-ahead log; recovery never
    reads it

# See Also

  - pkg/storage for the publisher
*/
package events
