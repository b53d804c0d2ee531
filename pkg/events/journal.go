package events

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const (
	// OpsLogName and ErrorsLogName are the journal files kept beside the
	// database directories under the repository root. The recovery walk
	// skips them.
	OpsLogName    = "ops.log"
	ErrorsLogName = "errors.log"
)

// Journal subscribes to a broker and appends one JSON line per event to the
// repository's ops.log; op.failed events go to errors.log instead, and a
// repo.dropped event closes both files without being written.
// The files open lazily on the first event so that a journal can be wired
// up before the repository directory exists.
type Journal struct {
	repoDir string
	sub     Subscriber
	broker  *Broker

	ops    *os.File
	errs   *os.File
	opsLog zerolog.Logger
	errLog zerolog.Logger

	done chan struct{}
	once sync.Once
}

// NewJournal attaches a journal rooted at repoDir to broker.
func NewJournal(repoDir string, broker *Broker) *Journal {
	j := &Journal{
		repoDir: repoDir,
		sub:     broker.Subscribe(),
		broker:  broker,
		done:    make(chan struct{}),
	}
	go j.run()
	return j
}

func (j *Journal) run() {
	defer close(j.done)
	for event := range j.sub {
		j.record(event)
	}
}

// ensureOpen opens the journal files once the repository directory exists.
func (j *Journal) ensureOpen() bool {
	if j.ops != nil {
		return true
	}

	ops, err := os.OpenFile(filepath.Join(j.repoDir, OpsLogName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return false
	}
	errs, err := os.OpenFile(filepath.Join(j.repoDir, ErrorsLogName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		ops.Close()
		return false
	}

	j.ops = ops
	j.errs = errs
	j.opsLog = zerolog.New(ops).With().Timestamp().Logger()
	j.errLog = zerolog.New(errs).With().Timestamp().Logger()
	return true
}

func (j *Journal) record(event *Event) {
	if event.Type == EventRepoDropped {
		// the files just went away with the repository; reopen on demand
		j.closeFiles()
		return
	}
	if !j.ensureOpen() {
		return
	}

	line := j.opsLog.Info()
	if event.Type == EventOpFailed {
		line = j.errLog.Error()
	}

	line = line.Str("event", string(event.Type))
	if event.Database != "" {
		line = line.Str("database", event.Database)
	}
	if event.Document != "" {
		line = line.Str("document", event.Document)
	}
	if event.Field != "" {
		line = line.Str("field", event.Field)
	}
	line.Msg(event.Message)
}

func (j *Journal) closeFiles() {
	if j.ops != nil {
		j.ops.Close()
		j.errs.Close()
		j.ops, j.errs = nil, nil
	}
}

// Close detaches from the broker, drains pending events, and closes the
// journal files.
func (j *Journal) Close() error {
	j.once.Do(func() {
		j.broker.Unsubscribe(j.sub)
		<-j.done
		j.closeFiles()
	})
	return nil
}
