package notify

import (
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/netguard/netguard/pkg/events"
	"github.com/netguard/netguard/pkg/log"
)

// Sink receives monitoring events. Delivery is fire-and-forget: a sink
// that fails or stalls never affects monitoring correctness.
type Sink interface {
	Deliver(e *events.Event)
}

// Notifier subscribes to the broker once and fans events out to sinks
type Notifier struct {
	broker *events.Broker
	sinks  []Sink
	logger zerolog.Logger

	sub      events.Subscriber
	stopOnce sync.Once
	done     chan struct{}
}

// NewNotifier creates a notifier over the given sinks
func NewNotifier(broker *events.Broker, sinks ...Sink) *Notifier {
	return &Notifier{
		broker: broker,
		sinks:  sinks,
		logger: log.WithComponent("notify"),
		done:   make(chan struct{}),
	}
}

// Start begins delivering events
func (n *Notifier) Start() {
	n.sub = n.broker.Subscribe()
	go n.run()
}

// Stop detaches from the broker and waits for the delivery loop to end
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		n.broker.Unsubscribe(n.sub)
		<-n.done
	})
}

func (n *Notifier) run() {
	defer close(n.done)
	for e := range n.sub {
		for _, sink := range n.sinks {
			sink.Deliver(e)
		}
	}
}

// LogSink writes events to the structured log
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a log sink
func NewLogSink() *LogSink {
	return &LogSink{logger: log.WithComponent("event")}
}

// Deliver logs the event
func (s *LogSink) Deliver(e *events.Event) {
	evt := s.logger.Info()
	if e.Type == events.EventTargetDown || e.Type == events.EventRecoveryExhausted {
		evt = s.logger.Error()
	}
	evt.Str("type", string(e.Type)).
		Str("target", e.Target).
		Fields(map[string]interface{}{"meta": e.Metadata}).
		Msg(e.Message)
}

// commandTimeout bounds the notification command
const commandTimeout = 30 * time.Second

// CommandSink runs a configured shell command when a target's recovery is
// confirmed, mirroring the recovery notification feature of the config
type CommandSink struct {
	command string
	logger  zerolog.Logger
}

// NewCommandSink creates a command sink; an empty command delivers nothing
func NewCommandSink(command string) *CommandSink {
	return &CommandSink{
		command: command,
		logger:  log.WithComponent("notify"),
	}
}

// Deliver runs the notification command on target.recovered events
func (s *CommandSink) Deliver(e *events.Event) {
	if s.command == "" || e.Type != events.EventTargetRecovered {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := exec.CommandContext(ctx, "sh", "-c", s.command).Run(); err != nil {
		s.logger.Warn().Err(err).Str("target", e.Target).Msg("notification command failed")
		return
	}
	s.logger.Debug().Str("target", e.Target).Msg("notification command sent")
}

// Appender persists events; satisfied by the journal
type Appender interface {
	Append(e *events.Event) error
}

// JournalSink appends events to a persistent journal
type JournalSink struct {
	journal Appender
	logger  zerolog.Logger
}

// NewJournalSink creates a journal sink
func NewJournalSink(journal Appender) *JournalSink {
	return &JournalSink{
		journal: journal,
		logger:  log.WithComponent("notify"),
	}
}

// Deliver appends the event, best effort
func (s *JournalSink) Deliver(e *events.Event) {
	if err := s.journal.Append(e); err != nil {
		s.logger.Warn().Err(err).Str("event", string(e.Type)).Msg("failed to journal event")
	}
}
