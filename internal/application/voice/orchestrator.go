package voice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/penwyp/go-claude-voice/internal/core/classify"
	"github.com/penwyp/go-claude-voice/internal/core/model"
	"github.com/penwyp/go-claude-voice/internal/core/pipeline"
	"github.com/penwyp/go-claude-voice/internal/core/speech"
	"github.com/penwyp/go-claude-voice/internal/data/bus"
	"github.com/penwyp/go-claude-voice/internal/data/source"
	"github.com/penwyp/go-claude-voice/internal/data/store"
	"github.com/penwyp/go-claude-voice/internal/util"
)

// Orchestrator wires a source adapter to the pipeline and speech queue
type Orchestrator struct {
	config *VoiceConfig

	classifier *classify.Classifier
	queue      *speech.Queue
	pipeline   *pipeline.Pipeline
	bus        *bus.Client
}

// NewOrchestrator builds the pipeline. A nil speaker means the command
// backend described by config.
func NewOrchestrator(config *VoiceConfig, speaker speech.Speaker) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	classifier, err := LoadClassifier(config.PatternsFile)
	if err != nil {
		return nil, err
	}

	if speaker == nil {
		speaker = speech.NewCommandSpeaker(config.SpeakCmd, config.SynthCmd, config.PlayerCmd)
	}
	queue := speech.NewQueue(speaker,
		speech.WithOnStart(func(u model.Utterance) {
			util.LogDebugf("Speaking %s: %s", u.ID, util.Preview(u.Text, 60))
		}),
		speech.WithOnError(func(u model.Utterance, err error) {
			util.LogWarnf("Speech failed for %q: %v", util.Preview(u.Text, 40), err)
		}),
	)

	o := &Orchestrator{
		config:     config,
		classifier: classifier,
		queue:      queue,
	}

	var opts []pipeline.Option
	if config.NATSURL != "" {
		client, err := bus.Connect(config.NATSURL)
		if err != nil {
			util.LogWarnf("NATS disabled: %v", err)
		} else {
			o.bus = client
			opts = append(opts, pipeline.WithObserver(client.PublishUtterance))
		}
	}

	o.pipeline = pipeline.New(pipeline.Config{
		ApprovalTimeout: config.ApprovalTimeout,
		Dedup:           config.DedupConfig(),
		AnnouncePrompts: config.AnnouncePrompts,
	}, classifier, queue, opts...)

	if o.bus != nil {
		if err := o.bus.OnStop(func(sig bus.StopSignal) {
			util.LogInfof("Remote stop received %s", sig.Reason)
			o.Stop()
		}); err != nil {
			util.LogWarnf("Remote stop unavailable: %v", err)
		}
	}
	return o, nil
}

// LoadClassifier compiles the pattern table at patternsFile, or the
// built-in table when patternsFile is empty.
func LoadClassifier(patternsFile string) (*classify.Classifier, error) {
	table, err := classify.DefaultPatternTable()
	if patternsFile != "" {
		table, err = classify.LoadPatternTable(patternsFile)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pattern table: %w", err)
	}
	classifier, err := classify.New(table)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern table: %w", err)
	}
	return classifier, nil
}

// Pipeline exposes the pipeline, e.g. for feeding lines directly.
func (o *Orchestrator) Pipeline() *pipeline.Pipeline {
	return o.pipeline
}

// Stop silences speech and drops the block being collected
func (o *Orchestrator) Stop() {
	o.pipeline.Stop()
}

// RunTerminal runs the monitored command in a PTY and narrates its output.
// It returns the command's exit code once the queue has drained or the
// drain timeout passed.
func (o *Orchestrator) RunTerminal(ctx context.Context) (int, error) {
	defer o.Close()
	stopSignals := o.notifyStop()
	defer stopSignals()

	util.LogInfof("Starting %s %v", o.config.Command, o.config.Args)
	src := &source.TerminalSource{
		Command: o.config.Command,
		Args:    o.config.Args,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
	}
	code, err := src.Run(ctx, o.pipeline.Handle)
	o.pipeline.Finish()
	if err != nil {
		return code, err
	}
	util.LogInfof("%s exited with code %d", o.config.Command, code)

	o.drain()
	return code, nil
}

// RunStructured polls the configured store until ctx is cancelled.
func (o *Orchestrator) RunStructured(ctx context.Context) error {
	defer o.Close()
	stopSignals := o.notifyStop()
	defer stopSignals()

	st, err := store.Open(ctx, o.config.Store)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", o.config.Store.Kind, err)
	}
	defer st.Close()

	var cursor int64
	if !o.config.FromStart {
		cursor = time.Now().UnixMilli()
	}
	util.LogInfof("Watching %s store from cursor %d", o.config.Store.Kind, cursor)

	src := source.NewStructuredSource(st, source.StructuredOptions{
		Interval: o.config.PollInterval,
		Cursor:   cursor,
	})
	err = src.Run(ctx, o.pipeline.Handle)
	o.pipeline.Finish()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (o *Orchestrator) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), o.config.DrainTimeout)
	defer cancel()
	if err := o.queue.Wait(ctx); err != nil {
		util.LogDebugf("Queue not drained before exit: %v", err)
	}
}

// Close cancels speech and releases the NATS connection
func (o *Orchestrator) Close() {
	o.queue.Close()
	if o.bus != nil {
		o.bus.Close()
		o.bus = nil
	}
}
