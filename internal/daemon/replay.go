package daemon

import (
	"context"
	"fmt"

	"firestige.xyz/woolong/internal/config"
	"firestige.xyz/woolong/internal/core/reflector"
	"firestige.xyz/woolong/internal/events"
	"firestige.xyz/woolong/internal/hook"
	logpkg "firestige.xyz/woolong/internal/log"
	"firestige.xyz/woolong/internal/source/pcapfile"
)

// ReplayResult summarises an offline run.
type ReplayResult struct {
	Worker hook.Stats
	Events events.Stats
}

// Replay runs the engine over the capture file in. Transmitted frames are written to out
// unless it is empty. Event records are spread over partitions by flow.
func Replay(ctx context.Context, cfg *config.GlobalConfig, in, out string) (ReplayResult, error) {
	var res ReplayResult

	opts, err := cfg.Reflector.Options()
	if err != nil {
		return res, err
	}
	engine, err := reflector.New(opts)
	if err != nil {
		return res, err
	}

	reader, err := pcapfile.Open(in)
	if err != nil {
		return res, err
	}
	var writer *pcapfile.Writer
	if out != "" {
		if writer, err = pcapfile.Create(out, uint32(cfg.Capture.SnapLen)); err != nil {
			reader.Close()
			return res, err
		}
	}
	replay := pcapfile.NewReplay(reader, writer)
	defer replay.Close()

	var stream *eventStream
	if cfg.Events.Enabled {
		if stream, err = newEventStream(cfg.Events, 1); err != nil {
			return res, err
		}
		defer stream.closeSinks()
	}

	w, err := hook.New(hook.Config{
		Source:    replay,
		TX:        replay,
		Engine:    engine,
		Events:    stream.publisher(),
		Verdicts:  cfg.Events.Verdicts,
		RecordLen: cfg.Events.RecordLen,
		Keyed:     true,
	})
	if err != nil {
		return res, err
	}

	streamCtx, stopStream := context.WithCancel(context.Background())
	streamDone := make(chan error, 1)
	go func() { streamDone <- stream.run(streamCtx) }()

	runErr := w.Run(ctx)

	stream.close()
	stopStream()
	<-streamDone

	res.Worker = w.Stats()
	if stream != nil {
		res.Events = stream.ring.Stats()
	}
	if err := replay.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close replay files: %w", err)
	}

	logpkg.GetLogger().WithFields(map[string]interface{}{
		"input":       in,
		"received":    res.Worker.Received,
		"transmitted": res.Worker.Transmitted,
		"aborted":     res.Worker.Aborted,
	}).Info("replay finished")
	return res, runErr
}
