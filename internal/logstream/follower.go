// Package logstream follows Mango program logs over the RPC websocket and
// turns every transaction's logs into reconstructed instruction traces.
package logstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/coldbell/mango-v4-go/internal/config"
)

const (
	subscribeRequestID = 1
	dedupeTTL          = 10 * time.Minute
)

var ErrSubscribeRejected = errors.New("logsSubscribe rejected")

type Options struct {
	Endpoint     string
	ProgramID    solana.PublicKey
	Commitment   rpc.CommitmentType
	ReconnectMin time.Duration
	ReconnectMax time.Duration
	DedupeSize   int
}

func OptionsFromConfig(cfg config.LogStreamConfig) Options {
	return Options{
		Endpoint:     cfg.RPC.WSURL,
		ProgramID:    cfg.ProgramID,
		Commitment:   cfg.RPC.Commitment,
		ReconnectMin: cfg.ReconnectMin,
		ReconnectMax: cfg.ReconnectMax,
		DedupeSize:   cfg.DedupeSize,
	}
}

type Follower struct {
	opts    Options
	sink    Sink
	seen    *expirable.LRU[string, struct{}]
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func New(opts Options, sink Sink, reg prometheus.Registerer, logger *slog.Logger) *Follower {
	if opts.ReconnectMin <= 0 {
		opts.ReconnectMin = time.Second
	}
	if opts.ReconnectMax < opts.ReconnectMin {
		opts.ReconnectMax = opts.ReconnectMin
	}
	if opts.DedupeSize <= 0 {
		opts.DedupeSize = 4096
	}
	if opts.Commitment == "" {
		opts.Commitment = rpc.CommitmentConfirmed
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Follower{
		opts:    opts,
		sink:    sink,
		seen:    expirable.NewLRU[string, struct{}](opts.DedupeSize, nil, dedupeTTL),
		metrics: NewMetrics(reg),
		logger:  logger,
		now:     time.Now,
	}
}

// Run keeps a subscription open until ctx ends, reconnecting with doubling
// backoff between ReconnectMin and ReconnectMax.
func (f *Follower) Run(ctx context.Context) error {
	f.logger.Info("log stream started",
		"endpoint", f.opts.Endpoint,
		"program", f.opts.ProgramID,
		"commitment", f.opts.Commitment,
	)

	backoff := f.opts.ReconnectMin
	for {
		if ctx.Err() != nil {
			f.logger.Info("log stream stopped")
			return nil
		}

		received, err := f.stream(ctx)
		if ctx.Err() != nil {
			f.logger.Info("log stream stopped")
			return nil
		}
		if err != nil {
			f.logger.Warn("log stream failed", "err", err, "notifications", received)
		}
		if received > 0 {
			backoff = f.opts.ReconnectMin
		} else {
			backoff = nextBackoff(backoff, f.opts.ReconnectMin, f.opts.ReconnectMax)
		}

		f.metrics.reconnects.Inc()
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			f.logger.Info("log stream stopped")
			return nil
		case <-timer.C:
		}
	}
}

// stream runs one connection and returns how many notifications it handled.
func (f *Follower) stream(ctx context.Context) (int, error) {
	sub, err := subscribeLogs(ctx, f.opts.Endpoint, f.opts.ProgramID.String(), string(f.opts.Commitment))
	if err != nil {
		return 0, err
	}
	defer sub.Close()

	received := 0
	for {
		payload, err := sub.next()
		if err != nil {
			if ctx.Err() != nil {
				return received, ctx.Err()
			}
			return received, err
		}

		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			f.logger.Debug("skipping undecodable message", "err", err)
			continue
		}

		switch {
		case msg.ID != nil && *msg.ID == subscribeRequestID:
			if msg.Error != nil {
				return received, fmt.Errorf("%w: %d %s", ErrSubscribeRejected, msg.Error.Code, msg.Error.Message)
			}
			var subID uint64
			_ = json.Unmarshal(msg.Result, &subID)
			f.logger.Info("subscribed to program logs", "subscription", subID)
		case msg.Method == "logsNotification" && msg.Params != nil:
			received++
			f.handle(ctx, msg.Params.Result)
		}
	}
}

// handle turns one notification into records and hands them to the sink.
// It reports whether the notification produced any records.
func (f *Follower) handle(ctx context.Context, n logsNotification) bool {
	f.metrics.notifications.Inc()

	sig := n.Value.Signature
	if sig != "" {
		if _, dup := f.seen.Get(sig); dup {
			f.metrics.duplicates.Inc()
			return false
		}
		f.seen.Add(sig, struct{}{})
	}

	records := buildRecords(n, f.now())
	if len(records) == 0 {
		return false
	}

	f.metrics.traces.Add(float64(len(records)))
	if records[0].Failed {
		name := records[0].ErrorName
		if name == "" {
			name = "unknown"
		}
		f.metrics.programErrors.WithLabelValues(name).Inc()
	}

	if f.sink == nil {
		return true
	}
	if err := f.sink.SaveTraces(ctx, records); err != nil {
		f.metrics.sinkFailures.Inc()
		f.logger.Warn("save traces failed", "signature", sig, "traces", len(records), "err", err)
	}
	return true
}
