package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/summarify/sumapi-go/pkg/client"
	"github.com/summarify/sumapi-go/pkg/logging"
)

// DefaultPacketSize is the number of arguments posted per request.
const DefaultPacketSize = 250

// Config holds batch executor configuration
type Config struct {
	// PacketSize is the maximum number of arguments per request
	PacketSize int
}

// DefaultConfig returns the packet size the service is tuned for
func DefaultConfig() Config {
	return Config{
		PacketSize: DefaultPacketSize,
	}
}

// Sender posts one packet to the batch endpoint. *client.Client
// implements it, including the gateway retry and token refresh.
type Sender interface {
	SendBatch(ctx context.Context, args []client.Argument) (*client.Response, error)
}

// Result is the outcome of a batch run.
type Result struct {
	// Evaluations holds one entry per processed item, in dataset order.
	Evaluations []json.RawMessage
	// Packets is the number of packets whose evaluations were collected.
	Packets int
	// Raw is set when the service answered with a body that is not JSON.
	// The run stops there and Evaluations holds the packets before it.
	Raw []byte
}

// Executor posts packets of a dataset strictly one after another.
type Executor struct {
	sender Sender
	config Config
	logger zerolog.Logger
}

// NewExecutor creates a new batch executor
func NewExecutor(sender Sender, config Config) *Executor {
	if config.PacketSize <= 0 {
		config.PacketSize = DefaultPacketSize
	}

	return &Executor{
		sender: sender,
		config: config,
		logger: logging.NewLogger("sumapi-batch"),
	}
}

// Run evaluates dataset and returns the evaluations in dataset order.
//
// On a terminal error the evaluations of the packets completed so far are
// returned together with the error. A body that is not JSON ends the run
// with Result.Raw set and a nil error.
func (e *Executor) Run(ctx context.Context, dataset []client.Argument) (*Result, error) {
	result := &Result{}
	if len(dataset) == 0 {
		return result, nil
	}

	start := time.Now()
	packets := Partition(dataset, e.config.PacketSize)
	logger := e.logger.With().Str("run_id", uuid.NewString()).Logger()
	defer func() {
		runDuration.Observe(time.Since(start).Seconds())
	}()

	logger.Info().
		Int("items", len(dataset)).
		Int("packets", len(packets)).
		Int("packet_size", e.config.PacketSize).
		Msg("Starting batch run")

	offset := 0
	for i, packet := range packets {
		evaluations, raw, err := e.runPacket(ctx, logger, i, offset, packet)
		if err != nil {
			logger.Error().
				Err(err).
				Int("packet", i).
				Int("completed_packets", result.Packets).
				Int("total_packets", len(packets)).
				Msg("Batch run failed - returning partial results")
			return result, err
		}
		if raw != nil {
			logger.Warn().
				Int("packet", i).
				Int("body_bytes", len(raw)).
				Msg("Batch response is not JSON - stopping run")
			result.Raw = raw
			return result, nil
		}

		result.Evaluations = append(result.Evaluations, evaluations...)
		result.Packets++
		offset += len(packet)
		itemsTotal.Add(float64(len(packet)))

		logger.Info().
			Int("packet", i+1).
			Int("total_packets", len(packets)).
			Int("items_done", offset).
			Float64("progress_pct", float64(offset)/float64(len(dataset))*100).
			Msg("Batch progress")
	}

	logger.Info().
		Int("items", len(result.Evaluations)).
		Int("packets", result.Packets).
		Dur("duration", time.Since(start)).
		Msg("Batch run complete")

	return result, nil
}

// runPacket sends one packet. It returns the evaluations, or the raw body
// when the response is not JSON.
func (e *Executor) runPacket(ctx context.Context, logger zerolog.Logger, index, offset int, packet []client.Argument) ([]json.RawMessage, []byte, error) {
	resp, err := e.sender.SendBatch(ctx, packet)
	if err != nil {
		if errors.Is(err, client.ErrTokenExpired) {
			packetsTotal.WithLabelValues("missing_evaluations").Inc()
			return nil, nil, &BatchItemError{Packet: index, Offset: offset, Size: len(packet), Err: err}
		}
		packetsTotal.WithLabelValues("error").Inc()
		return nil, nil, fmt.Errorf("batch packet %d: %w", index, err)
	}

	if resp.Malformed() {
		packetsTotal.WithLabelValues("malformed").Inc()
		if resp.Body == nil {
			return nil, []byte{}, nil
		}
		return nil, resp.Body, nil
	}

	list := gjson.GetBytes(resp.Body, "evaluations")
	if !list.IsArray() {
		packetsTotal.WithLabelValues("missing_evaluations").Inc()
		return nil, nil, &BatchItemError{Packet: index, Offset: offset, Size: len(packet), Body: resp.Body}
	}

	var evaluations []json.RawMessage
	if err := json.Unmarshal([]byte(list.Raw), &evaluations); err != nil {
		packetsTotal.WithLabelValues("missing_evaluations").Inc()
		return nil, nil, &BatchItemError{Packet: index, Offset: offset, Size: len(packet), Body: resp.Body, Err: err}
	}

	if len(evaluations) != len(packet) {
		logger.Warn().
			Int("packet", index).
			Int("items", len(packet)).
			Int("evaluations", len(evaluations)).
			Msg("Evaluation count differs from packet size")
	}

	packetsTotal.WithLabelValues("success").Inc()
	return evaluations, nil, nil
}
