package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/appetiteclub/kitchenboard/internal/clock"
	"github.com/appetiteclub/kitchenboard/pkg/event"
	"github.com/aquamarinepk/aqm"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// BoardStreamMethod is the server-streaming RPC that carries board
// snapshots as google.protobuf.Struct messages.
const BoardStreamMethod = "/kitchen.v1.BoardStream/Subscribe"

var boardStreamDesc = &grpc.StreamDesc{
	StreamName:    "Subscribe",
	ServerStreams: true,
}

type GRPCConfig struct {
	Addr    string
	Topic   string
	Backoff BackoffConfig
}

// GRPCSource keeps a server stream open against the kitchen service and
// reopens it with backoff when it ends.
type GRPCSource struct {
	connState
	runner

	cfg     GRPCConfig
	handler Handler
	logger  aqm.Logger
	clock   clock.Clock
}

func NewGRPCSource(cfg GRPCConfig, handler Handler, logger aqm.Logger, clk clock.Clock) *GRPCSource {
	logger, clk = withDefaults(logger, clk)
	if cfg.Topic == "" {
		cfg.Topic = event.KitchenBoardTopic
	}
	return &GRPCSource{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "grpc-source"),
		clock:   clk,
	}
}

func (s *GRPCSource) Start(ctx context.Context) error {
	if s.cfg.Addr == "" {
		return fmt.Errorf("grpc source: %w", ErrNotConfigured)
	}
	if s.handler == nil {
		return errors.New("grpc source: nil handler")
	}
	s.start(s.loop)
	return nil
}

func (s *GRPCSource) Stop(ctx context.Context) error {
	err := s.stop(ctx)
	s.set(false)
	return err
}

func (s *GRPCSource) loop(ctx context.Context) {
	backoff := NewBackoff(s.cfg.Backoff.Initial, s.cfg.Backoff.Max)
	reconnect(ctx, s.clock, backoff, &s.connState, s.logger, "grpc", func(ctx context.Context) error {
		return s.stream(ctx, backoff)
	})
}

func (s *GRPCSource) stream(ctx context.Context, backoff *Backoff) error {
	conn, err := grpc.NewClient(s.cfg.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("create grpc client: %w", err)
	}
	defer conn.Close()

	stream, err := conn.NewStream(ctx, boardStreamDesc, BoardStreamMethod)
	if err != nil {
		return fmt.Errorf("open board stream: %w", err)
	}

	req, err := structpb.NewStruct(map[string]any{"topic": s.cfg.Topic})
	if err != nil {
		return fmt.Errorf("build subscribe request: %w", err)
	}
	if err := stream.SendMsg(req); err != nil {
		return fmt.Errorf("send subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("close send: %w", err)
	}

	backoff.Reset()
	s.set(true)
	s.logger.Info("board stream connected", "addr", s.cfg.Addr, "topic", s.cfg.Topic)

	for {
		msg := &structpb.Struct{}
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return errors.New("board stream closed by server")
			}
			return fmt.Errorf("receive: %w", err)
		}
		s.handler(Event{Type: event.EventBoardSnapshot, Payload: msg.AsMap()})
	}
}
