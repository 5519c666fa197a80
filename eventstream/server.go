// Package eventstream exposes the contract state machine's domain events to
// external collaborators (notification dispatch, card/on-ramp integrations)
// over a read-only gRPC server stream. Routing, delivery and retry policy
// on the consumer side are out of scope; this package only publishes the
// event contract.
//
// Events travel as structpb Structs rather than a generated message type:
// the event set is open-ended by design (the state machine grows events
// faster than an IDL revision cycle), and consumers are loosely coupled
// key-value readers, not schema-bound clients.
package eventstream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/satlend/hub/contract"
)

const subscriberBuffer = 64

// Server fans contract events out to every connected subscriber. It
// implements contract.Emitter so the coordinator can publish into it
// directly. A subscriber that stops draining has events dropped rather than
// blocking the state machine.
type Server struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan *structpb.Struct]struct{}
}

// NewServer constructs a Server.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		logger: logger,
		subs:   make(map[chan *structpb.Struct]struct{}),
	}
}

var _ contract.Emitter = (*Server)(nil)

// Emit implements contract.Emitter.
func (s *Server) Emit(ev contract.Event) {
	payload, err := eventPayload(ev)
	if err != nil {
		s.logger.Error("eventstream: encode event", "type", ev.EventType(), "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- payload:
		default:
			s.logger.Warn("eventstream: dropping event for slow subscriber", "type", ev.EventType())
		}
	}
}

// Attach registers the event stream service on g.
func (s *Server) Attach(g *grpc.Server) {
	g.RegisterService(&serviceDesc, s)
}

// eventPayload flattens a typed event into a Struct: the event's exported
// fields plus a "type" discriminator carrying EventType().
func eventPayload(ev contract.Event) (*structpb.Struct, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("flatten event: %w", err)
	}
	fields["type"] = ev.EventType()
	return structpb.NewStruct(fields)
}

func (s *Server) subscribe(stream grpc.ServerStream) error {
	ch := make(chan *structpb.Struct, subscriberBuffer)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
	}()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-ch:
			if err := stream.SendMsg(payload); err != nil {
				return err
			}
		}
	}
}

type eventsService interface {
	subscribe(grpc.ServerStream) error
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	// Server-streaming method: the client opens with one (empty) request
	// message before the event flow starts.
	var req structpb.Struct
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	return srv.(eventsService).subscribe(stream)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "satlend.hub.v1.ContractEvents",
	HandlerType: (*eventsService)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{{
		StreamName:    "Subscribe",
		Handler:       subscribeHandler,
		ServerStreams: true,
	}},
}
