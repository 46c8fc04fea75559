// Package server implements the gRPC TapService: a live Watch stream over
// a Broker, and an Explain RPC delegating to an optional explain.Client.
package server

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mickamy/sql-tap-proxy/broker"
	"github.com/mickamy/sql-tap-proxy/event"
	"github.com/mickamy/sql-tap-proxy/explain"
	tapv1 "github.com/mickamy/sql-tap-proxy/gen/tap/v1"
)

// Server implements tapv1.TapServiceServer.
type Server struct {
	tapv1.UnimplementedTapServiceServer

	broker  *broker.Broker
	explain *explain.Client

	grpcServer *grpc.Server
}

// New builds a Server backed by b. explainClient may be nil, in which case
// Explain always returns codes.FailedPrecondition.
func New(b *broker.Broker, explainClient *explain.Client) *Server {
	s := &Server{broker: b, explain: explainClient}
	s.grpcServer = grpc.NewServer()
	tapv1.RegisterTapServiceServer(s.grpcServer, s)
	return s
}

// Serve blocks accepting connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

// Stop shuts down the gRPC server, cancelling any open Watch streams.
func (s *Server) Stop() {
	s.grpcServer.Stop()
}

// Watch subscribes to the broker and streams every event published from
// here on, until the client disconnects or the server stops.
func (s *Server) Watch(_ *tapv1.WatchRequest, stream tapv1.TapService_WatchServer) error {
	ch, unsubscribe := s.broker.Subscribe()
	defer unsubscribe()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := stream.Send(&tapv1.WatchResponse{Event: toProto(ev)}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return stream.Context().Err()
		}
	}
}

// Explain runs EXPLAIN (or EXPLAIN ANALYZE) against the upstream database.
// Returns FailedPrecondition when the server was started without a DSN.
func (s *Server) Explain(ctx context.Context, req *tapv1.ExplainRequest) (*tapv1.ExplainResponse, error) {
	if s.explain == nil {
		return nil, status.Error(codes.FailedPrecondition, "server: no upstream DSN configured, Explain is unavailable")
	}

	mode := explain.Explain
	if req.GetAnalyze() {
		mode = explain.Analyze
	}

	result, err := s.explain.Run(ctx, mode, req.GetQuery(), req.GetArgs())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "server: explain: %v", err)
	}

	return &tapv1.ExplainResponse{
		Plan:          result.Plan,
		DurationNanos: result.Duration.Nanoseconds(),
	}, nil
}

func toProto(ev event.Event) *tapv1.Event {
	return &tapv1.Event{
		Id:                ev.ID,
		Op:                int32(ev.Op),
		Query:             ev.Query,
		Args:              ev.Args,
		StartTimeUnixNano: ev.StartTime.UnixNano(),
		DurationNanos:     ev.Duration.Nanoseconds(),
		RowsAffected:      ev.RowsAffected,
		Error:             ev.Error,
		TxId:              ev.TxID,
	}
}
