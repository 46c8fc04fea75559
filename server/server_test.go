package server_test

import (
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/mickamy/sql-tap-proxy/broker"
	"github.com/mickamy/sql-tap-proxy/event"
	tapv1 "github.com/mickamy/sql-tap-proxy/gen/tap/v1"
	"github.com/mickamy/sql-tap-proxy/server"
)

func startServer(t *testing.T, b *broker.Broker) tapv1.TapServiceClient {
	t.Helper()

	lis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatal(err)
	}

	srv := server.New(b, nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return tapv1.NewTapServiceClient(conn)
}

func TestWatch(t *testing.T) {
	t.Parallel()

	b := broker.New(8)
	client := startServer(t, b)

	ctx := t.Context()
	stream, err := client.Watch(ctx, &tapv1.WatchRequest{})
	if err != nil {
		t.Fatal(err)
	}

	// Wait briefly for the subscription to be registered.
	time.Sleep(50 * time.Millisecond)

	b.Publish(event.Event{
		ID:    "1",
		Op:    event.OpQuery,
		Query: "SELECT 1",
	})

	resp, err := stream.Recv()
	if err != nil {
		t.Fatal(err)
	}

	ev := resp.GetEvent()
	if ev.GetId() != "1" {
		t.Fatalf("expected id 1, got %q", ev.GetId())
	}
	if ev.GetQuery() != "SELECT 1" {
		t.Fatalf("expected query SELECT 1, got %q", ev.GetQuery())
	}
	if ev.GetOp() != int32(event.OpQuery) {
		t.Fatalf("expected op %d, got %d", event.OpQuery, ev.GetOp())
	}
}

func TestWatch_MultipleEvents(t *testing.T) {
	t.Parallel()

	b := broker.New(8)
	client := startServer(t, b)

	ctx := t.Context()
	stream, err := client.Watch(ctx, &tapv1.WatchRequest{})
	if err != nil {
		t.Fatal(err)
	}

	time.Sleep(50 * time.Millisecond)

	for i := range 3 {
		b.Publish(event.Event{
			ID:    string(rune('A' + i)),
			Op:    event.OpQuery,
			Query: "SELECT " + string(rune('A'+i)),
		})
	}

	for range 3 {
		resp, err := stream.Recv()
		if err != nil {
			t.Fatal(err)
		}
		if resp.GetEvent() == nil {
			t.Fatal("expected event, got nil")
		}
	}
}

func TestExplain_NotConfigured(t *testing.T) {
	t.Parallel()

	b := broker.New(8)
	client := startServer(t, b) // explainClient is nil

	ctx := t.Context()
	_, err := client.Explain(ctx, &tapv1.ExplainRequest{
		Query: "SELECT 1",
	})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("expected gRPC status error, got %v", err)
	}
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", st.Code())
	}
}
