package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver dsn.Open uses
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/mickamy/sql-tap-proxy/broker"
	"github.com/mickamy/sql-tap-proxy/dsn"
	"github.com/mickamy/sql-tap-proxy/endpoint"
	"github.com/mickamy/sql-tap-proxy/explain"
	tapv1 "github.com/mickamy/sql-tap-proxy/gen/tap/v1"
	"github.com/mickamy/sql-tap-proxy/metrics"
	"github.com/mickamy/sql-tap-proxy/proxy"
	proxypostgres "github.com/mickamy/sql-tap-proxy/proxy/postgres"
	"github.com/mickamy/sql-tap-proxy/server"
	"github.com/mickamy/sql-tap-proxy/tui"
)

var version = "dev"

const usage = `sql-tap-proxy — transparent TCP proxy with a PostgreSQL wire-protocol tap

Usage:
  sql-tap-proxy forward <LOCAL_ADDR> <REMOTE_ADDR>
      Plain passthrough proxy, no observation.

  sql-tap-proxy tap <LOCAL_ADDR> <REMOTE_ADDR> [flags]
      Proxy PostgreSQL traffic, publishing captured events over gRPC.

      --dsn string          upstream DSN, enables the Explain RPC
      --admin-addr string   address for /metrics and /healthz (default ":9090")
      --grpc-addr string    address for the TapService gRPC server (default ":9091")
      --no-tui              do not launch the terminal dashboard

  sql-tap-proxy version
  sql-tap-proxy help
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "version", "--version", "-v":
		fmt.Printf("sql-tap-proxy %s\n", version)
		return
	case "help", "--help", "-h":
		fmt.Fprint(os.Stderr, usage)
		return
	case "forward":
		err = runForward(os.Args[2:])
	case "tap":
		err = runTap(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "sql-tap-proxy: %v\n", err)
		os.Exit(1)
	}
}

func runForward(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("forward: usage: sql-tap-proxy forward <LOCAL_ADDR> <REMOTE_ADDR>")
	}

	downstream, err := endpoint.Parse(args[0])
	if err != nil {
		return err
	}
	upstream, err := endpoint.Parse(args[1])
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "forward: ", log.LstdFlags)
	p := proxy.New(upstream, downstream, nil, proxy.WithLogger(logger))
	if err := p.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	logger.Printf("forwarding %s -> %s", downstream, upstream)

	waitForSignal()
	return p.Stop(true)
}

func runTap(args []string) error {
	fs := flag.NewFlagSet("tap", flag.ContinueOnError)
	dsnFlag := fs.String("dsn", "", "upstream DSN, enables the Explain RPC")
	adminAddr := fs.String("admin-addr", ":9090", "address for /metrics and /healthz")
	grpcAddr := fs.String("grpc-addr", ":9091", "address for the TapService gRPC server")
	noTUI := fs.Bool("no-tui", false, "do not launch the terminal dashboard")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("tap: usage: sql-tap-proxy tap <LOCAL_ADDR> <REMOTE_ADDR> [flags]")
	}

	downstream, err := endpoint.Parse(fs.Arg(0))
	if err != nil {
		return err
	}
	upstream, err := endpoint.Parse(fs.Arg(1))
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, "tap: ", log.LstdFlags)
	m := metrics.New()
	b := broker.New(256, broker.WithMetrics(m))
	handler := proxypostgres.NewHandler(b, logger)

	p := proxy.New(upstream, downstream, handler,
		proxy.WithLogger(logger),
		proxy.WithMetrics(m),
		proxy.WithSessionClosedHook(handler.Closed),
	)
	if err := p.Start(); err != nil {
		return fmt.Errorf("start proxy: %w", err)
	}
	defer func() { _ = p.Stop(true) }()
	logger.Printf("tapping %s -> %s", downstream, upstream)

	var explainClient *explain.Client
	if *dsnFlag != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, err := dsn.Open(ctx, *dsnFlag)
		cancel()
		if err != nil {
			return fmt.Errorf("open dsn: %w", err)
		}
		explainClient = explain.NewClient(db)
		defer func() { _ = explainClient.Close() }()
	}

	srv := server.New(b, explainClient)

	grpcLis, err := net.Listen("tcp", *grpcAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	adminSrv := &http.Server{Addr: *adminAddr, Handler: m.Handler()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Printf("gRPC TapService listening on %s", grpcLis.Addr())
		if err := srv.Serve(grpcLis); err != nil {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		logger.Printf("admin HTTP listening on %s", *adminAddr)
		if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin serve: %w", err)
		}
		return nil
	})

	if !*noTUI {
		group.Go(func() error {
			return runDashboard(gctx, *grpcAddr)
		})
	}

	group.Go(func() error {
		<-gctx.Done()
		srv.Stop()
		_ = adminSrv.Shutdown(context.Background())
		return nil
	})

	return group.Wait()
}

func runDashboard(ctx context.Context, grpcAddr string) error {
	conn, err := grpc.NewClient(grpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial tap service: %w", err)
	}
	defer func() { _ = conn.Close() }()

	client := tapv1.NewTapServiceClient(conn)
	program := tea.NewProgram(tui.NewDashboard(client))

	go func() {
		<-ctx.Done()
		program.Quit()
	}()

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}

func waitForSignal() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}
