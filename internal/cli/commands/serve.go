package commands

import (
	"fmt"
	"net"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/nadi-hydro/nadi/internal/server"
	"github.com/spf13/cobra"
)

// ServeOptions holds options for the serve command.
type ServeOptions struct {
	Host  string
	Port  int
	Watch bool
}

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	opts := &ServeOptions{}

	cmd := &cobra.Command{
		Use:   "serve <connection-file>",
		Short: "Serve the network over HTTP",
		Long: `Start a read-only HTTP API for a river network.

Endpoints:
  GET /healthz        health check
  GET /network        nodes and attributes as JSON
  GET /network.dot    graphviz drawing (?label=, ?direction=)
  GET /network.txt    text tree (?label=)
  GET /nodes/{name}   attributes of one node
  GET /events         server-sent reload events

With --watch the network is reloaded when the connection file or the nodes
directory changes.`,
		Example: `  # Serve on the default port
  nadi serve rivers.network

  # Reload on changes
  nadi serve rivers.network --port 9000 --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "127.0.0.1", "Address to listen on")
	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "Port to listen on (default serve.port from config)")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Reload the network on file changes")

	return cmd
}

func runServe(cmd *cobra.Command, path string, opts *ServeOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer
	cfg := cmdCtx.Cfg

	port := opts.Port
	if !cmd.Flags().Changed("port") {
		port = cfg.Serve.Port
	}
	watch := opts.Watch || cfg.Serve.Watch

	srv, err := server.New(server.Config{
		Path:     path,
		NodesDir: cfg.NodesDir,
		Addr:     net.JoinHostPort(opts.Host, strconv.Itoa(port)),
		Watch:    watch,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.Success(fmt.Sprintf("Serving %d nodes at http://%s", srv.Network().Len(), net.JoinHostPort(opts.Host, strconv.Itoa(port))))
	if watch {
		r.Muted("Watching for changes")
	}
	return srv.Serve(ctx)
}
