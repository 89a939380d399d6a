package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/nadi-hydro/nadi/internal/cli/output"
	"github.com/nadi-hydro/nadi/internal/connection"
	"github.com/spf13/cobra"
)

// ConnectionOptions holds options for the connection command.
type ConnectionOptions struct {
	PointsField  string
	StreamsField string
	File         string
	GeoJSON      string
	ListFields   bool
}

// NewConnectionCommand creates the connection command.
func NewConnectionCommand() *cobra.Command {
	opts := &ConnectionOptions{}

	cmd := &cobra.Command{
		Use:   "connection <points.geojson> <streams.geojson>",
		Short: "Build a connection file from points and a stream network",
		Long: `Snap each point of interest to the nearest stream and follow the streams
downstream until another point is reached. Each pair found becomes an
"a -> b" line of the connection file.

Points whose flow path reaches an outlet without meeting another point are
reported as warnings.`,
		Example: `  # Print the connections using the "site" property as node names
  nadi connection gauges.geojson streams.geojson -p site

  # Save the connection file and a GeoJSON layer of the connections
  nadi connection gauges.geojson streams.geojson -p site -f rivers.network --geojson edges.geojson

  # Show the properties available in both files
  nadi connection gauges.geojson streams.geojson --list-fields`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnection(cmd, args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.PointsField, "points-field", "p", "", "Property naming each point (default feature index)")
	cmd.Flags().StringVarP(&opts.StreamsField, "streams-field", "s", "", "Property naming each stream (default feature index)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Write the connection file here instead of stdout")
	cmd.Flags().StringVar(&opts.GeoJSON, "geojson", "", "Also write the connections as GeoJSON lines")
	cmd.Flags().BoolVar(&opts.ListFields, "list-fields", false, "List the properties of both files and exit")

	return cmd
}

func runConnection(cmd *cobra.Command, pointsPath, streamsPath string, opts *ConnectionOptions) error {
	cmdCtx := NewCommandContext(cmd)
	r := cmdCtx.Renderer

	pointsData, err := os.ReadFile(pointsPath) //nolint:gosec // user-provided input
	if err != nil {
		return fmt.Errorf("failed to read points: %w", err)
	}
	streamsData, err := os.ReadFile(streamsPath) //nolint:gosec // user-provided input
	if err != nil {
		return fmt.Errorf("failed to read streams: %w", err)
	}

	if opts.ListFields {
		return listFields(r, map[string][]byte{pointsPath: pointsData, streamsPath: streamsData}, []string{pointsPath, streamsPath})
	}

	points, err := connection.ReadPoints(bytes.NewReader(pointsData), opts.PointsField)
	if err != nil {
		return fmt.Errorf("%s: %w", pointsPath, err)
	}
	streams, err := connection.ReadStreams(bytes.NewReader(streamsData), opts.StreamsField)
	if err != nil {
		return fmt.Errorf("%s: %w", streamsPath, err)
	}

	res := connection.Build(points, streams, cmdCtx.Logger)
	for _, w := range res.Warnings {
		r.Warning(w)
	}

	if opts.GeoJSON != "" {
		if err := writeFile(opts.GeoJSON, func(f *os.File) error {
			return connection.WriteGeoJSON(f, points, res.Edges)
		}); err != nil {
			return err
		}
	}

	if opts.File != "" {
		if err := writeFile(opts.File, func(f *os.File) error {
			return connection.WriteConnections(f, res.Edges)
		}); err != nil {
			return err
		}
		if r.EffectiveMode() == output.ModeText {
			r.Success(fmt.Sprintf("%d connections written to %s", len(res.Edges), opts.File))
		}
		return nil
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res)
	}
	return connection.WriteConnections(r.Writer(), res.Edges)
}

func listFields(r *output.Renderer, data map[string][]byte, order []string) error {
	all := make(map[string][]string, len(order))
	for _, path := range order {
		fields, err := connection.Fields(bytes.NewReader(data[path]))
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		all[path] = fields
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(all)
	}
	for _, path := range order {
		r.Header(2, path)
		for _, f := range all[path] {
			r.Println("- " + f)
		}
	}
	return nil
}

func writeFile(path string, fn func(*os.File) error) (err error) {
	f, err := os.Create(path) //nolint:gosec // user-provided output path
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(f)
}
