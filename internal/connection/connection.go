// Package connection derives a river connection file from gauge points and
// a stream network given as GeoJSON. Every point snaps to its nearest stream
// and the stream network is walked downstream until the next point.
package connection

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var (
	// ErrGeometry is returned for a feature with an unexpected geometry type.
	ErrGeometry = errors.New("unexpected geometry")
	// ErrField is returned when the id field is missing from a feature.
	ErrField = errors.New("field missing")
)

// Point is a point of interest, usually a gauge station.
type Point struct {
	ID  string
	Loc orb.Point
}

// Stream is one stream segment flowing from Start to End.
type Stream struct {
	ID    string
	Geom  orb.Geometry
	Start orb.Point
	End   orb.Point
}

// Edge connects a point to the next point downstream.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Result is the output of Build.
type Result struct {
	Edges    []Edge   `json:"edges"`
	Warnings []string `json:"warnings"`
}

func readFeatures(r io.Reader) (*geojson.FeatureCollection, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("invalid geojson: %w", err)
	}
	return fc, nil
}

func featureID(f *geojson.Feature, i int, field string) (string, error) {
	if field == "" {
		return strconv.Itoa(i), nil
	}
	v, ok := f.Properties[field]
	if !ok || v == nil {
		return "", fmt.Errorf("feature %d: %w: %s", i, ErrField, field)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return fmt.Sprintf("%v", val), nil
	}
}

// ReadPoints reads Point features. The id comes from the property field,
// or the feature index when field is empty.
func ReadPoints(r io.Reader, field string) ([]Point, error) {
	fc, err := readFeatures(r)
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(fc.Features))
	for i, f := range fc.Features {
		id, err := featureID(f, i, field)
		if err != nil {
			return nil, err
		}
		var loc orb.Point
		switch g := f.Geometry.(type) {
		case orb.Point:
			loc = g
		case orb.MultiPoint:
			if len(g) == 0 {
				return nil, fmt.Errorf("feature %d: %w: empty multipoint", i, ErrGeometry)
			}
			loc = g[0]
		default:
			return nil, fmt.Errorf("feature %d: %w: %s, want Point", i, ErrGeometry, geometryType(f.Geometry))
		}
		points = append(points, Point{ID: id, Loc: loc})
	}
	return points, nil
}

// ReadStreams reads LineString or MultiLineString features.
func ReadStreams(r io.Reader, field string) ([]Stream, error) {
	fc, err := readFeatures(r)
	if err != nil {
		return nil, err
	}

	streams := make([]Stream, 0, len(fc.Features))
	for i, f := range fc.Features {
		id, err := featureID(f, i, field)
		if err != nil {
			return nil, err
		}
		s := Stream{ID: id, Geom: f.Geometry}
		switch g := f.Geometry.(type) {
		case orb.LineString:
			if len(g) == 0 {
				return nil, fmt.Errorf("feature %d: %w: empty linestring", i, ErrGeometry)
			}
			s.Start, s.End = g[0], g[len(g)-1]
		case orb.MultiLineString:
			if len(g) == 0 || len(g[0]) == 0 || len(g[len(g)-1]) == 0 {
				return nil, fmt.Errorf("feature %d: %w: empty multilinestring", i, ErrGeometry)
			}
			last := g[len(g)-1]
			s.Start, s.End = g[0][0], last[len(last)-1]
		default:
			return nil, fmt.Errorf("feature %d: %w: %s, want LineString", i, ErrGeometry, geometryType(f.Geometry))
		}
		streams = append(streams, s)
	}
	return streams, nil
}

func geometryType(g orb.Geometry) string {
	if g == nil {
		return "null"
	}
	return g.GeoJSONType()
}

// Fields returns the sorted property names used by any feature.
func Fields(r io.Reader) ([]string, error) {
	fc, err := readFeatures(r)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var fields []string
	for _, f := range fc.Features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}
	}
	sort.Strings(fields)
	return fields, nil
}

// Build snaps every point to the end of its nearest stream and connects it
// to the first point found walking downstream. Points are processed in input order.
func Build(points []Point, streams []Stream, logger *slog.Logger) *Result {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	res := &Result{}
	if len(points) == 0 || len(streams) == 0 {
		return res
	}

	flow := make(map[orb.Point]orb.Point, len(streams))
	for _, s := range streams {
		if prev, ok := flow[s.Start]; ok && prev != s.End {
			res.warn(logger, "stream %s: start %s already drains to %s; ignored", s.ID, fmtPoint(s.Start), fmtPoint(prev))
			continue
		}
		flow[s.Start] = s.End
	}

	nodeOf := make([]orb.Point, len(points))
	pointAt := make(map[orb.Point]string, len(points))
	for i, p := range points {
		nodeOf[i] = nearest(p.Loc, streams).End
		if other, ok := pointAt[nodeOf[i]]; ok {
			res.warn(logger, "point %s snaps to the same node as %s", p.ID, other)
			continue
		}
		pointAt[nodeOf[i]] = p.ID
	}

	for i, p := range points {
		if pointAt[nodeOf[i]] != p.ID {
			continue
		}
		curr := nodeOf[i]
		seen := map[orb.Point]bool{curr: true}
		for {
			next, ok := flow[curr]
			if !ok {
				res.warn(logger, "point %s at %s -> None (outlet %s)", p.ID, fmtPoint(nodeOf[i]), fmtPoint(curr))
				break
			}
			if seen[next] {
				res.warn(logger, "point %s: stream loop at %s", p.ID, fmtPoint(next))
				break
			}
			seen[next] = true
			if to, ok := pointAt[next]; ok {
				res.Edges = append(res.Edges, Edge{From: p.ID, To: to})
				break
			}
			curr = next
		}
	}
	return res
}

func (r *Result) warn(logger *slog.Logger, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logger.Warn(msg)
	r.Warnings = append(r.Warnings, msg)
}

// nearest returns the stream closest to p; ties go to the earlier stream.
func nearest(p orb.Point, streams []Stream) Stream {
	best, bestDist := streams[0], math.Inf(1)
	for _, s := range streams {
		if d := planar.DistanceFrom(s.Geom, p); d < bestDist {
			best, bestDist = s, d
		}
	}
	return best
}

func fmtPoint(p orb.Point) string {
	return fmt.Sprintf("(%s, %s)",
		strconv.FormatFloat(p[0], 'f', -1, 64),
		strconv.FormatFloat(p[1], 'f', -1, 64))
}

// WriteConnections writes the edges as a connection file.
func WriteConnections(w io.Writer, edges []Edge) error {
	for _, e := range edges {
		if _, err := fmt.Fprintf(w, "%s -> %s\n", e.From, e.To); err != nil {
			return err
		}
	}
	return nil
}

// EdgeFeatures returns the edges as LineString features between the points
// with start and end properties.
func EdgeFeatures(points []Point, edges []Edge) *geojson.FeatureCollection {
	loc := make(map[string]orb.Point, len(points))
	for _, p := range points {
		if _, ok := loc[p.ID]; !ok {
			loc[p.ID] = p.Loc
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, e := range edges {
		f := geojson.NewFeature(orb.LineString{loc[e.From], loc[e.To]})
		f.Properties["start"] = e.From
		f.Properties["end"] = e.To
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes the edge layer as a GeoJSON feature collection.
func WriteGeoJSON(w io.Writer, points []Point, edges []Edge) error {
	data, err := json.MarshalIndent(EdgeFeatures(points, edges), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
