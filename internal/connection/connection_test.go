package connection

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const streamsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"sid":"A"},"geometry":{"type":"LineString","coordinates":[[0,2],[0,1]]}},
 {"type":"Feature","properties":{"sid":"B"},"geometry":{"type":"LineString","coordinates":[[0,1],[0,0.5],[0,0]]}},
 {"type":"Feature","properties":{"sid":"C"},"geometry":{"type":"LineString","coordinates":[[1,2],[0.5,1.5]]}},
 {"type":"Feature","properties":{"sid":"D"},"geometry":{"type":"MultiLineString","coordinates":[[[0.5,1.5],[0.25,1.25]],[[0.25,1.25],[0,1]]]}}
]}`

const pointsJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"name":"p1","area":10},"geometry":{"type":"Point","coordinates":[0.1,1.8]}},
 {"type":"Feature","properties":{"name":"p2"},"geometry":{"type":"Point","coordinates":[-0.1,0.5]}},
 {"type":"Feature","properties":{"name":"p3"},"geometry":{"type":"Point","coordinates":[1,1.9]}},
 {"type":"Feature","properties":{"name":"p4"},"geometry":{"type":"Point","coordinates":[5,5]}}
]}`

func load(t *testing.T) ([]Point, []Stream) {
	t.Helper()
	points, err := ReadPoints(strings.NewReader(pointsJSON), "name")
	require.NoError(t, err)
	streams, err := ReadStreams(strings.NewReader(streamsJSON), "sid")
	require.NoError(t, err)
	return points, streams
}

func TestReadStreams(t *testing.T) {
	_, streams := load(t)
	require.Len(t, streams, 4)
	assert.Equal(t, "D", streams[3].ID)
	assert.Equal(t, [2]float64{0.5, 1.5}, [2]float64(streams[3].Start))
	assert.Equal(t, [2]float64{0, 1}, [2]float64(streams[3].End))
}

func TestReadPoints_IndexIDs(t *testing.T) {
	points, err := ReadPoints(strings.NewReader(pointsJSON), "")
	require.NoError(t, err)
	assert.Equal(t, "0", points[0].ID)
	assert.Equal(t, "3", points[3].ID)
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name   string
		read   func() error
		errMsg string
	}{
		{
			name: "missing field",
			read: func() error {
				_, err := ReadPoints(strings.NewReader(pointsJSON), "area")
				return err
			},
			errMsg: "feature 1: field missing: area",
		},
		{
			name: "lines as points",
			read: func() error {
				_, err := ReadPoints(strings.NewReader(streamsJSON), "")
				return err
			},
			errMsg: "LineString, want Point",
		},
		{
			name: "points as streams",
			read: func() error {
				_, err := ReadStreams(strings.NewReader(pointsJSON), "")
				return err
			},
			errMsg: "Point, want LineString",
		},
		{
			name: "invalid json",
			read: func() error {
				_, err := ReadStreams(strings.NewReader("{"), "")
				return err
			},
			errMsg: "invalid geojson",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestFields(t *testing.T) {
	fields, err := Fields(strings.NewReader(pointsJSON))
	require.NoError(t, err)
	assert.Equal(t, []string{"area", "name"}, fields)
}

func TestBuild(t *testing.T) {
	points, streams := load(t)
	res := Build(points, streams, nil)

	assert.Equal(t, []Edge{{From: "p1", To: "p2"}, {From: "p3", To: "p1"}}, res.Edges)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "point p4 snaps to the same node as p3", res.Warnings[0])
	assert.Equal(t, "point p2 at (0, 0) -> None (outlet (0, 0))", res.Warnings[1])

	var buf bytes.Buffer
	require.NoError(t, WriteConnections(&buf, res.Edges))
	assert.Equal(t, "p1 -> p2\np3 -> p1\n", buf.String())
}

func TestBuild_Empty(t *testing.T) {
	_, streams := load(t)
	res := Build(nil, streams, nil)
	assert.Empty(t, res.Edges)
	assert.Empty(t, res.Warnings)
}

func TestWriteGeoJSON(t *testing.T) {
	points, streams := load(t)
	res := Build(points, streams, nil)

	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, points, res.Edges))

	var out struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string       `json:"type"`
				Coordinates [][2]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]string `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "FeatureCollection", out.Type)
	require.Len(t, out.Features, 2)
	assert.Equal(t, "LineString", out.Features[0].Geometry.Type)
	assert.Equal(t, [][2]float64{{0.1, 1.8}, {-0.1, 0.5}}, out.Features[0].Geometry.Coordinates)
	assert.Equal(t, map[string]string{"start": "p1", "end": "p2"}, out.Features[0].Properties)
}
