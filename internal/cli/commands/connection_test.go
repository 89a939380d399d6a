package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadi-hydro/nadi/internal/connection"
)

const (
	testPoints = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"name":"p1","elev":10},"geometry":{"type":"Point","coordinates":[0.5,0.1]}},
{"type":"Feature","properties":{"name":"p2","elev":5},"geometry":{"type":"Point","coordinates":[1.5,0.1]}}
]}`
	testStreams = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"sid":"s1"},"geometry":{"type":"LineString","coordinates":[[0,0],[1,0]]}},
{"type":"Feature","properties":{"sid":"s2"},"geometry":{"type":"LineString","coordinates":[[1,0],[2,0]]}}
]}`
)

func writeGeoFiles(t *testing.T) (dir, points, streams string) {
	t.Helper()
	dir = t.TempDir()
	points = filepath.Join(dir, "points.geojson")
	streams = filepath.Join(dir, "streams.geojson")
	require.NoError(t, os.WriteFile(points, []byte(testPoints), 0o600))
	require.NoError(t, os.WriteFile(streams, []byte(testStreams), 0o600))
	return dir, points, streams
}

func TestConnectionCommand(t *testing.T) {
	_, points, streams := writeGeoFiles(t)

	out, errOut, err := runCommand(t, NewConnectionCommand(), points, streams, "-p", "name")
	require.NoError(t, err)
	assert.Equal(t, "p1 -> p2\n", out)
	assert.Contains(t, errOut, "Warning: point p2")
}

func TestConnectionCommand_Files(t *testing.T) {
	dir, points, streams := writeGeoFiles(t)
	netFile := filepath.Join(dir, "rivers.network")
	geoFile := filepath.Join(dir, "edges.geojson")

	out, _, err := runCommand(t, NewConnectionCommand(), points, streams, "-p", "name", "-f", netFile, "--geojson", geoFile)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(netFile)
	require.NoError(t, err)
	assert.Equal(t, "p1 -> p2\n", string(data))

	geo, err := os.ReadFile(geoFile)
	require.NoError(t, err)
	assert.Contains(t, string(geo), "LineString")
}

func TestConnectionCommand_JSON(t *testing.T) {
	_, points, streams := writeGeoFiles(t)
	t.Setenv("NADI_OUTPUT", "json")

	out, _, err := runCommand(t, NewConnectionCommand(), points, streams, "-p", "name")
	require.NoError(t, err)

	var res connection.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, []connection.Edge{{From: "p1", To: "p2"}}, res.Edges)
	assert.Len(t, res.Warnings, 1)
}

func TestConnectionCommand_ListFields(t *testing.T) {
	_, points, streams := writeGeoFiles(t)

	out, _, err := runCommand(t, NewConnectionCommand(), points, streams, "--list-fields")
	require.NoError(t, err)
	assert.Contains(t, out, "## "+points)
	assert.Contains(t, out, "- elev\n- name\n")
	assert.Contains(t, out, "- sid\n")
}

func TestConnectionCommand_Errors(t *testing.T) {
	dir, points, streams := writeGeoFiles(t)

	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{"missing points", []string{filepath.Join(dir, "none.geojson"), streams}, "failed to read points"},
		{"missing streams", []string{points, filepath.Join(dir, "none.geojson")}, "failed to read streams"},
		{"swapped files", []string{streams, points}, streams},
		{"unknown field", []string{points, streams, "-p", "height"}, "height"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCommand(t, NewConnectionCommand(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
