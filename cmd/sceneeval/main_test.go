package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/genscene/internal/auth"
	"github.com/inamate/genscene/internal/document"
	"github.com/inamate/genscene/internal/engine"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestEvalSample(t *testing.T) {
	out, _, err := run(t, "", "eval", "sample", "-t", "0.5", "--set", "width=800")
	require.NoError(t, err)

	var res engine.RenderResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 800, res.Config.Width)
	_, ok := res.Object("moon")
	assert.True(t, ok)
}

func TestEvalFromStdinAndFile(t *testing.T) {
	data, err := json.Marshal(document.NewSampleScene())
	require.NoError(t, err)

	out, _, err := run(t, string(data), "eval", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"objectId":"sun"`)

	path := filepath.Join(t.TempDir(), "scene.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	out, _, err = run(t, "", "eval", path, "--pretty")
	require.NoError(t, err)
	assert.Contains(t, out, "\n  \"objects\": [")
}

func TestEvalWarnings(t *testing.T) {
	scene := `{"objects":[{"id":"a","kind":"primitive","geometry":{"type":"rect","width":"@ghost.x","height":1}}]}`
	out, _, err := run(t, scene, "eval", "-", "--warnings")
	require.NoError(t, err)
	assert.Contains(t, out, "[a] unresolved reference @ghost.x")
}

func TestEvalErrors(t *testing.T) {
	_, _, err := run(t, "", "eval", "sample", "--set", "width")
	assert.ErrorContains(t, err, "key=value")

	_, _, err = run(t, "{", "eval", "-")
	assert.Error(t, err)

	_, _, err = run(t, "", "eval", filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read scene")
}

func TestRaster(t *testing.T) {
	out, _, err := run(t, "", "raster", "sample", "--object", "sun-core", "--scale", "2")
	require.NoError(t, err)
	img, err := png.Decode(strings.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	path := filepath.Join(t.TempDir(), "core.png")
	_, stderr, err := run(t, "", "raster", "sample", "--object", "sun-core", "-o", path)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Contains(t, stderr, "wrote")

	_, _, err = run(t, "", "raster", "sample", "--object", "sun")
	assert.ErrorContains(t, err, "has no raster")
	_, _, err = run(t, "", "raster", "sample", "--object", "ghost")
	assert.ErrorContains(t, err, "not found")
	_, _, err = run(t, "", "raster", "sample")
	assert.Error(t, err)
}

func TestRank(t *testing.T) {
	out, _, err := run(t, "", "rank", "sample")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Greater(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "RANK"))
	assert.Less(t, indexOfObject(lines, "sun"), indexOfObject(lines, "moon"))
}

func indexOfObject(lines []string, id string) int {
	for i, l := range lines {
		fields := strings.Fields(l)
		if len(fields) == 2 && fields[1] == id {
			return i
		}
	}
	return -1
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	out, _, err := run(t, "", "token", "--subject", "user-7", "--ttl", "1h")
	require.NoError(t, err)

	sub, err := auth.NewService("cli-secret").ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-7", sub)

	_, _, err = run(t, "", "token")
	assert.Error(t, err)
}
