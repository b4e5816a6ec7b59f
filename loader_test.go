package bttconf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProperties = `# comment line
! another comment
application-name = shop
instance-name: node-1
remote-port 2004
excluded-headers = Cookie, \
    Authorization
url-grouping-patterns = /\\d+: /{id}, (.*)\\.js: *.js
`

func TestParseProperties(t *testing.T) {
	values, err := ParseProperties([]byte(sampleProperties))
	require.NoError(t, err)

	assert.Equal(t, "shop", values["application-name"])
	assert.Equal(t, "node-1", values["instance-name"])
	assert.Equal(t, "2004", values["remote-port"])
	assert.Equal(t, "Cookie, Authorization", values["excluded-headers"])
	assert.Equal(t, `/\d+: /{id}, (.*)\.js: *.js`, values["url-grouping-patterns"])
	assert.Len(t, values, 5)
}

func TestParseProperties_NoExpansion(t *testing.T) {
	values, err := ParseProperties([]byte("a = ${b}\n"))
	require.NoError(t, err)
	assert.Equal(t, "${b}", values["a"])
}

func TestFSSource_Load(t *testing.T) {
	fsys := fstest.MapFS{
		"conf/app.properties": {Data: []byte(sampleProperties)},
	}
	src := NewFSSource(fsys, "conf/app.properties")

	values, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "shop", values["application-name"])
	assert.Equal(t, "fs:conf/app.properties", src.Name())
}

func TestFSSource_Missing(t *testing.T) {
	src := NewFSSource(fstest.MapFS{}, "missing.properties")

	_, err := src.Load(context.Background())
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestFSSource_CancelledContext(t *testing.T) {
	src := NewFSSource(fstest.MapFS{"a.properties": {Data: []byte("a=1")}}, "a.properties")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileSource_StoreFallsBackWhenMissing(t *testing.T) {
	logger, logs := newObservedLogger()
	path := filepath.Join(t.TempDir(), "absent.properties")

	s := New(NewFileSource(path), WithLogger(logger))
	defer s.Close()

	assert.Equal(t, 0, s.Snapshot().Len())
	assert.Equal(t, 2003, s.GetInt(KeyRemotePort, 2003))
	assert.Equal(t, 1, logs.FilterMessage("load properties failed, using defaults").Len())
}

func TestFileSource_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.properties")
	require.NoError(t, os.WriteFile(path, []byte("remote-port=2004\n"), 0o644))

	s := New(NewFileSource(path))
	defer s.Close()
	assert.Equal(t, 2004, s.GetInt(KeyRemotePort, 2003))
	assert.Equal(t, "file:"+path, s.Snapshot().Source)

	require.NoError(t, os.WriteFile(path, []byte("remote-port=2005\n"), 0o644))
	require.NoError(t, s.Reload(context.Background()))
	assert.Equal(t, 2005, s.GetInt(KeyRemotePort, 2003))
}

func TestStaticSource_ReturnsCopy(t *testing.T) {
	src := StaticSource{"a": "1"}
	values, err := src.Load(context.Background())
	require.NoError(t, err)

	values["a"] = "2"
	assert.Equal(t, "1", src["a"])
}
