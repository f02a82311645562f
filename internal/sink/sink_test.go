package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periospot/implantgen/dataset"
	"github.com/periospot/implantgen/internal/config"
)

func sampleObjects(t *testing.T) []Object {
	t.Helper()
	table, err := dataset.New("toy",
		dataset.StringColumn("id", dataset.RoleID, []string{"A", "B"}),
		dataset.FloatColumn("x", dataset.RoleFeature, 1, []float64{1.25, 2}),
	)
	require.NoError(t, err)
	csv, err := CSVObject(table)
	require.NoError(t, err)
	return []Object{csv, JSONObject("reports/toy.json", []byte(`{"ok":true}`))}
}

func TestCSVObject(t *testing.T) {
	objs := sampleObjects(t)
	assert.Equal(t, "toy.csv", objs[0].Key)
	assert.Equal(t, "text/csv", objs[0].ContentType)
	assert.Equal(t, "id,x\nA,1.2\nB,2.0\n", string(objs[0].Body))
}

func TestFSWriteAll(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	store, err := NewFS(root)
	require.NoError(t, err)
	assert.Equal(t, DriverFS, store.Driver())
	assert.Equal(t, root, store.Location())

	infos, err := store.WriteAll(context.Background(), sampleObjects(t), map[string]string{MetaRunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "toy.csv", infos[0].Key)
	assert.Len(t, infos[0].ETag, 64)

	body, err := os.ReadFile(filepath.Join(root, "toy.csv"))
	require.NoError(t, err)
	assert.Equal(t, "id,x\nA,1.2\nB,2.0\n", string(body))
	_, err = os.Stat(filepath.Join(root, "reports", "toy.json"))
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(root, ManifestKey))
	require.NoError(t, err)
	var m manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "run-1", m.Metadata[MetaRunID])
	assert.Len(t, m.Objects, 2)

	leftovers, err := filepath.Glob(filepath.Join(root, ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFSWriteAllIsAllOrNothing(t *testing.T) {
	root := t.TempDir()
	store, err := NewFS(root)
	require.NoError(t, err)

	objs := append(sampleObjects(t), Object{Key: "../escape.csv", Body: []byte("x")})
	_, err = store.WriteAll(context.Background(), objs, nil)
	require.Error(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing published when a key is rejected")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.WriteAll(ctx, sampleObjects(t), nil)
	require.ErrorIs(t, err, context.Canceled)
	entries, err = os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFSFailedBatchKeepsPreviousRun(t *testing.T) {
	root := t.TempDir()
	store, err := NewFS(root)
	require.NoError(t, err)

	first := []Object{
		{Key: "a.csv", Body: []byte("first a\n")},
		{Key: "b.csv", Body: []byte("first b\n")},
	}
	_, err = store.WriteAll(context.Background(), first, map[string]string{MetaRunID: "run-1"})
	require.NoError(t, err)

	// the second batch fails when b.csv is moved into place
	failing := filepath.Join(root, "b.csv")
	store.rename = func(oldpath, newpath string) error {
		if newpath == failing {
			return os.ErrPermission
		}
		return os.Rename(oldpath, newpath)
	}
	second := []Object{
		{Key: "a.csv", Body: []byte("second a\n")},
		{Key: "b.csv", Body: []byte("second b\n")},
		{Key: "c.csv", Body: []byte("second c\n")},
	}
	_, err = store.WriteAll(context.Background(), second, map[string]string{MetaRunID: "run-2"})
	require.Error(t, err)

	for key, want := range map[string]string{"a.csv": "first a\n", "b.csv": "first b\n"} {
		body, err := os.ReadFile(filepath.Join(root, key))
		require.NoError(t, err, key)
		assert.Equal(t, want, string(body), key)
	}
	_, err = os.Stat(filepath.Join(root, "c.csv"))
	assert.True(t, os.IsNotExist(err), "new object of the failed batch is removed")

	raw, err := os.ReadFile(filepath.Join(root, ManifestKey))
	require.NoError(t, err)
	var m manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "run-1", m.Metadata[MetaRunID])
	assert.Len(t, m.Objects, 2)

	leftovers, err := filepath.Glob(filepath.Join(root, ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "no staged files or backups left behind")

	// a later successful batch replaces the files and drops the backups
	store.rename = os.Rename
	_, err = store.WriteAll(context.Background(), second, map[string]string{MetaRunID: "run-3"})
	require.NoError(t, err)
	body, err := os.ReadFile(filepath.Join(root, "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, "second b\n", string(body))
	leftovers, err = filepath.Glob(filepath.Join(root, ".tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestValidateKeys(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		ok   bool
	}{
		{"plain", []string{"a.csv", "dir/b.json"}, true},
		{"empty", []string{" "}, false},
		{"absolute", []string{"/etc/passwd"}, false},
		{"traversal", []string{"a/../../b"}, false},
		{"duplicate", []string{"a.csv", "a.csv"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objs := make([]Object, len(tt.keys))
			for i, k := range tt.keys {
				objs[i] = Object{Key: k}
			}
			err := validateKeys(objs)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

// fakeS3 is an in-memory S3 endpoint handling path-style PUT and DELETE.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	failKey string
}

type fakeObject struct {
	body    []byte
	header  http.Header
	deleted bool
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// /bucket/key
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	switch req.Method {
	case http.MethodPut:
		if key == f.failKey {
			return xmlResponse(http.StatusForbidden,
				`<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`), nil
		}
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeAWSChunked(body)
		}
		f.objects[key] = fakeObject{body: body, header: req.Header.Clone()}
		resp := xmlResponse(http.StatusOK, "")
		resp.Header.Set("ETag", `"etag-`+strconv.Itoa(len(body))+`"`)
		return resp, nil
	case http.MethodDelete:
		if obj, ok := f.objects[key]; ok {
			obj.deleted = true
			f.objects[key] = obj
		}
		return xmlResponse(http.StatusNoContent, ""), nil
	}
	return xmlResponse(http.StatusNotImplemented, ""), nil
}

func (f *fakeS3) live() map[string]fakeObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]fakeObject)
	for k, v := range f.objects {
		if !v.deleted {
			out[k] = v
		}
	}
	return out
}

func xmlResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/xml"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

// decodeAWSChunked strips aws-chunked framing: <hex-size>[;ext]\r\n<data>\r\n ... 0\r\n
func decodeAWSChunked(b []byte) []byte {
	var out bytes.Buffer
	for len(b) > 0 {
		i := bytes.Index(b, []byte("\r\n"))
		if i < 0 {
			break
		}
		sizeField := string(b[:i])
		if j := strings.IndexByte(sizeField, ';'); j >= 0 {
			sizeField = sizeField[:j]
		}
		size, err := strconv.ParseInt(sizeField, 16, 64)
		if err != nil || size == 0 {
			break
		}
		b = b[i+2:]
		out.Write(b[:size])
		b = bytes.TrimPrefix(b[size:], []byte("\r\n"))
	}
	return out.Bytes()
}

func newFakeS3Store(t *testing.T, fake *fakeS3, prefix string) *S3 {
	t.Helper()
	store, err := NewS3(context.Background(), config.S3Config{
		Bucket:          "implants",
		Prefix:          prefix,
		Region:          "us-east-1",
		Endpoint:        "https://mock.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
	}, WithHTTPClient(&http.Client{Transport: fake}))
	require.NoError(t, err)
	return store
}

func TestS3WriteAll(t *testing.T) {
	fake := &fakeS3{objects: make(map[string]fakeObject)}
	store := newFakeS3Store(t, fake, "/runs/42/")
	assert.Equal(t, DriverS3, store.Driver())
	assert.Equal(t, "s3://implants/runs/42", store.Location())

	infos, err := store.WriteAll(context.Background(), sampleObjects(t), map[string]string{MetaRunID: "abc", MetaSeed: "42"})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "runs/42/toy.csv", infos[0].Key)
	assert.Equal(t, "etag-17", infos[0].ETag)

	live := fake.live()
	require.Len(t, live, 2)
	csv := live["runs/42/toy.csv"]
	assert.Equal(t, "id,x\nA,1.2\nB,2.0\n", string(csv.body))
	assert.Equal(t, "text/csv", csv.header.Get("Content-Type"))
	assert.Equal(t, "abc", csv.header.Get("X-Amz-Meta-Run-Id"))
	assert.Equal(t, "42", csv.header.Get("X-Amz-Meta-Seed"))
	assert.Contains(t, live, "runs/42/reports/toy.json")
}

func TestS3WriteAllRollsBack(t *testing.T) {
	fake := &fakeS3{objects: make(map[string]fakeObject), failKey: "reports/toy.json"}
	store := newFakeS3Store(t, fake, "")

	_, err := store.WriteAll(context.Background(), sampleObjects(t), nil)
	require.Error(t, err)
	assert.Empty(t, fake.live(), "uploaded objects are deleted after a failure")
	assert.Contains(t, fake.objects, "toy.csv", "the first upload did happen")
}

func TestOpen(t *testing.T) {
	store, err := Open(context.Background(), config.SinkConfig{Kind: config.SinkFS, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, DriverFS, store.Driver())

	_, err = Open(context.Background(), config.SinkConfig{Kind: config.SinkS3})
	assert.Error(t, err, "bucket required")

	_, err = Open(context.Background(), config.SinkConfig{Kind: "ftp"})
	assert.Error(t, err)
}
