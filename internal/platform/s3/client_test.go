package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBucket is a minimal path-style S3 server holding objects in memory.
type fakeBucket struct {
	mu      sync.Mutex
	buckets map[string]map[string][]byte
	created []string
}

func newFakeBucket(existing ...string) *fakeBucket {
	f := &fakeBucket{buckets: map[string]map[string][]byte{}}
	for _, b := range existing {
		f.buckets[b] = map[string][]byte{}
	}
	return f
}

func (f *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(path, "/")
	objects, ok := f.buckets[bucket]

	switch {
	case key == "" && r.Method == http.MethodHead:
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case key == "" && r.Method == http.MethodPut:
		if ok {
			xmlResponse(w, http.StatusConflict, errorXML("BucketAlreadyOwnedByYou"))
			return
		}
		f.buckets[bucket] = map[string][]byte{}
		f.created = append(f.created, bucket)
		w.WriteHeader(http.StatusOK)
	case !ok:
		xmlResponse(w, http.StatusNotFound, errorXML("NoSuchBucket"))
	case key == "" && r.Method == http.MethodGet:
		prefix := r.URL.Query().Get("prefix")
		var keys []string
		for k := range objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
		b.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
		fmt.Fprintf(&b, "<Name>%s</Name><KeyCount>%d</KeyCount><IsTruncated>false</IsTruncated>", bucket, len(keys))
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(objects[k]))
		}
		b.WriteString(`</ListBucketResult>`)
		xmlResponse(w, http.StatusOK, b.String())
	case r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		objects[key] = body
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, found := objects[key]
		if !found {
			xmlResponse(w, http.StatusNotFound, errorXML("NoSuchKey"))
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(data)
	case r.Method == http.MethodDelete:
		delete(objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func errorXML(code string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

// testClient creates a Client backed by a test HTTP server.
func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "eu-central-1",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient:   &http.Client{Transport: &http.Transport{}},
	})
	return &Client{s3: client}
}

func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	client, err := NewClient(context.Background(), Options{
		Endpoint:  "http://127.0.0.1:9000",
		Region:    "us-east-1",
		AccessKey: "minio",
		SecretKey: "minio123",
	})
	require.NoError(t, err)
	require.NotNil(t, client.s3)
	assert.True(t, client.s3.Options().UsePathStyle)
	assert.Equal(t, "http://127.0.0.1:9000", aws.ToString(client.s3.Options().BaseEndpoint))
}

func TestNewClient_DefaultEndpoint(t *testing.T) {
	t.Parallel()

	client, err := NewClient(context.Background(), Options{Region: "eu-west-1", AccessKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.False(t, client.s3.Options().UsePathStyle)
	assert.Nil(t, client.s3.Options().BaseEndpoint)
}

func TestEnsureBucket(t *testing.T) {
	t.Parallel()

	t.Run("creates missing bucket", func(t *testing.T) {
		t.Parallel()
		fake := newFakeBucket()
		client := testClient(t, fake)

		require.NoError(t, client.EnsureBucket(context.Background(), "reports"))
		assert.Equal(t, []string{"reports"}, fake.created)
	})

	t.Run("keeps existing bucket", func(t *testing.T) {
		t.Parallel()
		fake := newFakeBucket("reports")
		client := testClient(t, fake)

		require.NoError(t, client.EnsureBucket(context.Background(), "reports"))
		assert.Empty(t, fake.created)
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		t.Parallel()
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}))

		err := client.EnsureBucket(context.Background(), "reports")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to check bucket reports")
	})
}

func TestObjectRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := testClient(t, newFakeBucket("reports"))

	require.NoError(t, client.PutObject(ctx, "reports", "demo/run-1.json", []byte(`{"status":"Succeeded"}`), "application/json"))
	require.NoError(t, client.PutObject(ctx, "reports", "demo/latest.json", []byte(`{}`), ""))
	require.NoError(t, client.PutObject(ctx, "reports", "other/run-2.json", []byte(`{}`), ""))

	data, err := client.GetObject(ctx, "reports", "demo/run-1.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Succeeded"}`, string(data))

	keys, err := client.ListObjects(ctx, "reports", "demo/")
	require.NoError(t, err)
	assert.Equal(t, []string{"demo/latest.json", "demo/run-1.json"}, keys)

	require.NoError(t, client.DeleteObject(ctx, "reports", "demo/run-1.json"))
	_, err = client.GetObject(ctx, "reports", "demo/run-1.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetObject_MissingBucket(t *testing.T) {
	t.Parallel()
	client := testClient(t, newFakeBucket())

	_, err := client.GetObject(context.Background(), "nope", "key")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPutObject_Error(t *testing.T) {
	t.Parallel()
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, http.StatusForbidden, errorXML("AccessDenied"))
	}))

	err := client.PutObject(context.Background(), "reports", "k", []byte("x"), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to put object k in bucket reports")
	assert.False(t, IsNotFound(err))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
		{name: "sentinel", err: fmt.Errorf("wrap: %w", ErrNotFound), want: true},
		{name: "no such bucket", err: fmt.Errorf("outer: %w", &s3types.NoSuchBucket{}), want: true},
		{name: "no such key", err: &s3types.NoSuchKey{}, want: true},
		{name: "not found", err: &s3types.NotFound{}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsNotFound(tt.err))
		})
	}
}
