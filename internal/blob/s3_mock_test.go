package blob

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mesh-intelligence/docgraph/pkg/types"
)

// newMockS3 returns an S3 store whose HTTP transport is an in-memory bucket.
func newMockS3(t *testing.T) *S3 {
	t.Helper()
	rt := &mockBucket{objects: make(map[string][]byte)}
	awsCfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIA", "SECRET", ""),
	}
	return NewS3FromConfig(awsCfg, types.S3Config{
		Bucket:       "mock-bucket",
		Endpoint:     "https://mock.s3.local",
		Prefix:       "docs",
		UsePathStyle: true,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
}

// mockBucket serves the handful of S3 calls the store makes.
type mockBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func response(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: header}
}

func (m *mockBucket) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		prefix := req.URL.Query().Get("prefix")
		var keys []string
		for k := range m.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult><IsTruncated>false</IsTruncated>`)
		for _, k := range keys {
			fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(m.objects[k]))
		}
		fmt.Fprintf(&b, "<KeyCount>%d</KeyCount></ListBucketResult>", len(keys))
		return response(http.StatusOK, b.String(), http.Header{"Content-Type": {"application/xml"}}), nil
	}

	notFound := `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`
	switch req.Method {
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		m.objects[key] = body
		return response(http.StatusOK, "", http.Header{"Etag": {`"etag"`}}), nil
	case http.MethodGet:
		data, ok := m.objects[key]
		if !ok {
			return response(http.StatusNotFound, notFound, http.Header{"Content-Type": {"application/xml"}}), nil
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(data)),
			Header:     http.Header{"Content-Length": {strconv.Itoa(len(data))}},
		}, nil
	case http.MethodHead:
		data, ok := m.objects[key]
		if !ok {
			return response(http.StatusNotFound, "", nil), nil
		}
		return response(http.StatusOK, "", http.Header{"Content-Length": {strconv.Itoa(len(data))}}), nil
	case http.MethodDelete:
		delete(m.objects, key)
		return response(http.StatusNoContent, "", nil), nil
	}
	return response(http.StatusNotImplemented, "", nil), nil
}

// decodeChunked unwraps an aws-chunked body: <hex size>[;ext]\r\n<data>\r\n
// repeated and terminated by a zero-size chunk.
func decodeChunked(b []byte) ([]byte, bool) {
	var out []byte
	rest := b
	for {
		line, after, ok := bytes.Cut(rest, []byte("\r\n"))
		if !ok {
			return nil, false
		}
		sizeField, _, _ := bytes.Cut(line, []byte(";"))
		size, err := strconv.ParseInt(string(sizeField), 16, 64)
		if err != nil || size < 0 || int64(len(after)) < size {
			return nil, false
		}
		if size == 0 {
			return out, true
		}
		out = append(out, after[:size]...)
		rest = bytes.TrimPrefix(after[size:], []byte("\r\n"))
	}
}
