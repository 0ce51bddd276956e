package catalog

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researchhub/mirror"
	"researchhub/objstore"
)

// Both objects carry the same ETag, as S3 reports for identical single-part uploads.
const sameContentListing = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
  <Name>research-papers</Name>
  <Prefix></Prefix>
  <KeyCount>2</KeyCount>
  <MaxKeys>1000</MaxKeys>
  <Delimiter>/</Delimiter>
  <IsTruncated>false</IsTruncated>
  <Contents>
    <Key>1748766600000_First-Paper_Ana-Cruz_SIP_STEM_2024.pdf</Key>
    <LastModified>2025-06-01T08:30:00.000Z</LastModified>
    <ETag>&quot;635b39f6a1fb7e4c1c2d3e4f5a6b7c0a&quot;</ETag>
    <Size>9</Size>
  </Contents>
  <Contents>
    <Key>1748766660000_Second-Paper_Ben-Reyes_SIP_STEM_2024.pdf</Key>
    <LastModified>2025-06-01T08:31:00.000Z</LastModified>
    <ETag>&quot;635b39f6a1fb7e4c1c2d3e4f5a6b7c0a&quot;</ETag>
    <Size>9</Size>
  </Contents>
</ListBucketResult>`

func newS3Documents(t *testing.T) objstore.Bucket {
	t.Helper()
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		if r.Method == http.MethodGet && r.URL.Path == "/research-papers" && r.URL.Query().Get("list-type") == "2" {
			_, _ = w.Write([]byte(sameContentListing))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`))
	}))
	t.Cleanup(srv.Close)

	client, err := objstore.NewS3Client(t.Context(), objstore.S3Options{
		Endpoint:  srv.URL,
		Region:    "us-east-1",
		AccessKey: "test",
		SecretKey: "test",
		PathStyle: true,
	})
	require.NoError(t, err)
	return objstore.NewS3Bucket(client, "research-papers")
}

func TestLoad_SameContentObjectsGetDistinctIDs(t *testing.T) {
	m, err := mirror.NewFileMirror(filepath.Join(t.TempDir(), "mirror.json"), 0, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	cat := New(newS3Documents(t), nil, m, Options{Now: func() time.Time { return fixedNow }})
	papers := cat.Load(t.Context())
	require.Len(t, papers, 2)
	assert.NotEqual(t, papers[0].ID, papers[1].ID)

	for _, want := range papers {
		got, ok := cat.Get(want.ID)
		require.True(t, ok)
		assert.Equal(t, want.Title, got.Title)
		assert.Equal(t, want.FileName, got.FileName)
	}
}
