package blob_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"gocloud.dev/blob/memblob"

	"github.com/pitabwire/cascade/blob"
)

type BlobTestSuite struct {
	suite.Suite
}

func TestBlobTestSuite(t *testing.T) {
	suite.Run(t, new(BlobTestSuite))
}

func (s *BlobTestSuite) TestModulePath() {
	s.Equal("en/goals.json", blob.ModulePath("en", "goals"))
	s.Equal("ta-tg/goals_userType_free.json", blob.ModulePath("ta-tg", "goals_userType_free"))
}

func (s *BlobTestSuite) TestBucketStore() {
	ctx := context.Background()
	bucket := memblob.OpenBucket(nil)
	store := blob.NewBucketStore(bucket)
	defer func() { s.NoError(store.Close()) }()

	s.Require().NoError(bucket.WriteAll(ctx, "en/goals.json", []byte(`{"title":"Goals"}`), nil))

	data, err := store.Download(ctx, "en/goals.json")
	s.Require().NoError(err)
	s.JSONEq(`{"title":"Goals"}`, string(data))

	_, err = store.Download(ctx, "en/missing.json")
	s.Require().ErrorIs(err, blob.ErrNotFound)
}

func (s *BlobTestSuite) TestOpenBucketWithPrefix() {
	ctx := context.Background()
	store, err := blob.OpenBucket(ctx, "mem://", "i18n/")
	s.Require().NoError(err)
	defer func() { s.NoError(store.Close()) }()

	s.Require().NoError(store.Bucket().WriteAll(ctx, blob.ManifestPath, []byte(`{}`), nil))

	data, err := store.Download(ctx, blob.ManifestPath)
	s.Require().NoError(err)
	s.Equal("{}", string(data))
}

func (s *BlobTestSuite) TestOpenBucketUnknownScheme() {
	_, err := blob.OpenBucket(context.Background(), "nope://bucket", "")
	s.Require().Error(err)
}

func (s *BlobTestSuite) TestHTTPStore() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/i18n/manifest.json":
			if r.Header.Get("Apikey") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"en":{}}`))
		case "/i18n/en/huge.json":
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		case "/i18n/en/broken.json":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	store := blob.NewHTTPStore(server.URL+"/i18n",
		blob.WithHTTPHeader("apikey", "secret"),
		blob.WithHTTPTransport(http.DefaultTransport),
		blob.WithMaxBodyLen(32),
		blob.WithHTTPTraceRequests(),
	)

	testCases := []struct {
		name    string
		path    string
		want    string
		wantErr error
		anyErr  bool
	}{
		{name: "found", path: blob.ManifestPath, want: `{"en":{}}`},
		{name: "not found", path: "en/goals.json", wantErr: blob.ErrNotFound},
		{name: "too large", path: "en/huge.json", wantErr: blob.ErrResponseTooLarge},
		{name: "server error", path: "en/broken.json", anyErr: true},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			data, err := store.Download(context.Background(), tc.path)
			switch {
			case tc.wantErr != nil:
				s.Require().ErrorIs(err, tc.wantErr)
			case tc.anyErr:
				s.Require().Error(err)
				s.NotErrorIs(err, blob.ErrNotFound)
			default:
				s.Require().NoError(err)
				s.Equal(tc.want, string(data))
			}
		})
	}
}
