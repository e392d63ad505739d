package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*manager.UploadOutput), args.Error(1)
}

func TestComputeCIDIsDeterministic(t *testing.T) {
	a, err := ComputeCID([]byte(`{"name":"parcel"}`))
	require.NoError(t, err)
	b, err := ComputeCID([]byte(`{"name":"parcel"}`))
	require.NoError(t, err)
	c, err := ComputeCID([]byte(`{"name":"other"}`))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "bafkrei"), a)
	assert.True(t, ValidCID(a))
	assert.False(t, ValidCID("not-a-cid"))
}

func TestIPFSClientPublish(t *testing.T) {
	var gotAuth, gotName, gotBody, gotOptions string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pinning/pinFileToIPFS", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		gotBody = string(data)
		gotName = header.Filename
		gotOptions = r.FormValue("pinataOptions")
		_ = json.NewEncoder(w).Encode(map[string]any{"IpfsHash": "bafkQMtest", "PinSize": len(data)})
	}))
	defer srv.Close()

	client := NewIPFSClient(IPFSConfig{APIURL: srv.URL, JWT: "secret-jwt"})
	id, err := client.Publish(context.Background(), Object{Name: "a.json", ContentType: "application/json", Data: []byte(`{"x":1}`)})

	require.NoError(t, err)
	assert.Equal(t, "bafkQMtest", id)
	assert.Equal(t, "Bearer secret-jwt", gotAuth)
	assert.Equal(t, "a.json", gotName)
	assert.Equal(t, `{"x":1}`, gotBody)
	assert.JSONEq(t, `{"cidVersion":1}`, gotOptions)
}

func TestIPFSClientPublishRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid jwt", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewIPFSClient(IPFSConfig{APIURL: srv.URL})
	_, err := client.Publish(context.Background(), Object{Name: "a.json", Data: []byte("x")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestIPFSClientGatewayURL(t *testing.T) {
	assert.Equal(t, "https://gw.example/ipfs/bafk", NewIPFSClient(IPFSConfig{Gateway: "gw.example"}).GatewayURL("bafk"))
	assert.Empty(t, NewIPFSClient(IPFSConfig{}).GatewayURL("bafk"))
}

func TestS3ClientPublishUsesCIDAsKey(t *testing.T) {
	uploader := new(MockUploader)
	store := NewS3ClientWithUploader(uploader, "land-metadata", "parcels/")
	data := []byte(`{"surveyNumber":"12345"}`)
	want, err := ComputeCID(data)
	require.NoError(t, err)

	uploader.On("Upload", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "land-metadata" && *in.Key == "parcels/"+want && *in.ContentType == "application/json"
	})).Return(&manager.UploadOutput{}, nil).Once()

	id, err := store.Publish(context.Background(), Object{Name: "x.json", ContentType: "application/json", Data: data})

	require.NoError(t, err)
	assert.Equal(t, want, id)
	uploader.AssertExpectations(t)
}

func TestS3ClientPublishError(t *testing.T) {
	uploader := new(MockUploader)
	store := NewS3ClientWithUploader(uploader, "land-metadata", "")
	uploader.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("access denied")).Once()

	_, err := store.Publish(context.Background(), Object{Data: []byte("x")})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	id, err := store.Publish(context.Background(), Object{Data: []byte("hello")})
	require.NoError(t, err)

	data, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, 1, store.Calls())

	store.FailWith(errors.New("down"))
	_, err = store.Publish(context.Background(), Object{Data: []byte("hello")})
	assert.EqualError(t, err, "down")
	assert.Equal(t, 2, store.Calls())
}
