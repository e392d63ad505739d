package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"digiland/land-registry/land-registry-backend/internal/landnft/faults"
	"digiland/land-registry/land-registry-backend/pkg/storage"
)

func testParcel() LandParcel {
	return LandParcel{
		SurveyNumber:   "12345",
		OwnerName:      "Asha Rao",
		Location:       "Pune",
		Size:           "1200 sqft",
		LandType:       "Residential",
		AdditionalInfo: "corner plot",
	}
}

func TestPublishReturnsIPFSReference(t *testing.T) {
	store := storage.NewMemoryStore()
	publisher := NewPublisher(store, DefaultConfig(), zap.NewNop())

	pub, err := publisher.Publish(context.Background(), testParcel())

	require.NoError(t, err)
	ref := pub.Reference()
	assert.True(t, strings.HasPrefix(ref.String(), "ipfs://bafkrei"), ref.String())

	stored, err := store.Get(ref.CID())
	require.NoError(t, err)
	assert.Equal(t, pub.Payload(), stored)
}

func TestPublishArtifactShape(t *testing.T) {
	publisher := NewPublisher(storage.NewMemoryStore(), DefaultConfig(), zap.NewNop())

	payload, err := publisher.Build(testParcel())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "image/jpg", doc["type"])
	assert.Equal(t, "ipfs://bafkreidmnqjs3cb3t3tnowxods2o3dzijmdakha437h6lmfjc46ihfsg44", doc["image"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "12345", props["surveyNumber"])
	assert.Equal(t, "corner plot", props["additionalInfo"])

	// field order is part of the canonical form
	assert.True(t, strings.HasPrefix(string(payload), `{"name":`))
}

func TestPublishIsDeterministic(t *testing.T) {
	publisher := NewPublisher(storage.NewMemoryStore(), DefaultConfig(), zap.NewNop())

	first, err := publisher.Publish(context.Background(), testParcel())
	require.NoError(t, err)
	second, err := publisher.Publish(context.Background(), testParcel())
	require.NoError(t, err)

	assert.Equal(t, first.Reference(), second.Reference())

	other := testParcel()
	other.SurveyNumber = "99999"
	third, err := publisher.Publish(context.Background(), other)
	require.NoError(t, err)
	assert.NotEqual(t, first.Reference(), third.Reference())
}

func TestPublishRejectsMissingAttribute(t *testing.T) {
	store := storage.NewMemoryStore()
	publisher := NewPublisher(store, DefaultConfig(), zap.NewNop())
	parcel := testParcel()
	parcel.Location = ""

	_, err := publisher.Publish(context.Background(), parcel)

	assert.ErrorIs(t, err, faults.ErrDescriptorInvalid)
	assert.Contains(t, err.Error(), "location")
	assert.Equal(t, 0, store.Calls())
}

func TestPublishStoreFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	store.FailWith(errors.New("pinning service unavailable"))
	publisher := NewPublisher(store, DefaultConfig(), zap.NewNop())

	pub, err := publisher.Publish(context.Background(), testParcel())

	assert.Nil(t, pub)
	assert.ErrorIs(t, err, faults.ErrPublishFailed)
	assert.Contains(t, err.Error(), "pinning service unavailable")
}

func TestPublicationConsumedOnce(t *testing.T) {
	publisher := NewPublisher(storage.NewMemoryStore(), DefaultConfig(), zap.NewNop())
	pub, err := publisher.Publish(context.Background(), testParcel())
	require.NoError(t, err)

	ref, err := pub.Consume()
	require.NoError(t, err)
	assert.Equal(t, pub.Reference(), ref)

	_, err = pub.Consume()
	assert.ErrorIs(t, err, ErrPublicationConsumed)

	var empty *Publication
	_, err = empty.Consume()
	assert.Error(t, err)
}

func TestParseReference(t *testing.T) {
	cid, err := storage.ComputeCID([]byte("parcel"))
	require.NoError(t, err)

	ref, err := ParseReference("ipfs://" + cid)
	require.NoError(t, err)
	assert.Equal(t, cid, ref.CID())
	assert.Equal(t, "ipfs://"+cid, ref.String())
	assert.Equal(t, []byte("ipfs://"+cid), ref.Bytes())

	for _, bad := range []string{"", cid, "ipfs://", "://" + cid, "ipfs://not-a-cid"} {
		_, err := ParseReference(bad)
		assert.Error(t, err, bad)
	}
}

type gatewayStore struct {
	*storage.MemoryStore
}

func (gatewayStore) GatewayURL(cid string) string {
	return "https://gateway.example/ipfs/" + cid
}

func TestPublishExposesGatewayURL(t *testing.T) {
	pub, err := NewPublisher(gatewayStore{storage.NewMemoryStore()}, DefaultConfig(), zap.NewNop()).
		Publish(context.Background(), testParcel())
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example/ipfs/"+pub.Reference().CID(), pub.URL())

	pub, err = NewPublisher(storage.NewMemoryStore(), DefaultConfig(), zap.NewNop()).
		Publish(context.Background(), testParcel())
	require.NoError(t, err)
	assert.Empty(t, pub.URL())
}
