package metadata

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"digiland/land-registry/land-registry-backend/internal/landnft/faults"
	"digiland/land-registry/land-registry-backend/pkg/storage"
)

// LandParcel holds the caller-supplied attributes of one land parcel
type LandParcel struct {
	SurveyNumber   string `json:"surveyNumber" binding:"required"`
	OwnerName      string `json:"ownerName" binding:"required"`
	Location       string `json:"location" binding:"required"`
	Size           string `json:"size" binding:"required"`
	LandType       string `json:"landType" binding:"required"`
	AdditionalInfo string `json:"additionalInfo" binding:"required"`
}

// Validate requires every attribute to be non-empty
func (p LandParcel) Validate() error {
	fields := []struct{ name, value string }{
		{"surveyNumber", p.SurveyNumber},
		{"ownerName", p.OwnerName},
		{"location", p.Location},
		{"size", p.Size},
		{"landType", p.LandType},
		{"additionalInfo", p.AdditionalInfo},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}
	return nil
}

// Artifact is the canonical metadata document published for a minted unit
type Artifact struct {
	Name        string     `json:"name"`
	Creator     string     `json:"creator"`
	Description string     `json:"description"`
	Image       string     `json:"image"`
	Type        string     `json:"type"`
	Format      string     `json:"format"`
	Properties  LandParcel `json:"properties"`
}

// Config fixes the artifact schema values
type Config struct {
	Scheme      string `json:"scheme"`
	Name        string `json:"name"`
	Creator     string `json:"creator"`
	Description string `json:"description"`
	Image       string `json:"image"`
	ImageType   string `json:"image_type"`
	Format      string `json:"format"`
}

// DefaultConfig returns the artifact defaults used by the land registry
func DefaultConfig() Config {
	return Config{
		Scheme:      DefaultScheme,
		Name:        "Land Parcel",
		Creator:     "digiland",
		Description: "Registered land parcel",
		Image:       "ipfs://bafkreidmnqjs3cb3t3tnowxods2o3dzijmdakha437h6lmfjc46ihfsg44",
		ImageType:   "image/jpg",
		Format:      "HIP412@2.0.0",
	}
}

// Publisher turns land attributes into a published, content-addressed artifact
type Publisher struct {
	store  storage.ContentStore
	config Config
	logger *zap.Logger
}

// NewPublisher creates a publisher on top of a content store
func NewPublisher(store storage.ContentStore, config Config, logger *zap.Logger) *Publisher {
	if config.Scheme == "" {
		config.Scheme = DefaultScheme
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		store:  store,
		config: config,
		logger: logger,
	}
}

// Build returns the canonical payload for parcel. Identical input yields identical bytes.
func (p *Publisher) Build(parcel LandParcel) ([]byte, error) {
	artifact := Artifact{
		Name:        p.config.Name,
		Creator:     p.config.Creator,
		Description: p.config.Description,
		Image:       p.config.Image,
		Type:        p.config.ImageType,
		Format:      p.config.Format,
		Properties:  parcel,
	}
	data, err := json.Marshal(artifact)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata artifact: %w", err)
	}
	return data, nil
}

// Publish validates parcel, publishes its artifact and returns the publication.
// Failures are DescriptorInvalid for bad input and PublishFailed for the store.
func (p *Publisher) Publish(ctx context.Context, parcel LandParcel) (*Publication, error) {
	const op = "publish"
	if err := parcel.Validate(); err != nil {
		return nil, faults.New(faults.DescriptorInvalid, op, err)
	}
	payload, err := p.Build(parcel)
	if err != nil {
		return nil, faults.New(faults.DescriptorInvalid, op, err)
	}

	name := uuid.NewString() + ".json"
	cid, err := p.store.Publish(ctx, storage.Object{
		Name:        name,
		ContentType: "application/json",
		Data:        payload,
	})
	if err != nil {
		p.logger.Error("Failed to publish metadata", zap.String("name", name), zap.Error(err))
		return nil, faults.New(faults.PublishFailed, op, err)
	}
	if cid == "" {
		return nil, faults.Newf(faults.PublishFailed, op, "content store returned an empty CID")
	}

	ref := newReference(p.config.Scheme, cid)
	var url string
	if gw, ok := p.store.(storage.Gateway); ok {
		url = gw.GatewayURL(cid)
	}
	p.logger.Info("Metadata published",
		zap.String("name", name),
		zap.String("reference", ref.String()),
		zap.String("url", url),
		zap.String("survey_number", parcel.SurveyNumber))

	return &Publication{ref: ref, payload: payload, url: url}, nil
}
