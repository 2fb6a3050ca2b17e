package service

import (
	"context"
	"fmt"
	"net/url"
	"slices"

	"gocloud.dev/secrets"
	_ "gocloud.dev/secrets/awskms"
	_ "gocloud.dev/secrets/azurekeyvault"
	_ "gocloud.dev/secrets/gcpkms"
	_ "gocloud.dev/secrets/hashivault"
	_ "gocloud.dev/secrets/localsecrets"

	cryptoDomain "github.com/allisson/rotator/internal/crypto/domain"
)

// KMSSchemes lists the keeper URL schemes the software HSM accepts for its wrapped
// master key.
var KMSSchemes = []string{"awskms", "azurekeyvault", "gcpkms", "hashivault", "base64key"}

// KMSService opens the keeper that unwraps the software HSM master key.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error)
}

type kmsService struct{}

// NewKMSService creates a KMSService backed by gocloud.dev/secrets.
func NewKMSService() KMSService {
	return &kmsService{}
}

func (k *kmsService) OpenKeeper(ctx context.Context, keyURI string) (cryptoDomain.KMSKeeper, error) {
	if keyURI == "" {
		return nil, fmt.Errorf("failed to open KMS keeper: key uri is empty")
	}
	parsed, err := url.Parse(keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	if !slices.Contains(KMSSchemes, parsed.Scheme) {
		return nil, fmt.Errorf("failed to open KMS keeper: unsupported scheme %q", parsed.Scheme)
	}

	keeper, err := secrets.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open KMS keeper: %w", err)
	}
	return keeper, nil
}
