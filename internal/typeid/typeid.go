package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixScene    = "scene"
	PrefixSnapshot = "snap"
	PrefixAsset    = "asset"
	PrefixClient   = "client"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewSceneID() string    { return New(PrefixScene) }
func NewSnapshotID() string { return New(PrefixSnapshot) }
func NewAssetID() string    { return New(PrefixAsset) }
func NewClientID() string   { return New(PrefixClient) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
