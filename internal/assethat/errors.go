package assethat

import (
	"errors"
	"fmt"
)

var (
	ErrConfigMissing        = errors.New("asset config missing")
	ErrUnsupportedAssetType = errors.New("unknown asset type")
	ErrUnknownVendor        = errors.New("unknown vendor")
	ErrBundleEmpty          = errors.New("empty bundle")
	ErrUnknownEngine        = errors.New("unknown minification engine")
)

// ConfigMissingError reports an absent assets config and tells the caller
// how to create one.
type ConfigMissingError struct {
	Path string
}

func (e *ConfigMissingError) Error() string {
	return fmt.Sprintf("`%s` is missing! Run `assethat config` to generate it.", e.Path)
}

func (e *ConfigMissingError) Unwrap() error { return ErrConfigMissing }
