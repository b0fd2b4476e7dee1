package v1

import "errors"

var (
	ErrMissingAsset = errors.New("asset id is required")
	ErrHLSFile      = errors.New("unknown playlist file")
)
