package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/a8m/envsubst"
	"github.com/pkg/errors"
)

// Read reads a config from the given file, substituting ${ENV} references first.
func Read(filePath string) (AttributeMap, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	am, err := FromReader(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Wrapf(err, "cannot parse config file %q", filePath)
	}
	return am, nil
}

// FromReader reads a JSON object config from r.
func FromReader(r io.Reader) (AttributeMap, error) {
	var am AttributeMap
	if err := json.NewDecoder(r).Decode(&am); err != nil {
		return nil, err
	}
	if am == nil {
		return nil, errors.New("config must be a JSON object")
	}
	return am, nil
}
