package refdata

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Decode reads a JSON snapshot without validating it.
func Decode(r io.Reader) (Data, error) {
	var data Data
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return Data{}, fmt.Errorf("refdata: decode: %w", err)
	}
	return data, nil
}

// Load decodes, validates and indexes a JSON snapshot.
func Load(r io.Reader) (*Store, error) {
	data, err := Decode(r)
	if err != nil {
		return nil, err
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return NewStore(data), nil
}

// LoadFile loads a snapshot from path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("refdata: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}
