package storage

import (
	"fmt"
	"os"

	"github.com/san-kum/clothsim/internal/cloth"
	"gopkg.in/yaml.v3"
)

// SaveData writes authored cloth data as yaml.
func SaveData(path string, d *cloth.Data) error {
	out, err := yaml.Marshal(d)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

// LoadData reads cloth data written by SaveData. Integrity is checked when the
// cloth initializes, not here.
func LoadData(path string) (*cloth.Data, error) {
	in, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var d cloth.Data
	if err := yaml.Unmarshal(in, &d); err != nil {
		return nil, fmt.Errorf("cloth data %s: %w", path, err)
	}
	return &d, nil
}
