package content

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
)

//go:embed data/biases.json
var coreDataset []byte

// LoadCore returns the bundled core biases in dataset order.
func LoadCore() ([]Bias, error) {
	biases, err := Decode(bytes.NewReader(coreDataset))
	if err != nil {
		return nil, fmt.Errorf("load core dataset: %w", err)
	}
	for i := range biases {
		biases[i].Source = SourceCore
	}
	return biases, nil
}

// Decode parses a JSON array of biases and validates every entry.
// IDs must be unique within the dataset.
func Decode(r io.Reader) ([]Bias, error) {
	var biases []Bias
	if err := json.NewDecoder(r).Decode(&biases); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	if len(biases) == 0 {
		return nil, ErrEmptyDataset
	}

	seen := make(map[string]struct{}, len(biases))
	for _, b := range biases {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[b.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, b.ID)
		}
		seen[b.ID] = struct{}{}
	}
	return biases, nil
}
