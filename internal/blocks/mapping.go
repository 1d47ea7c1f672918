package blocks

import (
	"encoding/json"
	"fmt"

	"github.com/JaimeStill/accord/pkg/query"
	"github.com/JaimeStill/accord/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "dynamic_blocks", "b").
	Project("id", "ID").
	Project("name", "Name").
	Project("placeholder", "Placeholder").
	Project("shape", "Shape").
	Project("conditions", "Conditions").
	Project("always_include", "AlwaysInclude")

var defaultSort = query.SortField{Field: "Name"}

func scanBlock(s repository.Scanner) (Block, error) {
	var (
		b                  Block
		conditions, always []byte
	)
	if err := s.Scan(&b.ID, &b.Name, &b.Placeholder, &b.Shape, &conditions, &always); err != nil {
		return b, err
	}

	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &b.Conditions); err != nil {
			return b, fmt.Errorf("decode conditions for block %s: %w", b.ID, err)
		}
	}
	if len(always) > 0 {
		if err := json.Unmarshal(always, &b.AlwaysInclude); err != nil {
			return b, fmt.Errorf("decode always_include for block %s: %w", b.ID, err)
		}
	}
	return b, nil
}
