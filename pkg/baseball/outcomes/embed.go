package outcomes

import (
	_ "embed"
)

//go:embed data/inplay.json
var inPlayJSON []byte

//go:embed data/basepath.json
var basePathJSON []byte

//go:embed data/transitions.json
var transitionsJSON []byte

// Load parses the embedded table assets shipped with the binary.
func Load() (*Tables, error) {
	return LoadTables(inPlayJSON, basePathJSON, transitionsJSON)
}
