package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"amigame/internal/evo"
	"amigame/internal/game"
	"amigame/internal/tree"
)

// Document is the YAML form of a scenario. Node children are indices into
// the nodes list. Fields omitted from the game and replicator blocks keep
// their defaults.
type Document struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Nodes       []tree.Node `yaml:"nodes"`
	Game        game.Config `yaml:"game"`
	Replicator  evo.Params  `yaml:"replicator"`
	Generations int         `yaml:"generations,omitempty"`
}

// LoadFile reads a scenario document from path. The scenario name defaults
// to the file's base name.
func LoadFile(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("read scenario %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return Scenario{}, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

func Parse(data []byte) (Scenario, error) {
	doc := Document{
		Game:       game.DefaultConfig(),
		Replicator: evo.DefaultParams(),
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return Scenario{}, err
	}
	if len(doc.Nodes) == 0 {
		return Scenario{}, errors.New("scenario has no nodes")
	}

	s := Scenario{
		Name:        doc.Name,
		Description: doc.Description,
		Nodes:       doc.Nodes,
		Game:        doc.Game,
		Replicator:  doc.Replicator,
		Generations: doc.Generations,
	}
	if _, err := s.Tree(); err != nil {
		return Scenario{}, err
	}
	return s, nil
}

// Marshal renders s as a scenario document.
func Marshal(s Scenario) ([]byte, error) {
	return yaml.Marshal(Document{
		Name:        s.Name,
		Description: s.Description,
		Nodes:       s.Nodes,
		Game:        s.Game,
		Replicator:  s.Replicator,
		Generations: s.Generations,
	})
}
