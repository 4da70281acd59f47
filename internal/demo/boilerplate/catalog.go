package boilerplate

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed workers/*.js
var workers embed.FS

// Boilerplate is a named worker template offered as a one-click demo.
type Boilerplate struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	WorkerCode  string `json:"-" yaml:"worker_code"`
	WorkerFile  string `json:"-" yaml:"worker_file"`
}

// Catalog resolves boilerplate ids to their worker code. It is read-only after
// construction and safe for concurrent use.
type Catalog struct {
	items map[string]Boilerplate
}

var builtins = []Boilerplate{
	{
		ID:          "counter",
		Name:        "Counter",
		Description: "A simple counter that increments and decrements. Perfect for understanding state persistence.",
	},
	{
		ID:          "chat",
		Name:        "Chat Room",
		Description: "A real-time chat room where messages persist. Multiple users can send messages that are stored in state.",
	},
	{
		ID:          "todo",
		Name:        "Todo List",
		Description: "A persistent todo list. Add, complete, and remove tasks that persist across sessions.",
	},
	{
		ID:          "shopping-cart",
		Name:        "Shopping Cart",
		Description: "A shopping cart that maintains items and quantities. Perfect for e-commerce state management.",
	},
}

// Default returns the catalog of built-in templates.
func Default() *Catalog {
	c := &Catalog{items: make(map[string]Boilerplate, len(builtins))}
	for _, b := range builtins {
		code, err := workers.ReadFile("workers/" + b.ID + ".js")
		if err != nil {
			// embedded at build time; a miss is a packaging bug
			panic(fmt.Sprintf("boilerplate %s: %v", b.ID, err))
		}
		b.WorkerCode = string(code)
		c.items[b.ID] = b
	}
	return c
}

// Get looks up a template by id.
func (c *Catalog) Get(id string) (Boilerplate, bool) {
	b, ok := c.items[id]
	return b, ok
}

// List returns all templates ordered by id.
func (c *Catalog) List() []Boilerplate {
	out := make([]Boilerplate, 0, len(c.items))
	for _, b := range c.items {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

type overlayFile struct {
	Boilerplates []Boilerplate `yaml:"boilerplates"`
}

// LoadFile returns a copy of c extended with the templates declared in a YAML
// file. Entries with an existing id replace the built-in one. worker_file is
// resolved relative to the YAML file.
func (c *Catalog) LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read boilerplates file: %w", err)
	}

	var f overlayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse boilerplates file: %w", err)
	}

	out := &Catalog{items: make(map[string]Boilerplate, len(c.items)+len(f.Boilerplates))}
	for id, b := range c.items {
		out.items[id] = b
	}

	for i, b := range f.Boilerplates {
		b.ID = strings.TrimSpace(b.ID)
		if b.ID == "" {
			return nil, fmt.Errorf("boilerplate #%d: id is required", i)
		}
		if b.WorkerCode == "" && b.WorkerFile != "" {
			code, err := os.ReadFile(filepath.Join(filepath.Dir(path), b.WorkerFile))
			if err != nil {
				return nil, fmt.Errorf("boilerplate %s: read worker file: %w", b.ID, err)
			}
			b.WorkerCode = string(code)
		}
		if strings.TrimSpace(b.WorkerCode) == "" {
			return nil, fmt.Errorf("boilerplate %s: worker_code or worker_file is required", b.ID)
		}
		if b.Name == "" {
			b.Name = b.ID
		}
		out.items[b.ID] = b
	}

	return out, nil
}
