package schema

import (
	"bytes"
	"fmt"
	"os"
	"reflect"

	"gopkg.in/yaml.v3"
)

// File is the document layout of a mapping file.
//
//	classes:
//	  - name: Person
//	    discriminator: Type
//	    key: {properties: [ID]}
//	    properties: [ID, Surname, Type]
//	  - name: Employee
//	    super: Person
//	    inheritance: single_table
//	    properties:
//	      - {name: Salary, field: salary_cents}
type File struct {
	Classes []*ClassDef `yaml:"classes"`
}

// UnmarshalYAML accepts either a bare property name or a mapping.
func (p *Property) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		p.Name = n.Value
		return nil
	}
	type plain Property
	return n.Decode((*plain)(p))
}

// UnmarshalYAML accepts either a key mapping or a bare list of key properties.
func (k *PrimaryKey) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.SequenceNode:
		return n.Decode(&k.Properties)
	case yaml.ScalarNode:
		k.Properties = []string{n.Value}
		return nil
	}
	type plain PrimaryKey
	return n.Decode((*plain)(k))
}

// DecodeYAML parses class definitions from a mapping document.
func DecodeYAML(data []byte) ([]*ClassDef, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("schema: decoding mapping: %w", err)
	}
	return f.Classes, nil
}

// LoadYAML decodes a mapping document and registers its classes. Each
// value in types binds its struct type to the class of the same name.
func (r *Registry) LoadYAML(data []byte, types ...any) error {
	defs, err := DecodeYAML(data)
	if err != nil {
		return err
	}
	byName := make(map[string]reflect.Type, len(types))
	for _, v := range types {
		t := reflect.TypeOf(v)
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		byName[t.Name()] = t
	}
	for _, d := range defs {
		if t, ok := byName[d.Name]; ok {
			d.Type = t
		}
	}
	return r.Register(defs...)
}

// LoadFile reads and registers a mapping file.
func (r *Registry) LoadFile(path string, types ...any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("schema: reading mapping: %w", err)
	}
	return r.LoadYAML(data, types...)
}
