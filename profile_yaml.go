// profile_yaml.go: YAML export and import of profiles
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"io"
	"sort"

	"github.com/agilira/go-errors"
	"go.yaml.in/yaml/v3"
)

// WriteYAML writes the resolved values as a section -> key -> value
// mapping with sorted keys.
func (p *Profile) WriteYAML(w io.Writer) error {
	root := &yaml.Node{Kind: yaml.MappingNode}
	values := p.Values()

	sections := make([]string, 0, len(values))
	for section := range values {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	for _, section := range sections {
		body := &yaml.Node{Kind: yaml.MappingNode}
		keys := make([]string, 0, len(values[section]))
		for key := range values[section] {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			body.Content = append(body.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: key},
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: values[section][key]})
		}
		root.Content = append(root.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: section}, body)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return errors.Wrap(err, ErrCodeProfileIO, "failed to encode profile YAML")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, ErrCodeProfileIO, "failed to flush profile YAML")
	}
	return nil
}

// LoadProfileYAML builds a file-less profile from a YAML document in the
// format written by WriteYAML. Scalar values of any type are kept as their
// textual form.
func LoadProfileYAML(r io.Reader, opts ...ProfileOption) (*Profile, error) {
	var doc map[string]map[string]yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, ErrCodeInvalidProfile, "failed to decode profile YAML")
	}

	data := emptyProfileData()
	sections := make([]string, 0, len(doc))
	for section := range doc {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	for _, section := range sections {
		data.sections[section] = make(map[string]string, len(doc[section]))
		data.order = append(data.order, section)
		for key, node := range doc[section] {
			if node.Kind != yaml.ScalarNode {
				return nil, errors.New(ErrCodeInvalidProfile, "profile YAML values must be scalars").
					WithContext("section", section).
					WithContext("key", key)
			}
			data.sections[section][key] = node.Value
		}
	}

	p := newProfile("", opts)
	p.data.Store(data)
	return p, nil
}
