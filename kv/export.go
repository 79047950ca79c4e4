// kv/export.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package kv

import (
	"encoding/json"
	"io"
	"slices"

	"github.com/iancoleman/orderedmap"
)

// ExportJSON writes all of the store's entries to w as a single JSON
// object with keys in sorted order. Values that are valid JSON are
// embedded as-is; anything else is written as a string.
func ExportJSON(w io.Writer, s interface {
	Store
	Lister
}) error {
	keys, err := s.Keys()
	if err != nil {
		return err
	}
	slices.Sort(keys)

	om := orderedmap.New()
	om.SetEscapeHTML(false)
	for _, k := range keys {
		v, err := s.Get(k)
		if err != nil {
			// Deleted out from under us; skip it.
			continue
		}
		if json.Valid(v) {
			om.Set(k, json.RawMessage(v))
		} else {
			om.Set(k, string(v))
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(om)
}
