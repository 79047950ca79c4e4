// cmd/harborline/vessels.go
// Copyright(c) 2025 harborline contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/harborline/harborline/log"
	"github.com/harborline/harborline/util"
	"github.com/harborline/harborline/vesselmap"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed vessels.yaml
var demoFleet []byte

type fixture struct {
	Vessels []vesselmap.VesselInfo `yaml:"vessels"`
}

// loadVessels reads a vessel fixture from path, or the embedded demo fleet
// if path is empty.
func loadVessels(path string, lg *log.Logger) ([]vesselmap.VesselInfo, error) {
	if path == "" {
		lg.Info("using built-in demo fleet")
		return parseVessels(demoFleet)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	vs, err := parseVessels(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lg.Info("loaded vessels", "path", path, "count", len(vs))
	return vs, nil
}

func parseVessels(b []byte) ([]vesselmap.VesselInfo, error) {
	var fx fixture
	if err := yaml.Unmarshal(b, &fx); err != nil {
		return nil, err
	}
	if len(fx.Vessels) == 0 {
		return nil, errors.New("no vessels")
	}

	var e util.ErrorLogger
	validate := validator.New(validator.WithRequiredStructEnabled())
	seen := make(map[string]bool)

	for i, v := range fx.Vessels {
		name := v.ID
		if name == "" {
			name = "#" + strconv.Itoa(i)
		}
		e.Push(name)

		if seen[v.ID] && v.ID != "" {
			e.ErrorString("duplicate id")
		}
		seen[v.ID] = true

		if err := validate.Struct(v); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					e.ErrorString("%s: failed %q check", fe.Field(), fe.Tag())
				}
			} else {
				e.Error(err)
			}
		}
		e.Pop()
	}

	if err := e.Err(); err != nil {
		return nil, err
	}
	return fx.Vessels, nil
}
