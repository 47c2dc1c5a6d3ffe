// Package config loads YAML package descriptions.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ralt/debbuild/internal/models"
	"gopkg.in/yaml.v3"
)

// dependsList accepts either a YAML sequence or the comma separated
// string form ("a, b" or "none")
type dependsList []string

func (d *dependsList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*d = models.ParseDepends(value.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*d = nil
		for _, dep := range list {
			if dep = strings.TrimSpace(dep); dep != "" {
				*d = append(*d, dep)
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: depends must be a list or a string", value.Line)
	}
}

// Load reads the package description at path
func Load(path string) (*models.BuildConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.BuildError{
			Type: models.ErrFileOp,
			Err:  fmt.Errorf("failed to read package file: %w", err),
		}
	}

	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	cfg.PackageFile = path
	return cfg, nil
}

// Decode parses a package description. Unknown keys are rejected.
func Decode(r io.Reader) (*models.BuildConfig, error) {
	// Internal DTOs for YAML deserialization
	type yamlMaintainer struct {
		Name  string `yaml:"name"`
		Email string `yaml:"email"`
	}
	type yamlPackage struct {
		Name         string         `yaml:"name"`
		Version      string         `yaml:"version"`
		Description  string         `yaml:"description"`
		Homepage     string         `yaml:"homepage"`
		Architecture string         `yaml:"architecture"`
		Priority     string         `yaml:"priority"`
		Depends      dependsList    `yaml:"depends"`
		Maintainer   yamlMaintainer `yaml:"maintainer"`
		Run          string         `yaml:"run"`
		Type         string         `yaml:"type"`
		InstallDir   string         `yaml:"install_dir"`
		Compression  string         `yaml:"compression"`
		Postinst     string         `yaml:"postinst"`
		Prerm        string         `yaml:"prerm"`
		PayloadDir   string         `yaml:"payload_dir"`
	}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var dto yamlPackage
	if err := dec.Decode(&dto); err != nil && !errors.Is(err, io.EOF) {
		return nil, &models.BuildError{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("failed to parse package file: %w", err),
		}
	}

	// Map DTO to business object
	cfg := &models.BuildConfig{
		PayloadDir:      dto.PayloadDir,
		Name:            dto.Name,
		Version:         dto.Version,
		Description:     dto.Description,
		Homepage:        dto.Homepage,
		Architecture:    dto.Architecture,
		Priority:        dto.Priority,
		MaintainerName:  dto.Maintainer.Name,
		MaintainerEmail: dto.Maintainer.Email,
		Type:            dto.Type,
		Run:             dto.Run,
		InstallDir:      dto.InstallDir,
		Postinst:        dto.Postinst,
		Prerm:           dto.Prerm,
		Compression:     dto.Compression,
	}
	if len(dto.Depends) > 0 {
		cfg.Depends = strings.Join(dto.Depends, ", ")
	}

	return cfg, nil
}
