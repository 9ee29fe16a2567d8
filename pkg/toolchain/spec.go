// Package toolchain runs the dependency-ordered build pipeline that
// downloads, configures, compiles and installs each component of the
// cross-toolchain.
package toolchain

import (
	_ "embed"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed stages.yaml
var stageTable []byte

// StageSpec describes one toolchain component's build parameters. All
// fields come from the embedded stage table; only the version is a run
// parameter.
type StageSpec struct {
	Name           string   `yaml:"name"`
	Version        string   `yaml:"version"`
	URL            string   `yaml:"url"`
	SourceDir      string   `yaml:"source_dir"`
	ConfigureFlags []string `yaml:"configure_flags"`
	BuildTargets   []string `yaml:"build_targets"`
	InstallTargets []string `yaml:"install_targets"`
}

// LoadStages parses the embedded stage table and applies per-component
// version overrides. An empty override keeps the table default; an
// override naming an unknown component is an error. Order in the table is
// the pipeline's execution order.
func LoadStages(versions map[string]string) ([]StageSpec, error) {
	var table struct {
		Stages []StageSpec `yaml:"stages"`
	}
	if err := yaml.Unmarshal(stageTable, &table); err != nil {
		return nil, fmt.Errorf("parse stage table: %w", err)
	}

	byName := make(map[string]int, len(table.Stages))
	for i, s := range table.Stages {
		byName[s.Name] = i
	}
	for name, version := range versions {
		if version == "" {
			continue
		}
		i, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown toolchain component %q", name)
		}
		table.Stages[i].Version = version
	}
	return table.Stages, nil
}

// ArchiveURL is the versioned download URL.
func (s StageSpec) ArchiveURL() string {
	return s.expand(s.URL)
}

// ArchiveName is the archive's file name.
func (s StageSpec) ArchiveName() string {
	return path.Base(s.ArchiveURL())
}

// SourceDirName is the directory the archive unpacks into.
func (s StageSpec) SourceDirName() string {
	return s.expand(s.SourceDir)
}

func (s StageSpec) expand(tpl string) string {
	return strings.ReplaceAll(tpl, "{version}", s.Version)
}
