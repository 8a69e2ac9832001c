package track

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a declarative option set for a tracked function, loadable from
// yaml so teams can share decoration settings without code changes. Field
// semantics match the corresponding options.
type Profile struct {
	StaticDirectory        string          `yaml:"static_directory"`
	DirectoryParameter     string          `yaml:"directory_parameter"`
	SubdirectoryParameter  string          `yaml:"subdirectory_parameter"`
	InjectionParameter     string          `yaml:"injection_parameter"`
	AppendTimestamp        bool            `yaml:"append_timestamp"`
	AppendUniqueToken      bool            `yaml:"append_unique_token"`
	RecordFilename         string          `yaml:"record_filename"`
	SeedParameter          string          `yaml:"seed_parameter"`
	ExtraModules           []ProfileModule `yaml:"extra_modules"`
	ExtraEnvironmentVars   []string        `yaml:"extra_environment_variables"`
	DisableVersionTracking bool            `yaml:"disable_version_tracking"`
	AllowDirtyRepository   *bool           `yaml:"allow_dirty_repository"`
	IncludePackageList     *bool           `yaml:"include_package_inventory"`
	CreateMissingParents   bool            `yaml:"create_missing_parents"`
	RequireEmptyDirectory  bool            `yaml:"require_empty_directory"`
	ChainRecords           bool            `yaml:"chain_records"`
}

// ProfileModule names an extra tracked module.
type ProfileModule struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// LoadProfile reads a tracking profile from disk.
func LoadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tracking profile: %w", err)
	}
	defer f.Close()
	return LoadProfileFromReader(f)
}

// LoadProfileFromReader constructs a Profile from a reader.
func LoadProfileFromReader(r io.Reader) (*Profile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read tracking profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal tracking profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate applies the same mutual-exclusion rules as option validation, so
// a broken profile fails at load rather than at wrapper construction.
func (p *Profile) Validate() error {
	if (p.StaticDirectory == "") == (p.DirectoryParameter == "") {
		return fmt.Errorf(
			"%w: profile must set exactly one of static_directory or directory_parameter",
			ErrConfig)
	}
	if p.AppendTimestamp && p.AppendUniqueToken {
		return fmt.Errorf(
			"%w: profile sets both append_timestamp and append_unique_token", ErrConfig)
	}
	for _, m := range p.ExtraModules {
		if m.Name == "" || m.Path == "" {
			return fmt.Errorf("%w: extra module entries need both name and path", ErrConfig)
		}
	}
	return nil
}

// Options expands the profile into the option list New expects.
func (p *Profile) Options() []Option {
	var opts []Option
	if p.StaticDirectory != "" {
		opts = append(opts, WithStaticDir(p.StaticDirectory))
	}
	if p.DirectoryParameter != "" {
		opts = append(opts, WithDirectoryParameter(p.DirectoryParameter))
	}
	if p.SubdirectoryParameter != "" {
		opts = append(opts, WithSubdirectoryParameter(p.SubdirectoryParameter))
	}
	if p.InjectionParameter != "" {
		opts = append(opts, WithInjectionParameter(p.InjectionParameter))
	}
	if p.AppendTimestamp {
		opts = append(opts, WithTimestampSuffix())
	}
	if p.AppendUniqueToken {
		opts = append(opts, WithUniqueSuffix())
	}
	if p.RecordFilename != "" {
		opts = append(opts, WithRecordFilename(p.RecordFilename))
	}
	if p.SeedParameter != "" {
		opts = append(opts, WithSeedParameter(p.SeedParameter))
	}
	for _, m := range p.ExtraModules {
		opts = append(opts, WithExtraModule(m.Name, m.Path))
	}
	if len(p.ExtraEnvironmentVars) > 0 {
		opts = append(opts, WithExtraEnvironmentVariables(p.ExtraEnvironmentVars...))
	}
	if p.DisableVersionTracking {
		opts = append(opts, WithoutVersionTracking())
	}
	if p.AllowDirtyRepository != nil && !*p.AllowDirtyRepository {
		opts = append(opts, RequireCleanRepository())
	}
	if p.IncludePackageList != nil && !*p.IncludePackageList {
		opts = append(opts, WithoutPackageInventory())
	}
	if p.CreateMissingParents {
		opts = append(opts, WithParentCreation())
	}
	if p.RequireEmptyDirectory {
		opts = append(opts, RequireEmptyDirectory())
	}
	if p.ChainRecords {
		opts = append(opts, WithChainedRecords())
	}
	return opts
}
