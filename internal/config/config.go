package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Role selects which prepared image and first-boot settings a workstation
// gets.
type Role string

const (
	RoleInternal   Role = "internal"
	RoleInternet   Role = "internet"
	RoleTravel     Role = "travel"
	RoleSubsidiary Role = "subsidiary"
)

// Roles lists the selectable roles in menu order.
var Roles = []Role{RoleInternal, RoleInternet, RoleTravel, RoleSubsidiary}

// ParseRole maps a CLI argument onto a Role.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q (expected one of internal, internet, travel, subsidiary)", s)
}

type Config struct {
	// BaseDir holds the wim/ image directory and the Drivers/ package tree.
	// Defaults to the parent of the working directory, where the deployment
	// media places them.
	BaseDir string `yaml:"base_dir,omitempty"`
	// TempDir is the staging area with start-menu variants and preserved
	// sticky-notes state.
	TempDir string `yaml:"temp_dir,omitempty"`
	// User is the local account whose profile folders are preserved.
	User string `yaml:"user,omitempty"`

	HistoryDB string `yaml:"history_db,omitempty"`
	LogFile   string `yaml:"log_file,omitempty"`
	LogLevel  string `yaml:"log_level,omitempty"`

	Images      map[Role]string `yaml:"images,omitempty"`
	StartMenus  map[Role]string `yaml:"start_menus,omitempty"`
	AnswerFiles AnswerFiles     `yaml:"answer_files,omitempty"`
	Markers     Markers         `yaml:"markers,omitempty"`
	Partitions  Partitions      `yaml:"partitions,omitempty"`
	Tools       Tools           `yaml:"tools,omitempty"`
}

// AnswerFiles are the two unattended-setup variants under BaseDir/wim.
type AnswerFiles struct {
	Normal    string `yaml:"normal"`
	BitLocker string `yaml:"bitlocker"`
}

// Markers are the folder heuristics used to classify volumes. Paths are
// relative to a volume root and use forward slashes.
type Markers struct {
	System   []string `yaml:"system"`
	Data     []string `yaml:"data"`
	DataRoot string   `yaml:"data_root"`
}

// Partitions are the fixed sizes used by clean-install scripts, in MB.
type Partitions struct {
	EFISizeMB int `yaml:"efi_size_mb"`
	OSSizeMB  int `yaml:"os_size_mb"`
}

// Tools are the external executables. Overridable for staging environments.
type Tools struct {
	Diskpart string `yaml:"diskpart"`
	Dism     string `yaml:"dism"`
	Robocopy string `yaml:"robocopy"`
	Bcdboot  string `yaml:"bcdboot"`
	Bcdedit  string `yaml:"bcdedit"`
	Wmic     string `yaml:"wmic"`
	Shutdown string `yaml:"shutdown"`
}

var defaultConfig = Config{
	BaseDir:  "..",
	TempDir:  "Temp",
	User:     "kdic",
	LogLevel: "info",
	Images: map[Role]string{
		RoleInternal:   "work.wim",
		RoleInternet:   "internet.wim",
		RoleTravel:     "trip.wim",
		RoleSubsidiary: "krnc.wim",
	},
	StartMenus: map[Role]string{
		RoleInternal:   "work",
		RoleInternet:   "internet",
		RoleTravel:     "internet",
		RoleSubsidiary: "work",
	},
	AnswerFiles: AnswerFiles{
		Normal:    "unattend_normal.xml",
		BitLocker: "unattend_trip.xml",
	},
	Markers: Markers{
		System:   []string{"Windows/system32/sysprep", "Users/kdic/desktop", "Users/kdic/appdata"},
		Data:     []string{"kdic/desktop", "kdic/downloads"},
		DataRoot: "kdic",
	},
	Partitions: Partitions{
		EFISizeMB: 100,
		OSSizeMB:  153601,
	},
	Tools: Tools{
		Diskpart: "diskpart",
		Dism:     "dism",
		Robocopy: "robocopy",
		Bcdboot:  "bcdboot",
		Bcdedit:  "bcdedit",
		Wmic:     "wmic",
		Shutdown: "shutdown",
	},
}

// Load reads the config at path, probing default locations when path is
// empty and falling back to compiled-in defaults when no file exists.
func Load(path string) (*Config, error) {
	if path == "" {
		candidates := []string{
			"reimage.yaml",
			"config.yaml",
			filepath.Join(os.Getenv("ProgramData"), "reimage", "config.yaml"),
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}

	cfg := defaultConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HistoryDB == "" {
		c.HistoryDB = filepath.Join(c.BaseDir, "reimage.db")
	}
	if c.Images == nil {
		c.Images = defaultConfig.Images
	}
	if c.StartMenus == nil {
		c.StartMenus = defaultConfig.StartMenus
	}
	if len(c.Markers.System) == 0 {
		c.Markers = defaultConfig.Markers
	}
	if c.Partitions.EFISizeMB == 0 {
		c.Partitions.EFISizeMB = defaultConfig.Partitions.EFISizeMB
	}
	if c.Partitions.OSSizeMB == 0 {
		c.Partitions.OSSizeMB = defaultConfig.Partitions.OSSizeMB
	}
	t := &c.Tools
	d := defaultConfig.Tools
	for field, def := range map[*string]string{
		&t.Diskpart: d.Diskpart, &t.Dism: d.Dism, &t.Robocopy: d.Robocopy,
		&t.Bcdboot: d.Bcdboot, &t.Bcdedit: d.Bcdedit, &t.Wmic: d.Wmic, &t.Shutdown: d.Shutdown,
	} {
		if *field == "" {
			*field = def
		}
	}
}

func (c *Config) validate() error {
	for _, r := range Roles {
		if c.Images[r] == "" {
			return fmt.Errorf("config: no image mapped for role %s", r)
		}
	}
	if c.User == "" {
		return fmt.Errorf("config: user must not be empty")
	}
	return nil
}

// ImageDir is where the role images and answer files live.
func (c *Config) ImageDir() string {
	return filepath.Join(c.BaseDir, "wim")
}

// DriversDir is the root of the per-baseboard driver packages.
func (c *Config) DriversDir() string {
	return filepath.Join(c.BaseDir, "Drivers")
}
