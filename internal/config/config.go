// Package config loads the scenario file cmd/rpkica drives a build
// from: the flat, schema-free YAML struct style cuemby-warren uses
// for its own configuration (spec.md section 6, "Configuration
// inputs").
package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ROANetwork is one `(prefix, maxlen?)` entry of a ROA's networks list.
type ROANetwork struct {
	Prefix    string `yaml:"prefix"`
	MaxLength *int   `yaml:"max_length,omitempty"`
}

// Scenario binds every external configuration input spec.md section 6
// names.
type Scenario struct {
	BaseURI    string `yaml:"base_uri"`
	OutputRoot string `yaml:"output_root"`
	TALDir     string `yaml:"tal_dir"`

	TAASResources string `yaml:"ta_as_resources"`
	TAIPResources []string `yaml:"ta_ip_resources"`

	CAASResources string   `yaml:"ca_as_resources"`
	CAIPResources []string `yaml:"ca_ip_resources"`

	ROAASID      int64        `yaml:"roa_asid"`
	ROANetworks  []ROANetwork `yaml:"roa_networks"`

	GBRFullName string `yaml:"gbr_full_name"`
	GBROrg      string `yaml:"gbr_org"`
	GBREmail    string `yaml:"gbr_email"`
	GBRAddress  string `yaml:"gbr_address"`
	GBRTel      string `yaml:"gbr_tel"`

	CertDays int `yaml:"cert_days"`
	CRLDays  int `yaml:"crl_days"`
	MFTDays  int `yaml:"mft_days"`
}

// Defaults fills in the validity-window defaults spec.md section 6
// names (cert_days=365, crl_days=7, mft_days=7) where the scenario
// left them at zero.
func (s *Scenario) Defaults() {
	if s.CertDays == 0 {
		s.CertDays = 365
	}
	if s.CRLDays == 0 {
		s.CRLDays = 7
	}
	if s.MFTDays == 0 {
		s.MFTDays = 7
	}
}

// Load reads and parses a scenario YAML file from path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario file")
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "parse scenario YAML")
	}
	s.Defaults()
	return &s, nil
}
