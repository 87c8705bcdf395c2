package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// PolicyConfig is the on-disk shape of the check-in policy.
//
//	timezone: Asia/Seoul
//	token_ttl: 60s
//	presenter_roles: [admin, mc]
//	auditor_roles: [admin, auditor]
//	tiers:
//	  - {from_seconds: 2400, status: late, fee: 1000}
//	categories:
//	  - name: OD
//	    restricted: true
//	    allowed_roles: [pastor, leader]
//	    anchor: "10:00"
//	    issue_window: {weekdays: [sun], from: "09:00", to: "13:00"}
type PolicyConfig struct {
	Timezone       string           `mapstructure:"timezone"`
	TokenTTL       time.Duration    `mapstructure:"token_ttl"`
	PresenterRoles []string         `mapstructure:"presenter_roles"`
	AuditorRoles   []string         `mapstructure:"auditor_roles"`
	Tiers          []TierConfig     `mapstructure:"tiers"`
	Categories     []CategoryConfig `mapstructure:"categories"`
}

// TierConfig is one punctuality band; it applies from FromSeconds after the anchor
// until the next tier starts.
type TierConfig struct {
	FromSeconds    int    `mapstructure:"from_seconds"`
	Status         string `mapstructure:"status"`
	Fee            int    `mapstructure:"fee"`
	ReportRequired bool   `mapstructure:"report_required"`
}

// CategoryConfig describes one token category.
type CategoryConfig struct {
	Name         string             `mapstructure:"name"`
	Restricted   bool               `mapstructure:"restricted"`
	AllowedRoles []string           `mapstructure:"allowed_roles"`
	Anchor       string             `mapstructure:"anchor"`
	IssueWindow  *IssueWindowConfig `mapstructure:"issue_window"`
}

// IssueWindowConfig limits token issuance to weekdays and a time-of-day range.
type IssueWindowConfig struct {
	Weekdays []string `mapstructure:"weekdays"`
	From     string   `mapstructure:"from"`
	To       string   `mapstructure:"to"`
}

// DefaultPolicyConfig returns the built-in policy.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Timezone:       "Asia/Seoul",
		TokenTTL:       60 * time.Second,
		PresenterRoles: []string{"admin", "mc"},
		AuditorRoles:   []string{"admin", "auditor"},
		Tiers: []TierConfig{
			{FromSeconds: 2400, Status: "late", Fee: 1000},
			{FromSeconds: 3000, Status: "late", Fee: 2000},
			{FromSeconds: 3600, Status: "late", Fee: 3000},
			{FromSeconds: 4200, Status: "late", Fee: 4000, ReportRequired: true},
			{FromSeconds: 4800, Status: "unexcused_absence", Fee: 5000, ReportRequired: true},
		},
		Categories: []CategoryConfig{
			{Name: "GENERAL", Anchor: "10:00:00"},
			{
				Name:         "OD",
				Restricted:   true,
				AllowedRoles: []string{"admin", "pastor", "minister", "leader", "group_leader", "cell_leader"},
				Anchor:       "10:00:00",
			},
		},
	}
}

// LoadPolicy reads a YAML policy file. Sections missing from the file keep
// their defaults; an empty path returns DefaultPolicyConfig.
func LoadPolicy(path string) (PolicyConfig, error) {
	def := DefaultPolicyConfig()
	if path == "" {
		return def, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return PolicyConfig{}, fmt.Errorf("read policy file: %w", err)
	}

	var cfg PolicyConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return PolicyConfig{}, fmt.Errorf("parse policy file: %w", err)
	}

	if cfg.Timezone == "" {
		cfg.Timezone = def.Timezone
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = def.TokenTTL
	}
	if !v.IsSet("presenter_roles") {
		cfg.PresenterRoles = def.PresenterRoles
	}
	if !v.IsSet("auditor_roles") {
		cfg.AuditorRoles = def.AuditorRoles
	}
	if !v.IsSet("tiers") {
		cfg.Tiers = def.Tiers
	}
	if !v.IsSet("categories") {
		cfg.Categories = def.Categories
	}
	return cfg, nil
}
