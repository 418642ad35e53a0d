package state

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

type Role uint8

const (
	RoleRouter Role = iota
	RoleBorderRouter
)

func (r Role) String() string {
	switch r {
	case RoleRouter:
		return "router"
	case RoleBorderRouter:
		return "border_router"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "router", "":
		*r = RoleRouter
	case "border_router", "br":
		*r = RoleBorderRouter
	default:
		return fmt.Errorf("unknown role %q", text)
	}
	return nil
}

// SecurityCfg configures the authenticator on the border router.
type SecurityCfg struct {
	GtkExpireOffset             uint32 `yaml:"gtk_expire_offset,omitempty"`       // seconds
	GtkNewActivationTime        uint32 `yaml:"gtk_new_activation_time,omitempty"` // fraction of the lifetime
	GtkNewInstallRequired       uint8  `yaml:"gtk_new_install_required,omitempty"` // percent of the lifetime
	RevocationLifetimeReduction uint32 `yaml:"revocation_lifetime_reduction,omitempty"`
	PmkLifetime                 uint32 `yaml:"pmk_lifetime,omitempty"`
	PtkLifetime                 uint32 `yaml:"ptk_lifetime,omitempty"`
	MaxSupplicants              int    `yaml:"max_supplicants,omitempty"`
	MaxPurge                    int    `yaml:"max_purge,omitempty"`
	MaxConcurrentAuth           int    `yaml:"max_concurrent_auth,omitempty"` // congestion threshold, 0 disables
	SupplicantActiveTicks       uint32 `yaml:"supplicant_active_ticks,omitempty"`
	KmpRetryTicks               uint32 `yaml:"kmp_retry_ticks,omitempty"`
}

// ExpandSecurityConfig fills unset fields with defaults.
func ExpandSecurityConfig(c *SecurityCfg) {
	if c.GtkExpireOffset == 0 {
		c.GtkExpireOffset = GtkExpireOffset
	}
	if c.GtkNewActivationTime == 0 {
		c.GtkNewActivationTime = GtkNewActivationTime
	}
	if c.GtkNewInstallRequired == 0 {
		c.GtkNewInstallRequired = GtkNewInstallRequired
	}
	if c.RevocationLifetimeReduction == 0 {
		c.RevocationLifetimeReduction = RevocationLifetimeReduction
	}
	if c.PmkLifetime == 0 {
		c.PmkLifetime = PmkLifetime
	}
	if c.PtkLifetime == 0 {
		c.PtkLifetime = PtkLifetime
	}
	if c.MaxSupplicants == 0 {
		c.MaxSupplicants = SupplicantMaxCount
	}
	if c.MaxPurge == 0 {
		c.MaxPurge = SupplicantMaxPurge
	}
	if c.SupplicantActiveTicks == 0 {
		c.SupplicantActiveTicks = SupplicantActiveTicks
	}
	if c.KmpRetryTicks == 0 {
		c.KmpRetryTicks = KmpRetryTicks
	}
}

// NodeCfg represents local node-level configuration
type NodeCfg struct {
	Id               string            `yaml:"id"`
	Eui64            Eui64             `yaml:"eui64"`
	Role             Role              `yaml:"role"`
	NetworkName      string            `yaml:"network_name"`
	PanId            *uint16           `yaml:"pan_id,omitempty"` // if set, only this PAN is joined
	Address          netip.Addr        `yaml:"address,omitempty"` // global address of a border router
	RegulatoryDomain RegulatoryDomain  `yaml:"regulatory_domain"`
	OperatingClasses []uint8           `yaml:"operating_classes,omitempty"`
	ChannelFunctions []ChannelFunction `yaml:"channel_functions,omitempty"`
	MaxChannels      uint16            `yaml:"max_channels,omitempty"` // largest explicit plan the radio can follow
	Schedule         FhssConfig        `yaml:"schedule,omitempty"`     // schedule a border router distributes
	CandidateTable   int               `yaml:"candidate_table,omitempty"`
	Security         SecurityCfg       `yaml:"security,omitempty"`
	RelayPrefixes    []netip.Prefix    `yaml:"relay_prefixes,omitempty"`
	KeyStorePath     string            `yaml:"key_store,omitempty"`
	KeyStoreKey      StoreKey          `yaml:"key_store_key,omitempty"`
	LogPath          string            `yaml:"log_path,omitempty"`
}

// ExpandNodeConfig fills unset fields with defaults.
func ExpandNodeConfig(c *NodeCfg) {
	if c.Id == "" {
		c.Id = hex.EncodeToString(c.Eui64[:])
	}
	if c.CandidateTable == 0 {
		c.CandidateTable = CandidateTableSize
	}
	if len(c.ChannelFunctions) == 0 {
		c.ChannelFunctions = []ChannelFunction{ChannelFunctionFixed, ChannelFunctionDh1cf}
	}
	if c.MaxChannels == 0 {
		c.MaxChannels = 256
	}
	if c.Role == RoleBorderRouter && len(c.OperatingClasses) == 0 && !c.Schedule.Plan.Explicit {
		c.OperatingClasses = []uint8{c.Schedule.Plan.OperatingClass}
	}
	ExpandSecurityConfig(&c.Security)
}

// LinkCfg is a radio link in a simulated mesh.
type LinkCfg struct {
	A    string  `yaml:"a"`
	B    string  `yaml:"b"`
	Rsl  int16   `yaml:"rsl"`            // dBm, applied in both directions
	Loss float64 `yaml:"loss,omitempty"` // frame loss probability
}

// MeshCfg describes a simulated mesh used by the simulator and integration tests.
type MeshCfg struct {
	Nodes     []NodeCfg     `yaml:"nodes"`
	Links     []LinkCfg     `yaml:"links"`
	AuthDelay time.Duration `yaml:"auth_delay,omitempty"`
}

func (m *MeshCfg) GetNode(id string) *NodeCfg {
	for i := range m.Nodes {
		if m.Nodes[i].Id == id {
			return &m.Nodes[i]
		}
	}
	return nil
}

// LoadMeshConfig reads a mesh description, fills in defaults and validates it.
func LoadMeshConfig(path string) (*MeshCfg, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &MeshCfg{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range cfg.Nodes {
		ExpandNodeConfig(&cfg.Nodes[i])
	}
	if err := MeshConfigValidator(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadNodeConfig reads a single node configuration, fills in defaults and validates it.
func LoadNodeConfig(path string) (*NodeCfg, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &NodeCfg{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	ExpandNodeConfig(cfg)
	if err := NodeConfigValidator(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
