package state

import (
	"fmt"
	"strings"
)

type ChannelFunction uint8

const (
	ChannelFunctionFixed ChannelFunction = iota
	ChannelFunctionTr51cf
	ChannelFunctionDh1cf
	ChannelFunctionVendor
)

var channelFunctionNames = map[ChannelFunction]string{
	ChannelFunctionFixed:  "fixed",
	ChannelFunctionTr51cf: "tr51cf",
	ChannelFunctionDh1cf:  "dh1cf",
	ChannelFunctionVendor: "vendor",
}

func (f ChannelFunction) String() string {
	if n, ok := channelFunctionNames[f]; ok {
		return n
	}
	return fmt.Sprintf("ChannelFunction(%d)", uint8(f))
}

func (f ChannelFunction) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *ChannelFunction) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range channelFunctionNames {
		if v == s {
			*f = k
			return nil
		}
	}
	return fmt.Errorf("unknown channel function %q", s)
}

type RegulatoryDomain uint8

const (
	RegDomainWW RegulatoryDomain = 0x00
	RegDomainNA RegulatoryDomain = 0x01
	RegDomainJP RegulatoryDomain = 0x02
	RegDomainEU RegulatoryDomain = 0x03
	RegDomainIN RegulatoryDomain = 0x05
	RegDomainBZ RegulatoryDomain = 0x07
)

var regDomainNames = map[RegulatoryDomain]string{
	RegDomainWW: "ww",
	RegDomainNA: "na",
	RegDomainJP: "jp",
	RegDomainEU: "eu",
	RegDomainIN: "in",
	RegDomainBZ: "bz",
}

func (d RegulatoryDomain) String() string {
	if n, ok := regDomainNames[d]; ok {
		return n
	}
	return fmt.Sprintf("RegulatoryDomain(%#x)", uint8(d))
}

func (d RegulatoryDomain) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *RegulatoryDomain) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for k, v := range regDomainNames {
		if v == s {
			*d = k
			return nil
		}
	}
	return fmt.Errorf("unknown regulatory domain %q", s)
}

type opClassKey struct {
	domain RegulatoryDomain
	class  uint8
}

// channel counts per regulatory domain and operating class
var operatingClassChannels = map[opClassKey]uint16{
	{RegDomainNA, 1}: 129,
	{RegDomainNA, 2}: 64,
	{RegDomainNA, 3}: 42,
	{RegDomainEU, 1}: 69,
	{RegDomainEU, 2}: 35,
	{RegDomainEU, 3}: 55,
	{RegDomainJP, 1}: 38,
	{RegDomainJP, 2}: 18,
	{RegDomainJP, 3}: 12,
	{RegDomainIN, 1}: 19,
	{RegDomainIN, 2}: 10,
	{RegDomainBZ, 1}: 129,
	{RegDomainBZ, 2}: 64,
	{RegDomainBZ, 3}: 42,
}

// ChannelCount returns the number of channels of an operating class, or zero if the class is unknown.
func ChannelCount(domain RegulatoryDomain, class uint8) uint16 {
	return operatingClassChannels[opClassKey{domain, class}]
}

// ChannelPlan is either a regulatory domain and operating class, or an explicit plan.
type ChannelPlan struct {
	RegulatoryDomain RegulatoryDomain `yaml:"regulatory_domain"`
	OperatingClass   uint8            `yaml:"operating_class,omitempty"`
	Explicit         bool             `yaml:"explicit,omitempty"`
	Ch0Khz           uint32           `yaml:"ch0_khz,omitempty"`
	SpacingKhz       uint32           `yaml:"spacing_khz,omitempty"`
	Channels         uint16           `yaml:"channels,omitempty"`
}

// NumChannels returns the size of the plan, zero if unknown.
func (p ChannelPlan) NumChannels() uint16 {
	if p.Explicit {
		return p.Channels
	}
	return ChannelCount(p.RegulatoryDomain, p.OperatingClass)
}

// FhssConfig is the frequency hopping schedule distributed by the border router.
type FhssConfig struct {
	Plan                ChannelPlan     `yaml:"plan"`
	UnicastFunction     ChannelFunction `yaml:"unicast_function"`
	BroadcastFunction   ChannelFunction `yaml:"broadcast_function"`
	FixedChannel        uint16          `yaml:"fixed_channel,omitempty"`
	UnicastDwell        uint8           `yaml:"unicast_dwell"`   // ms
	BroadcastInterval   uint32          `yaml:"broadcast_interval"` // ms
	BroadcastDwell      uint8           `yaml:"broadcast_dwell"` // ms
	BroadcastScheduleId uint16          `yaml:"bsi,omitempty"`
}
