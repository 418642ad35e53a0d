package state

import "time"

// Well known UDP ports used by the EAPOL relays and the authenticator.
const (
	EapolRelayPort   = 10253
	PaeAuthPort      = 10254
	BrEapolRelayPort = 10255
)

const (
	// GtkCount is the number of group key slots in a PAN.
	GtkCount = 4
	// NetworkNameMaxLen is the maximum length of a network name in bytes.
	NetworkNameMaxLen = 32
	// EtxUnit is the ETX value of a perfect link.
	EtxUnit = 128
)

var (
	FastTickInterval = time.Millisecond * 100
	SlowTickInterval = time.Second
	FastTicksPerSlow = uint32(SlowTickInterval / FastTickInterval)

	// candidate parent selection
	CandidateTableSize   = 10
	CandidateMaxAge      = uint32(600) // slow ticks since the last advertisement
	DeviceMinSens        = int16(-93)  // dBm
	CandParentThreshold  = int16(10)   // dB above sensitivity
	CandParentHysteresis = int16(3)    // dB
	ScoreHysteresis      = int32(3)
	PrcWeightFactor      = uint16(256)
	PsWeightFactor       = uint16(64)
	DiscoveryDwell       = uint32(5) // slow ticks spent in discovery before selecting a parent
	BlacklistTTL         = time.Second * 60

	// join progress
	AuthenticationTimeout   = uint32(120) // slow ticks
	ConfigurationMaxRejects = 3
	NormalDisconnectDelay   = uint32(10) // slow ticks between routing withdrawal and restart

	// steady state supervision, in slow ticks
	NudProbeInterval       = uint32(60)
	NudProbeTimeout        = uint32(5)
	NudMaxAttempts         = 3
	LinkSampleInterval     = uint32(30)
	VersionRegressionLimit = 3

	// the border router reports congestion to the authenticator above this many queued frames
	CongestionQueueLimit = 32

	// the border router increments the stored PAN version by this much after a restart
	PanVersionRestartIncrement = uint16(1000)

	// trickle parameters, in fast ticks
	DiscoveryTrickle     = TrickleParams{Imin: 150, Imax: 600, K: 1}
	ConfigurationTrickle = TrickleParams{Imin: 150, Imax: 600, K: 1}

	// supplicant bookkeeping on the authenticator
	SupplicantMaxCount    = 5000
	SupplicantMaxPurge    = 5
	SupplicantActiveTicks = uint32(600) // fast ticks a supplicant stays active without KMP timers
	KmpRetryTicks         = uint32(300) // fast ticks between KMP retransmissions
	EapolStartDedupTTL    = time.Second * 2

	// group key defaults, see SecurityCfg
	GtkExpireOffset             = uint32(2592000) // seconds, 30 days
	GtkNewActivationTime        = uint32(720)     // activate the next key when 1/720 of the lifetime remains
	GtkNewInstallRequired       = uint8(80)       // install the next key at 80% of the lifetime
	RevocationLifetimeReduction = uint32(30)      // revocation shortens the active key lifetime to 1/30
	PmkLifetime                 = uint32(4 * 30 * 24 * 3600)
	PtkLifetime                 = uint32(2 * 30 * 24 * 3600)
)

// TrickleParams configures a trickle timer. Imin and Imax are absolute interval sizes in fast ticks.
type TrickleParams struct {
	Imin uint32 `yaml:"imin"`
	Imax uint32 `yaml:"imax"`
	K    uint8  `yaml:"k"`
}
