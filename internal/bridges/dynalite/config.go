package dynalite

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Library defaults for a bridge entry.
const (
	DefaultName          = "dynalite"
	DefaultPort          = 12345
	DefaultLogLevel      = "info"
	DefaultPollTimer     = 1.0
	DefaultIcon          = "mdi:lightbulb-outline"
	DefaultCoverClass    = "shutter"
	DefaultCoverFactor   = 1.0
	DefaultGatewayPrefix = "dynalite"
)

// maxIndex is the largest area, channel or preset number on a Dynalite network.
const maxIndex = 255

// ChannelType is the declared type of a channel.
type ChannelType string

// Channel types.
const (
	ChannelTypeLight  ChannelType = "light"
	ChannelTypeSwitch ChannelType = "switch"
	ChannelTypeCover  ChannelType = "cover"
)

// validCoverClasses are the device classes accepted for cover channels.
var validCoverClasses = map[string]bool{
	"awning": true, "blind": true, "curtain": true, "damper": true,
	"door": true, "garage": true, "gate": true, "shade": true,
	"shutter": true, "window": true,
}

// Config is the root of the Dynalite configuration file.
type Config struct {
	Gateway GatewaySettings `yaml:"gateway"`
	Bridges []BridgeConfig  `yaml:"bridges"`
}

// GatewaySettings configures how bridges reach the gateway process.
type GatewaySettings struct {
	// Prefix is the MQTT topic root the gateway publishes under.
	// Default: "dynalite".
	Prefix string `yaml:"prefix"`
}

// BridgeConfig describes one Dynalite network.
type BridgeConfig struct {
	Name         string                    `yaml:"name" json:"name"`
	Host         string                    `yaml:"host" json:"host"`
	Port         int                       `yaml:"port" json:"port"`
	LogLevel     string                    `yaml:"log_level" json:"log_level"`
	Autodiscover *bool                     `yaml:"autodiscover" json:"autodiscover"`
	PollTimer    float64                   `yaml:"polltimer" json:"polltimer"`
	AreaCreate   AreaPolicy                `yaml:"areacreate" json:"areacreate"`
	Icon         string                    `yaml:"icon" json:"icon"`
	Default      DefaultsConfig            `yaml:"default" json:"default"`
	Preset       map[string]PresetConfig   `yaml:"preset" json:"preset,omitempty"`
	Template     map[string]TemplateConfig `yaml:"template" json:"template,omitempty"`
	Area         map[string]AreaConfig     `yaml:"area" json:"area,omitempty"`
}

// DefaultsConfig holds bridge-wide defaults inherited by areas.
type DefaultsConfig struct {
	Fade *float64 `yaml:"fade" json:"fade,omitempty"`
}

// AreaConfig describes one area. Template-related fields (RoomOn, RoomOff,
// Trigger, ChannelCover, Class, Factor, Tilt) are filled in by
// ExpandTemplates when the area uses the matching template.
type AreaConfig struct {
	Name         string                   `yaml:"name" json:"name"`
	Template     string                   `yaml:"template" json:"template,omitempty"`
	Fade         *float64                 `yaml:"fade" json:"fade,omitempty"`
	NoDefault    bool                     `yaml:"nodefault" json:"nodefault,omitempty"`
	AreaOverride *string                  `yaml:"areaoverride" json:"areaoverride,omitempty"`
	RoomOn       string                   `yaml:"room_on" json:"room_on,omitempty"`
	RoomOff      string                   `yaml:"room_off" json:"room_off,omitempty"`
	Trigger      string                   `yaml:"trigger" json:"trigger,omitempty"`
	ChannelCover string                   `yaml:"channel_cover" json:"channel_cover,omitempty"`
	Class        string                   `yaml:"class" json:"class,omitempty"`
	Factor       *float64                 `yaml:"factor" json:"factor,omitempty"`
	Tilt         *float64                 `yaml:"tilt" json:"tilt,omitempty"`
	Preset       map[string]PresetConfig  `yaml:"preset" json:"preset,omitempty"`
	Channel      map[string]ChannelConfig `yaml:"channel" json:"channel,omitempty"`
}

// ChannelConfig describes one channel within an area.
type ChannelConfig struct {
	Name   string      `yaml:"name" json:"name,omitempty"`
	Fade   *float64    `yaml:"fade" json:"fade,omitempty"`
	Type   ChannelType `yaml:"type" json:"type,omitempty"`
	Hidden bool        `yaml:"hidden" json:"hidden,omitempty"`

	// Cover-only parameters.
	Class  string   `yaml:"class" json:"class,omitempty"`
	Factor *float64 `yaml:"factor" json:"factor,omitempty"`
	Tilt   *float64 `yaml:"tilt" json:"tilt,omitempty"`
}

// PresetConfig describes one preset within an area, or a bridge-wide
// default preset.
type PresetConfig struct {
	Name   string   `yaml:"name" json:"name,omitempty"`
	Fade   *float64 `yaml:"fade" json:"fade,omitempty"`
	Hidden bool     `yaml:"hidden" json:"hidden,omitempty"`
}

// AutodiscoverEnabled reports whether undeclared devices are created on
// first sight.
func (b *BridgeConfig) AutodiscoverEnabled() bool {
	return b.Autodiscover == nil || *b.Autodiscover
}

// DisplayName returns the name used in logs and topics.
func (b *BridgeConfig) DisplayName() string {
	if b.Name != "" {
		return b.Name
	}
	return DefaultName
}

// LoadConfig reads and validates the Dynalite configuration at path.
//
// Defaults are applied first, then the YAML file, then environment
// variable overrides (DYNALITE_BRIDGE_*), and finally validation.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadConfigBytes(data)
}

// LoadConfigBytes parses and validates configuration already in memory.
func LoadConfigBytes(data []byte) (*Config, error) {
	cfg := defaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	for i := range cfg.Bridges {
		cfg.Bridges[i].applyDefaults()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Gateway: GatewaySettings{
			Prefix: DefaultGatewayPrefix,
		},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DYNALITE_BRIDGE_GATEWAY_PREFIX"); v != "" {
		cfg.Gateway.Prefix = v
	}

	// Applied to every bridge; per-bridge values stay in the file.
	if v := os.Getenv("DYNALITE_BRIDGE_LOG_LEVEL"); v != "" {
		for i := range cfg.Bridges {
			cfg.Bridges[i].LogLevel = v
		}
	}
	if v := os.Getenv("DYNALITE_BRIDGE_AREACREATE"); v != "" {
		for i := range cfg.Bridges {
			cfg.Bridges[i].AreaCreate = AreaPolicy(v)
		}
	}
}

// applyDefaults fills unset bridge fields. Cover parameters are only
// defaulted on cover channels so validation can still reject them elsewhere.
func (b *BridgeConfig) applyDefaults() {
	if b.Name == "" {
		b.Name = DefaultName
	}
	if b.Port == 0 {
		b.Port = DefaultPort
	}
	if b.LogLevel == "" {
		b.LogLevel = DefaultLogLevel
	}
	b.LogLevel = strings.ToLower(b.LogLevel)
	if b.Autodiscover == nil {
		enabled := true
		b.Autodiscover = &enabled
	}
	if b.PollTimer == 0 {
		b.PollTimer = DefaultPollTimer
	}
	if b.AreaCreate == "" {
		b.AreaCreate = AreaManual
	}
	b.AreaCreate = AreaPolicy(strings.ToLower(string(b.AreaCreate)))
	if b.Icon == "" {
		b.Icon = DefaultIcon
	}

	for areaKey, area := range b.Area {
		for chKey, ch := range area.Channel {
			if ch.Type == "" {
				ch.Type = ChannelTypeLight
			}
			if ch.Type == ChannelTypeCover {
				if ch.Class == "" {
					ch.Class = DefaultCoverClass
				}
				if ch.Factor == nil {
					ch.Factor = floatPtr(DefaultCoverFactor)
				}
			}
			area.Channel[chKey] = ch
		}
		b.Area[areaKey] = area
	}
}

// Validate checks the whole file and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.Prefix == "" {
		errs = append(errs, "gateway.prefix is required")
	}
	if strings.ContainsAny(c.Gateway.Prefix, "+#") {
		errs = append(errs, "gateway.prefix must not contain MQTT wildcards")
	}
	if len(c.Bridges) == 0 {
		errs = append(errs, "at least one bridge is required")
	}

	hosts := make(map[string]int, len(c.Bridges))
	for i := range c.Bridges {
		b := &c.Bridges[i]
		errs = append(errs, b.validate(fmt.Sprintf("bridges[%d]", i))...)
		if b.Host == "" {
			continue
		}
		if prev, dup := hosts[b.Host]; dup {
			errs = append(errs, fmt.Sprintf("bridges[%d]: host %q already used by bridges[%d]", i, b.Host, prev))
			continue
		}
		hosts[b.Host] = i
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks a single bridge entry.
func (b *BridgeConfig) Validate() error {
	if errs := b.validate("bridge"); len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (b *BridgeConfig) validate(path string) []string {
	var errs []string

	if b.Host == "" {
		errs = append(errs, path+".host is required")
	}
	if strings.ContainsAny(b.Host, "/+#") {
		errs = append(errs, path+".host must not contain '/', '+' or '#'")
	}
	if b.Port < 1 || b.Port > 65535 {
		errs = append(errs, fmt.Sprintf("%s.port must be between 1 and 65535, got %d", path, b.Port))
	}
	switch b.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("%s.log_level must be one of debug, info, warn, error; got %q", path, b.LogLevel))
	}
	if b.PollTimer <= 0 {
		errs = append(errs, fmt.Sprintf("%s.polltimer must be positive, got %g", path, b.PollTimer))
	}
	if _, err := ParseAreaPolicy(string(b.AreaCreate)); err != nil {
		errs = append(errs, fmt.Sprintf("%s.areacreate: %v", path, err))
	}
	errs = append(errs, validateFade(path+".default.fade", b.Default.Fade)...)

	errs = append(errs, duplicateKeys(path+".preset", b.Preset)...)
	for key, p := range b.Preset {
		errs = append(errs, validatePreset(fmt.Sprintf("%s.preset.%s", path, key), key, p)...)
	}
	for name, tpl := range b.Template {
		errs = append(errs, validateTemplate(fmt.Sprintf("%s.template.%s", path, name), name, tpl)...)
	}
	errs = append(errs, duplicateKeys(path+".area", b.Area)...)
	for key, area := range b.Area {
		errs = append(errs, validateArea(fmt.Sprintf("%s.area.%s", path, key), key, area)...)
	}

	return errs
}

func validateArea(path, key string, a AreaConfig) []string {
	var errs []string

	if _, err := parseIndex(key); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", path, err))
	}
	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, path+".name is required")
	}
	if a.Template != "" && !isTemplateName(a.Template) {
		errs = append(errs, fmt.Sprintf("%s.template must be one of room, trigger, channelcover; got %q", path, a.Template))
	}
	errs = append(errs, validateFade(path+".fade", a.Fade)...)

	for field, v := range map[string]string{
		"room_on": a.RoomOn, "room_off": a.RoomOff,
		"trigger": a.Trigger, "channel_cover": a.ChannelCover,
	} {
		if v == "" {
			continue
		}
		if _, err := parseIndex(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s.%s: %v", path, field, err))
		}
	}

	// Area-level cover parameters only make sense with the channelcover template.
	if a.Template != TemplateChannelCover && (a.Class != "" || a.Factor != nil || a.Tilt != nil) {
		errs = append(errs, path+": class, factor and tilt require template channelcover")
	}
	errs = append(errs, validateCoverParams(path, a.Class, a.Factor, a.Tilt)...)

	errs = append(errs, duplicateKeys(path+".preset", a.Preset)...)
	for pk, p := range a.Preset {
		errs = append(errs, validatePreset(fmt.Sprintf("%s.preset.%s", path, pk), pk, p)...)
	}
	errs = append(errs, duplicateKeys(path+".channel", a.Channel)...)
	for ck, ch := range a.Channel {
		errs = append(errs, validateChannel(fmt.Sprintf("%s.channel.%s", path, ck), ck, ch)...)
	}

	return errs
}

// duplicateKeys reports keys that name the same number once canonicalized,
// such as "3" and "03". Expansion would otherwise keep only one of them.
func duplicateKeys[V any](path string, m map[string]V) []string {
	var errs []string
	seen := make(map[string]string, len(m))
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		canon := canonicalKey(key)
		if prev, dup := seen[canon]; dup {
			errs = append(errs, fmt.Sprintf("%s: keys %q and %q both refer to %s", path, prev, key, canon))
			continue
		}
		seen[canon] = key
	}
	return errs
}

func validateChannel(path, key string, ch ChannelConfig) []string {
	var errs []string

	if _, err := parseIndex(key); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", path, err))
	}
	switch ch.Type {
	case "", ChannelTypeLight, ChannelTypeSwitch, ChannelTypeCover:
	default:
		errs = append(errs, fmt.Sprintf("%s.type must be one of light, switch, cover; got %q", path, ch.Type))
	}
	errs = append(errs, validateFade(path+".fade", ch.Fade)...)

	if ch.Type != ChannelTypeCover {
		if ch.Class != "" || ch.Factor != nil || ch.Tilt != nil {
			errs = append(errs, path+": class, factor and tilt are only valid for cover channels")
		}
		return errs
	}
	return append(errs, validateCoverParams(path, ch.Class, ch.Factor, ch.Tilt)...)
}

func validatePreset(path, key string, p PresetConfig) []string {
	var errs []string
	if _, err := parseIndex(key); err != nil {
		errs = append(errs, fmt.Sprintf("%s: %v", path, err))
	}
	return append(errs, validateFade(path+".fade", p.Fade)...)
}

func validateTemplate(path, name string, t TemplateConfig) []string {
	var errs []string

	if !isTemplateName(name) {
		return append(errs, fmt.Sprintf("%s: unknown template (want room, trigger or channelcover)", path))
	}
	for field, v := range map[string]string{
		"room_on": t.RoomOn, "room_off": t.RoomOff,
		"trigger": t.Trigger, "channel": t.Channel,
	} {
		if v == "" {
			continue
		}
		if _, err := parseIndex(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s.%s: %v", path, field, err))
		}
	}
	return append(errs, validateCoverParams(path, t.Class, t.Factor, t.Tilt)...)
}

func validateCoverParams(path, class string, factor, tilt *float64) []string {
	var errs []string
	if class != "" && !validCoverClasses[class] {
		errs = append(errs, fmt.Sprintf("%s.class: unknown cover class %q", path, class))
	}
	if factor != nil && (*factor <= 0 || *factor > 1) {
		errs = append(errs, fmt.Sprintf("%s.factor must be in (0, 1], got %g", path, *factor))
	}
	if tilt != nil && (*tilt <= 0 || *tilt > 1) {
		errs = append(errs, fmt.Sprintf("%s.tilt must be in (0, 1], got %g", path, *tilt))
	}
	return errs
}

func validateFade(path string, fade *float64) []string {
	if fade != nil && *fade < 0 {
		return []string{fmt.Sprintf("%s must not be negative, got %g", path, *fade)}
	}
	return nil
}

// parseIndex parses an area, channel or preset key such as "3" or "03".
func parseIndex(key string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", key)
	}
	if n < 1 || n > maxIndex {
		return 0, fmt.Errorf("%d is out of range 1-%d", n, maxIndex)
	}
	return n, nil
}

// canonicalKey rewrites a numeric key in its shortest form ("03" → "3").
// Keys that do not parse are returned unchanged.
func canonicalKey(key string) string {
	n, err := parseIndex(key)
	if err != nil {
		return key
	}
	return strconv.Itoa(n)
}

func floatPtr(v float64) *float64 {
	return &v
}
