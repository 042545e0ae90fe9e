package dynalite

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// Template names.
const (
	TemplateRoom         = "room"
	TemplateTrigger      = "trigger"
	TemplateChannelCover = "channelcover"
)

// TemplateConfig holds the defaults for one named template. Only the fields
// relevant to that template are used.
type TemplateConfig struct {
	RoomOn  string   `yaml:"room_on" json:"room_on,omitempty"`
	RoomOff string   `yaml:"room_off" json:"room_off,omitempty"`
	Trigger string   `yaml:"trigger" json:"trigger,omitempty"`
	Channel string   `yaml:"channel" json:"channel,omitempty"`
	Class   string   `yaml:"class" json:"class,omitempty"`
	Factor  *float64 `yaml:"factor" json:"factor,omitempty"`
	Tilt    *float64 `yaml:"tilt" json:"tilt,omitempty"`
}

// UnmarshalYAML accepts the short form `trigger: 2` as well as a mapping.
func (t *TemplateConfig) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*t = TemplateConfig{Trigger: value.Value}
		return nil
	}
	type plain TemplateConfig
	return value.Decode((*plain)(t))
}

// libraryTemplates are used for any template field the configuration
// leaves unset.
var libraryTemplates = map[string]TemplateConfig{
	TemplateRoom:         {RoomOn: "1", RoomOff: "4"},
	TemplateTrigger:      {Trigger: "1"},
	TemplateChannelCover: {Channel: "1", Class: DefaultCoverClass, Factor: floatPtr(DefaultCoverFactor)},
}

func isTemplateName(name string) bool {
	_, ok := libraryTemplates[name]
	return ok
}

// ExpandTemplates resolves templates, default presets and fades into
// concrete per-area entries.
//
// Each parameter resolves to the explicit per-area value if present, else
// the bridge's template defaults, else the library defaults. Resolved values
// are written back to the area fields, so expanding an expanded config is a
// no-op.
//
// The input is not modified.
//
// Parameters:
//   - cfg: The bridge configuration, typically straight from LoadConfig
//
// Returns:
//   - *BridgeConfig: A new, fully expanded configuration
func ExpandTemplates(cfg *BridgeConfig) *BridgeConfig {
	out := cfg.Clone()
	out.applyDefaults()

	templates := make(map[string]TemplateConfig, len(libraryTemplates))
	for name, lib := range libraryTemplates {
		templates[name] = mergeTemplate(out.Template[name], lib)
	}
	out.Template = templates

	presets := make(map[string]PresetConfig, len(out.Preset))
	for key, p := range out.Preset {
		presets[canonicalKey(key)] = p
	}
	out.Preset = presets

	areas := make(map[string]AreaConfig, len(out.Area))
	for key, area := range out.Area {
		areas[canonicalKey(key)] = expandArea(out, area)
	}
	out.Area = areas

	return out
}

func mergeTemplate(t, lib TemplateConfig) TemplateConfig {
	t.RoomOn = canonicalKey(firstNonEmpty(t.RoomOn, lib.RoomOn))
	t.RoomOff = canonicalKey(firstNonEmpty(t.RoomOff, lib.RoomOff))
	t.Trigger = canonicalKey(firstNonEmpty(t.Trigger, lib.Trigger))
	t.Channel = canonicalKey(firstNonEmpty(t.Channel, lib.Channel))
	t.Class = firstNonEmpty(t.Class, lib.Class)
	if t.Factor == nil {
		t.Factor = copyFloat(lib.Factor)
	}
	if t.Tilt == nil {
		t.Tilt = copyFloat(lib.Tilt)
	}
	return t
}

func expandArea(b *BridgeConfig, area AreaConfig) AreaConfig {
	presets := make(map[string]PresetConfig, len(area.Preset)+len(b.Preset))
	for key, p := range area.Preset {
		presets[canonicalKey(key)] = p
	}
	channels := make(map[string]ChannelConfig, len(area.Channel))
	for key, ch := range area.Channel {
		channels[canonicalKey(key)] = ch
	}
	area.Preset = presets
	area.Channel = channels

	if area.Fade == nil {
		area.Fade = copyFloat(b.Default.Fade)
	}

	if !area.NoDefault {
		for key, p := range b.Preset {
			if _, ok := area.Preset[key]; !ok {
				area.Preset[key] = p
			}
		}
	}

	switch area.Template {
	case TemplateRoom:
		tpl := b.Template[TemplateRoom]
		area.RoomOn = canonicalKey(firstNonEmpty(area.RoomOn, tpl.RoomOn))
		area.RoomOff = canonicalKey(firstNonEmpty(area.RoomOff, tpl.RoomOff))
		for _, key := range []string{area.RoomOn, area.RoomOff} {
			p := area.Preset[key]
			p.Hidden = true
			area.Preset[key] = p
		}

	case TemplateTrigger:
		tpl := b.Template[TemplateTrigger]
		area.Trigger = canonicalKey(firstNonEmpty(area.Trigger, tpl.Trigger))
		p := area.Preset[area.Trigger]
		if p.Name == "" {
			p.Name = area.Name
		}
		area.Preset[area.Trigger] = p

	case TemplateChannelCover:
		tpl := b.Template[TemplateChannelCover]
		area.ChannelCover = canonicalKey(firstNonEmpty(area.ChannelCover, tpl.Channel))
		area.Class = firstNonEmpty(area.Class, tpl.Class)
		if area.Factor == nil {
			area.Factor = copyFloat(tpl.Factor)
		}
		if area.Tilt == nil {
			area.Tilt = copyFloat(tpl.Tilt)
		}
		ch := area.Channel[area.ChannelCover]
		ch.Type = ChannelTypeCover
		if ch.Name == "" {
			ch.Name = area.Name
		}
		ch.Class = firstNonEmpty(ch.Class, area.Class)
		if ch.Factor == nil {
			ch.Factor = copyFloat(area.Factor)
		}
		if ch.Tilt == nil {
			ch.Tilt = copyFloat(area.Tilt)
		}
		area.Channel[area.ChannelCover] = ch
	}

	for key, p := range area.Preset {
		if p.Fade == nil {
			p.Fade = copyFloat(area.Fade)
		}
		area.Preset[key] = p
	}
	for key, ch := range area.Channel {
		if ch.Fade == nil {
			ch.Fade = copyFloat(area.Fade)
		}
		area.Channel[key] = ch
	}

	return area
}

// Clone returns a deep copy of the configuration.
func (b *BridgeConfig) Clone() *BridgeConfig {
	out := *b
	if b.Autodiscover != nil {
		v := *b.Autodiscover
		out.Autodiscover = &v
	}
	out.Default.Fade = copyFloat(b.Default.Fade)
	out.Preset = clonePresets(b.Preset)

	if b.Template != nil {
		out.Template = make(map[string]TemplateConfig, len(b.Template))
		for name, t := range b.Template {
			t.Factor = copyFloat(t.Factor)
			t.Tilt = copyFloat(t.Tilt)
			out.Template[name] = t
		}
	}

	if b.Area != nil {
		out.Area = make(map[string]AreaConfig, len(b.Area))
		for key, a := range b.Area {
			a.Fade = copyFloat(a.Fade)
			a.Factor = copyFloat(a.Factor)
			a.Tilt = copyFloat(a.Tilt)
			if a.AreaOverride != nil {
				v := *a.AreaOverride
				a.AreaOverride = &v
			}
			a.Preset = clonePresets(a.Preset)
			if a.Channel != nil {
				channels := make(map[string]ChannelConfig, len(a.Channel))
				for ck, ch := range a.Channel {
					ch.Fade = copyFloat(ch.Fade)
					ch.Factor = copyFloat(ch.Factor)
					ch.Tilt = copyFloat(ch.Tilt)
					channels[ck] = ch
				}
				a.Channel = channels
			}
			out.Area[key] = a
		}
	}
	return &out
}

func clonePresets(in map[string]PresetConfig) map[string]PresetConfig {
	if in == nil {
		return nil
	}
	out := make(map[string]PresetConfig, len(in))
	for key, p := range in {
		p.Fade = copyFloat(p.Fade)
		out[key] = p
	}
	return out
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
