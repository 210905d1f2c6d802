package params

import (
	"slices"
	"sort"
)

// encoderSpec lists the options an encoder accepts, their defaults, and the
// ffmpeg flag each option maps to.
type encoderSpec struct {
	defaults map[string]string
	flags    map[string]string
}

var x26xFlags = map[string]string{
	"preset": "-preset",
	"qp":     "-qp",
	"bf":     "-bf",
}

var registry = map[string]encoderSpec{
	"libx264": {
		defaults: map[string]string{"preset": "veryfast", "qp": "-1", "bf": "0"},
		flags:    x26xFlags,
	},
	"libx265": {
		defaults: map[string]string{"preset": "veryfast", "qp": "-1", "bf": "0"},
		flags:    x26xFlags,
	},
	"h264_videotoolbox": {
		defaults: map[string]string{"bf": "0", "bitrate": "10M"},
		flags:    map[string]string{"bf": "-bf", "bitrate": "-b:v"},
	},
	"mpeg4": {
		defaults: map[string]string{},
		flags:    map[string]string{},
	},
}

// Encoders returns the supported encoder identifiers in sorted order.
func Encoders() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsKnownEncoder reports whether name is a supported encoder identifier.
func IsKnownEncoder(name string) bool {
	_, ok := registry[name]
	return ok
}

// Defaults returns a copy of the default options for encoder.
func Defaults(encoder string) (map[string]string, bool) {
	spec, ok := registry[encoder]
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(spec.defaults))
	for k, v := range spec.defaults {
		out[k] = v
	}
	return out, true
}

// OptionNames returns the option keys accepted by encoder in sorted order.
func OptionNames(encoder string) []string {
	spec, ok := registry[encoder]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(spec.flags))
	for name := range spec.flags {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
