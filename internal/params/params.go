package params

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"compressure/internal/services"
	"compressure/internal/textutil"
)

// DefaultGOPSize is the group-of-pictures length used when a request leaves it unset.
const DefaultGOPSize = 6000

// ArtifactExt is the container extension of every encode artifact.
const ArtifactExt = ".avi"

// Set describes one transcode request. The zero values of PixelFormat and
// Framerate keep the source's values.
type Set struct {
	Encoder     string
	GOPSize     int
	Options     map[string]string
	PixelFormat string
	Framerate   string
	CropSquare  bool
	Reversed    bool
}

// New builds a Set for encoder with the given GOP size and options. A
// non-positive gop selects DefaultGOPSize.
func New(encoder string, gop int, options map[string]string) Set {
	if gop <= 0 {
		gop = DefaultGOPSize
	}
	return Set{Encoder: encoder, GOPSize: gop, Options: options}
}

// ParseOptions converts command-line option arguments into a map. Arguments
// are either key=value pairs or an even-length key value sequence.
func ParseOptions(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	if len(args) == 0 {
		return out, nil
	}
	if strings.Contains(args[0], "=") {
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return nil, services.Wrap(services.ErrInvalidParameter, "params", "parse options",
					fmt.Sprintf("expected key=value, got %q", arg), nil)
			}
			out[key] = value
		}
		return out, nil
	}
	if len(args)%2 != 0 {
		return nil, services.Wrap(services.ErrInvalidParameter, "params", "parse options",
			fmt.Sprintf("expected key value pairs, got %d arguments", len(args)), nil)
	}
	for i := 0; i < len(args); i += 2 {
		out[args[i]] = args[i+1]
	}
	return out, nil
}

// Normalize validates s and fills encoder defaults. Unknown encoders and
// options are rejected rather than dropped.
func (s Set) Normalize() (Set, error) {
	encoder := strings.TrimSpace(s.Encoder)
	defaults, ok := Defaults(encoder)
	if !ok {
		return Set{}, invalid("encoder", fmt.Sprintf("unknown encoder %q (choose one of %s)", s.Encoder, strings.Join(Encoders(), ", ")))
	}
	if s.GOPSize <= 0 {
		return Set{}, invalid("gop", fmt.Sprintf("gop size must be positive, got %d", s.GOPSize))
	}

	options := defaults
	seen := make(map[string]string, len(s.Options))
	for rawKey, rawValue := range s.Options {
		key := textutil.FoldKey(rawKey)
		if prior, dup := seen[key]; dup {
			return Set{}, invalid("options", fmt.Sprintf("options %q and %q name the same setting", prior, rawKey))
		}
		seen[key] = rawKey
		if _, known := registry[encoder].flags[key]; !known {
			return Set{}, invalid("options", fmt.Sprintf("option %q is not recognized by %s (accepted: %s)",
				rawKey, encoder, strings.Join(OptionNames(encoder), ", ")))
		}
		value := strings.TrimSpace(rawValue)
		if value == "" {
			return Set{}, invalid("options", fmt.Sprintf("option %q has an empty value", rawKey))
		}
		options[key] = value
	}

	pixFmt := strings.ToLower(strings.TrimSpace(s.PixelFormat))
	if pixFmt != "" && !isIdentifier(pixFmt) {
		return Set{}, invalid("pix_fmt", fmt.Sprintf("invalid pixel format %q", s.PixelFormat))
	}
	rate := strings.TrimSpace(s.Framerate)
	if rate != "" {
		if _, err := ParseRate(rate); err != nil {
			return Set{}, invalid("framerate", err.Error())
		}
	}

	return Set{
		Encoder:     encoder,
		GOPSize:     s.GOPSize,
		Options:     options,
		PixelFormat: pixFmt,
		Framerate:   rate,
		CropSquare:  s.CropSquare,
		Reversed:    s.Reversed,
	}, nil
}

// Name returns the canonical, path-safe identifier of s. Equal requests name
// identically regardless of option order or whether defaults were spelled out.
func (s Set) Name() (string, error) {
	n, err := s.Normalize()
	if err != nil {
		return "", err
	}
	tokens := n.tokens()
	safe := make([]string, len(tokens))
	lossy := false
	for i, token := range tokens {
		var changed bool
		safe[i], changed = textutil.PathSafeToken(token)
		lossy = lossy || changed
	}
	name := strings.Join(safe, "_")
	if lossy {
		sum := sha256.Sum256([]byte(strings.Join(tokens, "\n")))
		name += "_h=" + hex.EncodeToString(sum[:4])
	}
	return name, nil
}

func (s Set) tokens() []string {
	tokens := []string{s.Encoder, "g=" + strconv.Itoa(s.GOPSize)}
	keys := make([]string, 0, len(s.Options))
	for key := range s.Options {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		tokens = append(tokens, key+"="+s.Options[key])
	}
	if s.PixelFormat != "" {
		tokens = append(tokens, "pix_fmt="+s.PixelFormat)
	}
	if s.Framerate != "" {
		tokens = append(tokens, "r="+s.Framerate)
	}
	if s.CropSquare {
		tokens = append(tokens, "cropped-square")
	}
	if s.Reversed {
		tokens = append(tokens, "reversed")
	}
	return tokens
}

// FileName returns the artifact file name for an encode of source.
func (s Set) FileName(source string) (string, error) {
	name, err := s.Name()
	if err != nil {
		return "", err
	}
	base := textutil.SanitizeFileName(filepath.Base(source))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = "source"
	}
	return stem + "_transcoded_" + name + ArtifactExt, nil
}

// Parameters flattens the normalized set into the string map recorded in the
// manifest.
func (s Set) Parameters() (map[string]string, error) {
	n, err := s.Normalize()
	if err != nil {
		return nil, err
	}
	out := map[string]string{
		"encoder": n.Encoder,
		"gop":     strconv.Itoa(n.GOPSize),
	}
	for k, v := range n.Options {
		out["option."+k] = v
	}
	if n.PixelFormat != "" {
		out["pix_fmt"] = n.PixelFormat
	}
	if n.Framerate != "" {
		out["framerate"] = n.Framerate
	}
	if n.CropSquare {
		out["crop"] = "square"
	}
	if n.Reversed {
		out["reversed"] = "true"
	}
	return out, nil
}

// EncoderArgs returns the ffmpeg flags for the encoder options in sorted key order.
func (s Set) EncoderArgs() ([]string, error) {
	n, err := s.Normalize()
	if err != nil {
		return nil, err
	}
	flags := registry[n.Encoder].flags
	keys := make([]string, 0, len(n.Options))
	for key := range n.Options {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	args := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		args = append(args, flags[key], n.Options[key])
	}
	return args, nil
}

// Forward returns a copy of s with reversal disabled.
func (s Set) Forward() Set {
	s.Reversed = false
	return s
}

// ParseRate parses an ffmpeg-style rate such as "30", "29.97", or "30000/1001".
func ParseRate(value string) (float64, error) {
	num, den, fractional := strings.Cut(strings.TrimSpace(value), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q", value)
	}
	d := 1.0
	if fractional {
		if d, err = strconv.ParseFloat(den, 64); err != nil {
			return 0, fmt.Errorf("invalid rate %q", value)
		}
	}
	rate := n / d
	if !(n > 0) || !(d > 0) || math.IsInf(rate, 0) {
		return 0, fmt.Errorf("rate %q must be a positive finite number", value)
	}
	return rate, nil
}

func isIdentifier(value string) bool {
	for _, r := range value {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}
	return value != ""
}

func invalid(op, message string) error {
	return services.Wrap(services.ErrInvalidParameter, "params", op, message, nil)
}
