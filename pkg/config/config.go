package config

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/ksco/asmld/pkg/linker"
)

const (
	DefaultMemorySize = 1 << 20
	// MaxMemorySize bounds the target buffer allocated for a link.
	MaxMemorySize = 4 << 30
)

// Size is an address or byte count. In YAML it may be an integer, a 0x hex
// literal or a size with a unit such as 64KB or 1MiB.
type Size uint64

func (s *Size) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: size must be a scalar", node.Line)
	}
	v, err := ParseSize(node.Value)
	if err != nil {
		return errors.Wrapf(err, "line %d", node.Line)
	}
	*s = Size(v)
	return nil
}

func (s Size) String() string {
	return humanize.IBytes(uint64(s))
}

// Layout describes one link: the target memory, its output sections, the
// input libraries and the part of the image to write out.
type Layout struct {
	Memory       MemoryConfig `yaml:"memory"`
	Output       OutputConfig `yaml:"output"`
	AllowMissing bool         `yaml:"allow_missing"`
	Sections     []Section    `yaml:"sections"`
	Inputs       []string     `yaml:"inputs"`
}

type MemoryConfig struct {
	Size Size `yaml:"size"`
	Base Size `yaml:"base"`
}

// OutputConfig selects the written range. A zero limit, or one past the end of
// memory, means the end of memory.
type OutputConfig struct {
	Offset Size   `yaml:"offset"`
	Limit  Size   `yaml:"limit"`
	Path   string `yaml:"path"`
}

type Section struct {
	Name   string `yaml:"name"`
	Offset Size   `yaml:"offset"`
	Align  Size   `yaml:"align"`
	Perm   string `yaml:"perm"`
}

func Default() *Layout {
	return &Layout{
		Memory: MemoryConfig{Size: DefaultMemorySize},
	}
}

func Load(fs afero.Fs, path string) (*Layout, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading layout %s", path)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return l, nil
}

// Parse decodes a layout on top of Default and validates it. Unknown keys are
// rejected.
func Parse(data []byte) (*Layout, error) {
	l := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(l); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "failed to parse layout")
	}
	if err := l.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid layout")
	}
	return l, nil
}

// End is the first address past the target memory.
func (l *Layout) End() uint64 {
	return uint64(l.Memory.Base) + uint64(l.Memory.Size)
}

// OutputRange returns the image range to write, clamped to the target memory.
func (l *Layout) OutputRange() (start, end uint64) {
	start = max(uint64(l.Output.Offset), uint64(l.Memory.Base))
	end = uint64(l.Output.Limit)
	if end == 0 || end > l.End() {
		end = l.End()
	}
	return start, end
}

// Validate reports every problem in l at once.
func (l *Layout) Validate() error {
	var result error

	if l.Memory.Size == 0 {
		result = multierror.Append(result, errors.New("memory.size must be positive"))
	}
	if l.Memory.Size > MaxMemorySize {
		result = multierror.Append(result, errors.Errorf(
			"memory.size %s exceeds the %s limit", l.Memory.Size, Size(MaxMemorySize)))
	}
	if l.End() < uint64(l.Memory.Base) {
		result = multierror.Append(result, errors.Errorf(
			"memory.base %#x plus memory.size %#x overflows", uint64(l.Memory.Base), uint64(l.Memory.Size)))
	}

	start, end := l.OutputRange()
	if start > end {
		result = multierror.Append(result, errors.Errorf(
			"output.offset %#x is past output end %#x", start, end))
	}

	seen := make(map[string]bool, len(l.Sections))
	for i, s := range l.Sections {
		if err := l.validateSection(s); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "sections[%d]", i))
		}
		if seen[s.Name] {
			result = multierror.Append(result, errors.Errorf("sections[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
	}

	for i, in := range l.Inputs {
		if strings.TrimSpace(in) == "" {
			result = multierror.Append(result, errors.Errorf("inputs[%d]: empty path", i))
		}
	}
	return result
}

func (l *Layout) validateSection(s Section) error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if uint64(s.Offset) < uint64(l.Memory.Base) || uint64(s.Offset) >= l.End() {
		return errors.Errorf("offset %#x outside memory [%#x, %#x)",
			uint64(s.Offset), uint64(l.Memory.Base), l.End())
	}
	if _, err := ParsePerm(s.Perm); err != nil {
		return err
	}
	return nil
}

// ParseSize accepts plain integers, 0x hex and sizes with units. KB, MB, GB
// and TB are powers of 1024; all other units follow humanize.ParseBytes.
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty size")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "bad size %q", s)
		}
		return v, nil
	}

	upper := strings.ToUpper(s)
	for _, unit := range []string{"KB", "MB", "GB", "TB"} {
		if strings.HasSuffix(upper, unit) {
			s = s[:len(s)-2] + unit[:1] + "iB"
			break
		}
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, errors.Wrapf(err, "bad size %q", s)
	}
	return v, nil
}

// ParsePerm parses a permission string such as "rx" or "r-x".
func ParsePerm(s string) (linker.Perm, error) {
	var p linker.Perm
	for _, c := range s {
		switch c {
		case 'r':
			p |= linker.PermRead
		case 'w':
			p |= linker.PermWrite
		case 'x':
			p |= linker.PermExec
		case '-':
		default:
			return 0, errors.Errorf("bad permission %q in %q", c, s)
		}
	}
	return p, nil
}

// ParseSection parses the command line form name:offset[:perm[:align]].
func ParseSection(s string) (Section, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 4 {
		return Section{}, errors.Errorf("bad section %q, want name:offset[:perm[:align]]", s)
	}

	sec := Section{Name: parts[0]}
	if sec.Name == "" {
		return Section{}, errors.Errorf("bad section %q: empty name", s)
	}
	offset, err := ParseSize(parts[1])
	if err != nil {
		return Section{}, errors.Wrapf(err, "section %q", sec.Name)
	}
	sec.Offset = Size(offset)

	if len(parts) > 2 {
		if _, err := ParsePerm(parts[2]); err != nil {
			return Section{}, errors.Wrapf(err, "section %q", sec.Name)
		}
		sec.Perm = parts[2]
	}
	if len(parts) > 3 {
		align, err := ParseSize(parts[3])
		if err != nil {
			return Section{}, errors.Wrapf(err, "section %q", sec.Name)
		}
		sec.Align = Size(align)
	}
	return sec, nil
}

// Apply creates every section of l in ctx.
func (l *Layout) Apply(ctx *linker.Context) error {
	for _, s := range l.Sections {
		perm, err := ParsePerm(s.Perm)
		if err != nil {
			return err
		}
		if _, err := ctx.CreateOutputSection(s.Name, uint64(s.Offset), perm, uint64(s.Align)); err != nil {
			return err
		}
	}
	return nil
}
