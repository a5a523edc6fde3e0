package config

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/ksco/asmld/pkg/linker"
	"github.com/ksco/asmld/pkg/memory"
)

func TestParseSize(t *testing.T) {
	for in, want := range map[string]uint64{
		"0":      0,
		"4096":   4096,
		"0x1000": 0x1000,
		"0XfF":   0xff,
		"64KB":   64 << 10,
		"1MB":    1 << 20,
		"2 GB":   2 << 30,
		"1mb":    1 << 20,
		"4KiB":   4 << 10,
		"3 MiB":  3 << 20,
		" 12 ":   12,
	} {
		got, err := ParseSize(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "0x", "0xzz", "MB", "12XB", "ten"} {
		_, err := ParseSize(in)
		require.Error(t, err, in)
	}
}

func TestParsePerm(t *testing.T) {
	for in, want := range map[string]linker.Perm{
		"":    0,
		"r":   linker.PermRead,
		"rw":  linker.PermRead | linker.PermWrite,
		"r-x": linker.PermRead | linker.PermExec,
		"xwr": linker.PermRead | linker.PermWrite | linker.PermExec,
	} {
		got, err := ParsePerm(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParsePerm("rq")
	require.Error(t, err)
}

func TestParseSection(t *testing.T) {
	s, err := ParseSection("text:0x1000")
	require.NoError(t, err)
	require.Equal(t, Section{Name: "text", Offset: 0x1000}, s)

	s, err = ParseSection("data:64KB:rw:32")
	require.NoError(t, err)
	require.Equal(t, Section{Name: "data", Offset: 64 << 10, Perm: "rw", Align: 32}, s)

	for _, in := range []string{"text", ":0x10", "text:nope", "text:0:rz", "text:0:r:x", "a:1:r:2:3"} {
		_, err := ParseSection(in)
		require.Error(t, err, in)
	}
}

const layoutYAML = `
memory:
  size: 64KB
  base: 0x10000
output:
  offset: 0x10000
  limit: 0x18000
  path: image.bin
allow_missing: true
sections:
  - name: text
    offset: 0x10000
    perm: rx
  - name: data
    offset: 0x14000
    align: 8
    perm: rw
inputs:
  - main.o
  - libc.a
`

func TestParseLayout(t *testing.T) {
	l, err := Parse([]byte(layoutYAML))
	require.NoError(t, err)

	require.Equal(t, Size(64<<10), l.Memory.Size)
	require.Equal(t, Size(0x10000), l.Memory.Base)
	require.Equal(t, uint64(0x20000), l.End())
	require.Equal(t, "image.bin", l.Output.Path)
	require.True(t, l.AllowMissing)
	require.Equal(t, []string{"main.o", "libc.a"}, l.Inputs)
	require.Equal(t, []Section{
		{Name: "text", Offset: 0x10000, Perm: "rx"},
		{Name: "data", Offset: 0x14000, Align: 8, Perm: "rw"},
	}, l.Sections)

	start, end := l.OutputRange()
	require.Equal(t, uint64(0x10000), start)
	require.Equal(t, uint64(0x18000), end)

	ctx := linker.NewContext(memory.NewFlat(int(l.Memory.Size)), nil)
	require.NoError(t, l.Apply(ctx))
	require.Equal(t, linker.PermRead|linker.PermExec, ctx.OutputSections["text"].Perm)
	require.Equal(t, linker.DefaultAlignment, ctx.OutputSections["text"].Align)
	require.Equal(t, uint64(8), ctx.OutputSections["data"].Align)
}

func TestParseDefaults(t *testing.T) {
	l, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, Size(DefaultMemorySize), l.Memory.Size)
	require.Equal(t, "1.0 MiB", l.Memory.Size.String())

	start, end := l.OutputRange()
	require.Equal(t, uint64(0), start)
	require.Equal(t, uint64(DefaultMemorySize), end)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("memory:\n  size: 1MB\n  sizes: 2MB\n"))
	require.Error(t, err)

	_, err = Parse([]byte("memory:\n  size: [1, 2]\n"))
	require.Error(t, err)
}

func TestValidateAggregatesErrors(t *testing.T) {
	l := &Layout{
		Memory: MemoryConfig{Size: 0x100, Base: 0x1000},
		Output: OutputConfig{Offset: 0x2000},
		Sections: []Section{
			{Name: "", Offset: 0x1000},
			{Name: "text", Offset: 0x10},
			{Name: "data", Offset: 0x1010, Perm: "rwz"},
			{Name: "data", Offset: 0x1020},
		},
		Inputs: []string{"ok.o", " "},
	}

	err := l.Validate()
	require.Error(t, err)

	merr, ok := err.(*multierror.Error)
	require.True(t, ok)
	require.Len(t, merr.Errors, 6)

	msg := err.Error()
	require.Contains(t, msg, "output.offset 0x2000")
	require.Contains(t, msg, "sections[0]: name is required")
	require.Contains(t, msg, "sections[1]: offset 0x10 outside memory")
	require.Contains(t, msg, "sections[2]: bad permission")
	require.Contains(t, msg, `sections[3]: duplicate name "data"`)
	require.Contains(t, msg, "inputs[1]: empty path")
}

func TestValidateMemory(t *testing.T) {
	l := &Layout{Memory: MemoryConfig{Size: 0x10, Base: Size(^uint64(0) - 4)}}
	err := l.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "overflows")

	l = &Layout{}
	require.ErrorContains(t, l.Validate(), "memory.size must be positive")

	for _, size := range []uint64{MaxMemorySize + 1, 64 << 30, 1 << 63, ^uint64(0)} {
		l = &Layout{Memory: MemoryConfig{Size: Size(size)}}
		require.ErrorContains(t, l.Validate(), "exceeds the 4.0 GiB limit", "size %#x", size)
	}

	l = &Layout{Memory: MemoryConfig{Size: MaxMemorySize}}
	require.NoError(t, l.Validate())
}

func TestLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/layout.yaml", []byte(layoutYAML), 0o644))

	l, err := Load(fs, "/etc/layout.yaml")
	require.NoError(t, err)
	require.Len(t, l.Sections, 2)

	_, err = Load(fs, "/etc/missing.yaml")
	require.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/etc/bad.yaml", []byte("sections:\n  - name: text\n    offset: 2MB\n"), 0o644))
	_, err = Load(fs, "/etc/bad.yaml")
	require.ErrorContains(t, err, "/etc/bad.yaml")
	require.ErrorContains(t, err, "outside memory")
}
