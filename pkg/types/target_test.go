package types

import "testing"

func TestParseOS(t *testing.T) {
	cases := map[string]OS{
		"darwin": OSMacOS, "macos": OSMacOS, "OSX": OSMacOS,
		"windows": OSWindows, "win": OSWindows,
		"linux": OSLinux,
	}
	for in, want := range cases {
		got, err := ParseOS(in)
		if err != nil || got != want {
			t.Fatalf("ParseOS(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOS("plan9"); err == nil {
		t.Fatal("unknown os must be rejected")
	}
}

func TestParseArch(t *testing.T) {
	cases := map[string]Arch{
		"amd64": ArchAMD64, "x86_64": ArchAMD64,
		"arm64": ArchARM64, "aarch64": ArchARM64,
	}
	for in, want := range cases {
		got, err := ParseArch(in)
		if err != nil || got != want {
			t.Fatalf("ParseArch(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseArch("riscv64"); err == nil {
		t.Fatal("unknown arch must be rejected")
	}
}

func TestParseAcceleration(t *testing.T) {
	cases := map[string]Acceleration{
		"none": AccelNone, "cpu": AccelNone,
		"metal": AccelMetal, "CUDA": AccelCUDA,
	}
	for in, want := range cases {
		got, err := ParseAcceleration(in)
		if err != nil || got != want {
			t.Fatalf("ParseAcceleration(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseAcceleration("opencl"); err == nil {
		t.Fatal("unknown acceleration must be rejected")
	}
}

func TestTripleAndSlug(t *testing.T) {
	bt := BuildTarget{OS: OSMacOS, Arch: ArchARM64, Acceleration: AccelMetal}
	if bt.Triple() != "macos/arm64/metal" {
		t.Fatalf("triple: %s", bt.Triple())
	}
	if bt.Slug() != "macos-arm64-metal" {
		t.Fatalf("slug: %s", bt.Slug())
	}
}

func TestManifestSortAndDestSet(t *testing.T) {
	m := BundleManifest{
		RegularFiles: []ManifestEntry{
			{Source: "/b", Dest: "app/b.py"},
			{Source: "/a", Dest: "app/a.py"},
		},
		NativeBinaries: []ManifestEntry{
			{Source: "/z", Dest: "lib/dep/z.so", Origin: "dep"},
		},
	}
	m.Sort()
	if m.RegularFiles[0].Dest != "app/a.py" {
		t.Fatalf("not sorted: %+v", m.RegularFiles)
	}
	set := m.DestSet()
	for _, want := range []string{"app/a.py", "app/b.py", "lib/dep/z.so"} {
		if _, ok := set[want]; !ok {
			t.Fatalf("dest set missing %s", want)
		}
	}
	if got := len(m.Entries()); got != 3 {
		t.Fatalf("entries: %d", got)
	}
}
