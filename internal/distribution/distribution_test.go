package distribution

import "testing"

func TestParseOSAndCPU(t *testing.T) {
	osTests := map[string]OS{
		"darwin":  OSX,
		"Windows": Windows,
		"sunos":   Solaris,
		"linux":   Linux,
		"freebsd": FreeBSD,
	}
	for in, want := range osTests {
		got, err := ParseOS(in)
		if err != nil || got != want {
			t.Errorf("ParseOS(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseOS("plan9"); err == nil {
		t.Error("ParseOS(plan9) expected error")
	}

	cpuTests := map[string]CPU{"amd64": X86, "386": X86, "arm64": ARM}
	for in, want := range cpuTests {
		got, err := ParseCPU(in)
		if err != nil || got != want {
			t.Errorf("ParseCPU(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseCPU("riscv64"); err == nil {
		t.Error("ParseCPU(riscv64) expected error")
	}
}

func TestPlatformString(t *testing.T) {
	tests := []struct {
		p    Platform
		want string
	}{
		{Platform{OS: Windows, CPU: X86, BitSize: B64}, "windows/x86_64"},
		{Platform{OS: Windows, CPU: X86, BitSize: B32}, "windows/i386"},
		{Platform{OS: Linux, CPU: ARM, BitSize: B64, OSVersion: CentOS8}, "linux/aarch64 (centos8)"},
	}
	for _, tt := range tests {
		if got := tt.p.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCommand(t *testing.T) {
	if !MongoDump.IsTool() || Mongod.IsTool() {
		t.Error("IsTool misclassifies commands")
	}
	if got := Mongod.Executable(Windows); got != "mongod.exe" {
		t.Errorf("Executable(windows) = %q", got)
	}
	if got := Mongod.Executable(Linux); got != "mongod" {
		t.Errorf("Executable(linux) = %q", got)
	}
	c, err := ParseCommand("MongoRestore")
	if err != nil || c != MongoRestore {
		t.Errorf("ParseCommand() = %q, %v", c, err)
	}
	if _, err := ParseCommand("mysqld"); err == nil {
		t.Error("ParseCommand(mysqld) expected error")
	}
}

func TestDistributionString(t *testing.T) {
	d := Of(MustParseVersion("4.0.12"), Platform{OS: Linux, CPU: X86, BitSize: B64})
	if got := d.String(); got != "4.0.12 on linux/x86_64" {
		t.Errorf("String() = %q", got)
	}
	d.ToolsVersion = MustParseVersion("100.5.1")
	if got := d.String(); got != "4.0.12 on linux/x86_64 [tools 100.5.1]" {
		t.Errorf("String() = %q", got)
	}
}
