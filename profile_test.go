// profile_test.go: Testing INI profile parsing and resolution
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

const sampleProfile = `; talos sample profile
# both comment styles are accepted
[Main]
LogFile = /var/log/ivdcm.log
BoardType =

[ProxyServer]
ProxyServerPort = 9001

[PravalaNetworkManager]
EnableLLCM = true
EnableNQM = 0

[Custom]
Extra = kept as read
`

// writeProfile writes content to a fresh profile file and loads it with a
// buffer logger and no stat caching.
func writeProfile(t *testing.T, content string) (*Profile, string, *bytes.Buffer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "talos.ini")
	writeTestFile(t, path, content)

	var buf bytes.Buffer
	logger := newBufferLogger(t, &buf, nil)
	p, err := NewProfile(path, WithProfileLogger(logger), WithStatCache(NewStatCache(0)))
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	return p, path, &buf
}

func TestParseProfile(t *testing.T) {
	sections, err := ParseProfile([]byte("top = level\n[A]\nx = 1\n[ B ]\ny = two words\n[A]\nz=3\n"))
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}
	if sections[""]["top"] != "level" {
		t.Errorf("keys before the first header belong to the empty section: %v", sections)
	}
	if sections["A"]["x"] != "1" || sections["A"]["z"] != "3" {
		t.Errorf("section A = %v", sections["A"])
	}
	if sections["B"]["y"] != "two words" {
		t.Errorf("section B = %v", sections["B"])
	}
}

func TestParseProfileErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated_header", "[Main\nx=1\n"},
		{"nested_brackets", "[Ma[in]]\n"},
		{"empty_section", "[  ]\n"},
		{"missing_equals", "[Main]\njust a line\n"},
		{"empty_key", "[Main]\n = value\n"},
		{"control_character", "[Main]\nke\x01y = value\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfile([]byte(tt.input))
			if err == nil {
				t.Fatalf("ParseProfile(%q) succeeded", tt.input)
			}
			if ErrorCode(err) != ErrCodeInvalidProfile {
				t.Errorf("error code = %q, want %q", ErrorCode(err), ErrCodeInvalidProfile)
			}
		})
	}
}

func TestProfileReadString(t *testing.T) {
	p, _, buf := writeProfile(t, sampleProfile)

	value, found := p.ReadString(ParamLogFile)
	if value != "/var/log/ivdcm.log" || !found {
		t.Errorf("ReadString(LogFile) = %q, %v", value, found)
	}

	// empty value in the file counts as missing
	value, found = p.ReadString(ParamBoardType)
	if value != "TCU" || found {
		t.Errorf("ReadString(BoardType) = %q, %v, want the default", value, found)
	}

	// absent from the file
	value, found = p.ReadString(ParamSDLServerAddress)
	if value != "127.0.0.1" || found {
		t.Errorf("ReadString(SDLServerAddress) = %q, %v", value, found)
	}

	_ = p.log().Flush()
	if !strings.Contains(buf.String(), "Parameter name LogFile from section Main was set to /var/log/ivdcm.log") {
		t.Errorf("reads should be logged at DD, got %q", buf.String())
	}
}

func TestProfileReadIntAndBool(t *testing.T) {
	p, _, _ := writeProfile(t, sampleProfile)

	if v, found := p.ReadInt(ParamProxyServerPort); v != 9001 || !found {
		t.Errorf("ReadInt(ProxyServerPort) = %d, %v", v, found)
	}
	if v, found := p.ReadInt(ParamSDLServerPort); v != 5445 || found {
		t.Errorf("ReadInt(SDLServerPort) = %d, %v", v, found)
	}
	if v, found := p.ReadBool(ParamEnableLLCM); !v || !found {
		t.Errorf("ReadBool(EnableLLCM) = %v, %v", v, found)
	}
	if v, found := p.ReadBool(ParamEnableNQM); v || !found {
		t.Errorf("ReadBool(EnableNQM) = %v, %v", v, found)
	}
	if v, found := p.ReadBool(ParamEnableDBus); v || found {
		t.Errorf("ReadBool(EnableDBus) = %v, %v", v, found)
	}
}

func TestProfileUnknownParameter(t *testing.T) {
	p, _, buf := writeProfile(t, sampleProfile)

	if v, found := p.ReadString("NoSuchParam"); v != "" || found {
		t.Errorf("ReadString(unknown) = %q, %v", v, found)
	}
	if _, _, ok := p.Lookup("NoSuchParam"); ok {
		t.Error("Lookup(unknown) should fail")
	}
	out := buf.String()
	if !strings.HasPrefix(out, "FF ") || !strings.Contains(out, "No default value for NoSuchParam") {
		t.Errorf("unknown parameter should be logged at FF, got %q", out)
	}
	if !strings.Contains(out, "profile_test.go") {
		t.Errorf("FF entry should point at the reader, got %q", out)
	}
}

func TestAtoi(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"42", 42},
		{"  17", 17},
		{"-8", -8},
		{"+3", 3},
		{"12abc", 12},
		{"abc", 0},
		{"", 0},
		{"-", 0},
		{"true", 0},
	}
	for _, tt := range tests {
		if got := atoi(tt.in); got != tt.want {
			t.Errorf("atoi(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestProfileMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.ini")
	p, err := NewProfile(path, WithProfileLogger(newBufferLogger(t, &bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("NewProfile on a missing file: %v", err)
	}
	if v, found := p.ReadString(ParamLogFile); v != "ivdcm.log" || found {
		t.Errorf("ReadString = %q, %v, want the default", v, found)
	}
	if len(p.Sections()) != 0 {
		t.Errorf("Sections() = %v, want none", p.Sections())
	}
	if !filepath.IsAbs(p.Path()) {
		t.Errorf("Path() = %q should be absolute", p.Path())
	}
}

func TestNewProfileErrors(t *testing.T) {
	if _, err := NewProfile("../outside.ini"); ErrorCode(err) != ErrCodeInvalidProfile {
		t.Errorf("traversal path error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "broken.ini")
	writeTestFile(t, path, "[Main\n")
	if _, err := NewProfile(path); ErrorCode(err) != ErrCodeInvalidProfile {
		t.Errorf("malformed profile error = %v", err)
	}
}

func TestProfileReload(t *testing.T) {
	p, path, _ := writeProfile(t, "[ProxyServer]\nProxyServerPort = 1\n")

	changed, err := p.Reload()
	if err != nil || changed {
		t.Fatalf("Reload without changes = %v, %v", changed, err)
	}

	writeTestFile(t, path, "[ProxyServer]\nProxyServerPort = 12345\n")
	changed, err = p.Reload()
	if err != nil || !changed {
		t.Fatalf("Reload after rewrite = %v, %v", changed, err)
	}
	if v, _ := p.ReadInt(ParamProxyServerPort); v != 12345 {
		t.Errorf("ProxyServerPort = %d after reload, want 12345", v)
	}

	// a broken rewrite keeps the previous content
	writeTestFile(t, path, "[ProxyServer\n")
	if _, err := p.Reload(); err == nil {
		t.Error("Reload of a malformed profile should fail")
	}
	if v, _ := p.ReadInt(ParamProxyServerPort); v != 12345 {
		t.Errorf("ProxyServerPort = %d after failed reload, want 12345", v)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	changed, err = p.Reload()
	if err != nil || !changed {
		t.Fatalf("Reload after removal = %v, %v", changed, err)
	}
	if v, found := p.ReadInt(ParamProxyServerPort); v != 4051 || found {
		t.Errorf("ProxyServerPort = %d, %v after removal, want the default", v, found)
	}
}

func TestProfileOverrides(t *testing.T) {
	p, _, _ := writeProfile(t, sampleProfile)

	p.SetOverride("ProxyServer", ParamProxyServerPort, "7000")
	value, source, ok := p.Lookup(ParamProxyServerPort)
	if !ok || value != "7000" || source != SourceOverride {
		t.Errorf("Lookup = %q, %v, %v", value, source, ok)
	}
	if source.String() != "override" {
		t.Errorf("source String() = %q", source.String())
	}

	p.SetOverride("ProxyServer", ParamProxyServerPort, "")
	value, source, _ = p.Lookup(ParamProxyServerPort)
	if value != "9001" || source != SourceFile {
		t.Errorf("after clearing the override Lookup = %q, %v", value, source)
	}

	// an override in the wrong section does not apply
	p.SetOverride("Main", ParamProxyServerPort, "1")
	if value, _, _ := p.Lookup(ParamProxyServerPort); value != "9001" {
		t.Errorf("override in a foreign section applied: %q", value)
	}
}

func TestProfileCustomDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.ini")
	writeTestFile(t, path, "[Server]\nPort = 80\n")

	defaults := ProfileDefaults{
		"Port":    {Section: "Server", Value: "8080"},
		"Timeout": {Section: "Server", Value: "30"},
		"Name":    {Section: "App", Value: "demo"},
	}
	p, err := NewProfile(path, WithProfileDefaults(defaults), WithProfileLogger(newBufferLogger(t, &bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("NewProfile: %v", err)
	}
	if v, _ := p.ReadInt("Port"); v != 80 {
		t.Errorf("Port = %d, want 80", v)
	}
	if v, _ := p.ReadInt("Timeout"); v != 30 {
		t.Errorf("Timeout = %d, want 30", v)
	}
	if got := defaults.Names(); !slices.Equal(got, []string{"Name", "Port", "Timeout"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestProfileValuesAndINI(t *testing.T) {
	p, _, _ := writeProfile(t, sampleProfile)

	if got := p.Sections(); !slices.Equal(got, []string{"Main", "ProxyServer", "PravalaNetworkManager", "Custom"}) {
		t.Errorf("Sections() = %v", got)
	}

	values := p.Values()
	if values["Custom"]["Extra"] != "kept as read" {
		t.Errorf("unknown file keys should be kept: %v", values["Custom"])
	}
	if values["Main"][ParamBoardType] != "TCU" {
		t.Errorf("empty file value should resolve to the default, got %q", values["Main"][ParamBoardType])
	}
	if values["DBus"][ParamMQTTServerPort] != "7777" {
		t.Errorf("defaults missing from Values(): %v", values["DBus"])
	}

	var out bytes.Buffer
	if err := p.WriteINI(&out); err != nil {
		t.Fatalf("WriteINI: %v", err)
	}
	reparsed, err := ParseProfile(out.Bytes())
	if err != nil {
		t.Fatalf("ParseProfile(WriteINI output): %v", err)
	}
	if reparsed["ProxyServer"][ParamProxyServerPort] != "9001" || reparsed["Custom"]["Extra"] != "kept as read" {
		t.Errorf("WriteINI output lost values: %s", out.String())
	}
	if !strings.HasPrefix(out.String(), "[Custom]\n") {
		t.Errorf("sections should be sorted, got %q", out.String()[:20])
	}
}

func TestProfileYAML(t *testing.T) {
	p, _, _ := writeProfile(t, sampleProfile)

	var out bytes.Buffer
	if err := p.WriteYAML(&out); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	if !strings.Contains(out.String(), `ProxyServerPort: "9001"`) {
		t.Errorf("values should be written as strings:\n%s", out.String())
	}

	loaded, err := LoadProfileYAML(&out, WithProfileLogger(newBufferLogger(t, &bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("LoadProfileYAML: %v", err)
	}
	if loaded.Path() != "" {
		t.Errorf("YAML profile Path() = %q, want empty", loaded.Path())
	}
	if v, found := loaded.ReadInt(ParamProxyServerPort); v != 9001 || !found {
		t.Errorf("ReadInt after YAML round trip = %d, %v", v, found)
	}
	if changed, err := loaded.Reload(); changed || err != nil {
		t.Errorf("Reload of a file-less profile = %v, %v", changed, err)
	}

	typed := "ProxyServer:\n  ProxyServerPort: 8443\nPravalaNetworkManager:\n  EnableNQM: true\n"
	loaded, err = LoadProfileYAML(strings.NewReader(typed), WithProfileLogger(newBufferLogger(t, &bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("LoadProfileYAML(typed): %v", err)
	}
	if v, _ := loaded.ReadInt(ParamProxyServerPort); v != 8443 {
		t.Errorf("ProxyServerPort = %d, want 8443", v)
	}
	if v, _ := loaded.ReadBool(ParamEnableNQM); !v {
		t.Error("EnableNQM should be true")
	}

	nested := "Main:\n  LogFile:\n    - a\n    - b\n"
	if _, err := LoadProfileYAML(strings.NewReader(nested)); ErrorCode(err) != ErrCodeInvalidProfile {
		t.Errorf("non-scalar value error = %v", err)
	}

	empty, err := LoadProfileYAML(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadProfileYAML(empty): %v", err)
	}
	if len(empty.Sections()) != 0 {
		t.Errorf("empty YAML produced sections %v", empty.Sections())
	}
}
