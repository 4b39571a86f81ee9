// profile.go: INI-backed configuration profile with a defaults table
//
// Every known parameter has a default and a home section. Reads look the
// parameter up in its section of the profile file and fall back to the
// default when the file is missing, lacks the key or gives it an empty
// value. Overrides set from flags or environment variables win over both.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/agilira/go-errors"
)

// ProfileParam is the home section and default value of a parameter.
type ProfileParam struct {
	Section string `yaml:"section"`
	Value   string `yaml:"value"`
}

// ProfileDefaults maps parameter names to their section and default value.
type ProfileDefaults map[string]ProfileParam

// Names returns the parameter names sorted by section, then name.
func (d ProfileDefaults) Names() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := d[names[i]], d[names[j]]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		return names[i] < names[j]
	})
	return names
}

// Profile parameter names.
const (
	ParamLogFile                         = "LogFile"
	ParamBoardType                       = "BoardType"
	ParamCellularEmulatorInterfaceName   = "CellularEmulatorInterfaceName"
	ParamWifiEmulatorInterfaceName       = "WifiEmulatorInterfaceName"
	ParamSSLCertificatesPath             = "SSLCertificatesPath"
	ParamGRETunnelLocalAddress           = "GRETunnelLocalAddress"
	ParamIPAliasAddressGeneratorBase     = "IPAliasAddressGeneratorBase"
	ParamDomainServerAddress             = "DomainServerAddress"
	ParamProxyServerAddress              = "ProxyServerAddress"
	ParamProxyServerPort                 = "ProxyServerPort"
	ParamDistributedServiceAddress       = "DistributedServiceAddress"
	ParamDistributedServicePort          = "DistributedServicePort"
	ParamNetworkServiceHost              = "NetworkServiceHost"
	ParamNetworkServicePort              = "NetworkServicePort"
	ParamRemoteNetworkServiceHost        = "RemoteNetworkServiceHost"
	ParamRemoteNetworkServicePort        = "RemoteNetworkServicePort"
	ParamSDLServerAddress                = "SDLServerAddress"
	ParamSDLServerPort                   = "SDLServerPort"
	ParamSDLServerNotificationPort       = "SDLServerNotificationPort"
	ParamEnableLLCM                      = "EnableLLCM"
	ParamEnableNQM                       = "EnableNQM"
	ParamPravalaNetWorkManagerAddress    = "PravalaNetWorkManagerAddress"
	ParamPravalaMostPreferedInterface    = "PravalaMostPreferedInterface"
	ParamEnableDBus                      = "EnableDBus"
	ParamMQTTServerAddress               = "MQTTServerAddress"
	ParamMQTTServerPort                  = "MQTTServerPort"
	ParamIVDCMDBusServerName             = "IVDCMDBusServerName"
	ParamIVDCMDBusObjectPath             = "IVDCMDBusObjectPath"
	ParamIVDCMDBusSessionRPCInterface    = "IVDCMDBusSessionRPCInterface"
	ParamIVDCMDBusProxyRPCInterface      = "IVDCMDBusProxyRPCInterface"
	ParamIVDCMDBusTCUSDKInterface        = "IVDCMDBusTCUSDKInterface"
	ParamIVDCMDBusIntrospectInterface    = "IVDCMDBusIntrospectInterface"
	ParamIVDCMDBusPropertiesInterface    = "IVDCMDBusPropertiesInterface"
	ParamDMDBusObjectPath                = "DMDBusObjectPath"
	ParamDMDBusInterface                 = "DMDBusInterface"
	ParamTCUSDKDBusServerName            = "TCUSDKDBusServerName"
	ParamTCUSDKDbusObjectPath            = "TCUSDKDbusObjectPath"
	ParamTCUSDKDBusInterface             = "TCUSDKDBusInterface"
)

// DefaultProfileTable returns the built-in parameter table.
func DefaultProfileTable() ProfileDefaults {
	return ProfileDefaults{
		ParamLogFile:                       {"Main", "ivdcm.log"},
		ParamBoardType:                     {"Main", "TCU"},
		ParamCellularEmulatorInterfaceName: {"Main", "cellular"},
		ParamWifiEmulatorInterfaceName:     {"Main", ""},
		ParamSSLCertificatesPath:           {"Main", "/opt/conti/etc/cert/"},
		ParamGRETunnelLocalAddress:         {"Main", "10.1.0.1"},
		ParamIPAliasAddressGeneratorBase:   {"Main", "10.11.0.1"},

		ParamDomainServerAddress: {"DomainServer", "/tmp/ivdcm_socket"},

		ParamProxyServerAddress: {"ProxyServer", "127.0.0.1"},
		ParamProxyServerPort:    {"ProxyServer", "4051"},

		ParamDistributedServiceAddress: {"DistributedService", "127.0.0.1"},
		ParamDistributedServicePort:    {"DistributedService", "4050"},

		ParamNetworkServiceHost:       {"RemoteNetworkProvider", "127.0.0.1"},
		ParamNetworkServicePort:       {"RemoteNetworkProvider", "4060"},
		ParamRemoteNetworkServiceHost: {"RemoteNetworkProvider", "127.0.0.1"},
		ParamRemoteNetworkServicePort: {"RemoteNetworkProvider", "4060"},

		ParamSDLServerAddress:          {"SDL", "127.0.0.1"},
		ParamSDLServerPort:             {"SDL", "5445"},
		ParamSDLServerNotificationPort: {"SDL", "5446"},

		ParamEnableLLCM:                   {"PravalaNetworkManager", "false"},
		ParamEnableNQM:                    {"PravalaNetworkManager", "false"},
		ParamPravalaNetWorkManagerAddress: {"PravalaNetworkManager", "/tmp/ivdcm.sock"},
		ParamPravalaMostPreferedInterface: {"PravalaNetworkManager", "wifi"},

		ParamEnableDBus:                   {"DBus", "false"},
		ParamMQTTServerAddress:            {"DBus", "127.0.0.1"},
		ParamMQTTServerPort:               {"DBus", "7777"},
		ParamIVDCMDBusServerName:          {"DBus", "ivdcm.cm"},
		ParamIVDCMDBusObjectPath:          {"DBus", "/ivdcm/cm"},
		ParamIVDCMDBusSessionRPCInterface: {"DBus", "ivdcm.cm.sessionrpc"},
		ParamIVDCMDBusProxyRPCInterface:   {"DBus", "ivdcm.cm.proxyrpc"},
		ParamIVDCMDBusTCUSDKInterface:     {"DBus", "ivdcm.cm"},
		ParamIVDCMDBusIntrospectInterface: {"DBus", "org.freedesktop.DBus.Introspectable"},
		ParamIVDCMDBusPropertiesInterface: {"DBus", "org.freedesktop.DBus.Properties"},
		ParamDMDBusObjectPath:             {"DBus", "/dm/general"},
		ParamDMDBusInterface:              {"DBus", "dm.general"},
		ParamTCUSDKDBusServerName:         {"DBus", "conti.sdk.common"},
		ParamTCUSDKDbusObjectPath:         {"DBus", "/conti/sdk/common"},
		ParamTCUSDKDBusInterface:          {"DBus", "conti.sdk.common"},
	}
}

// ProfileSource tells where a resolved value came from.
type ProfileSource int

const (
	SourceDefault ProfileSource = iota
	SourceFile
	SourceOverride
)

func (s ProfileSource) String() string {
	switch s {
	case SourceFile:
		return "file"
	case SourceOverride:
		return "override"
	default:
		return "default"
	}
}

// profileData is an immutable parsed profile. Reload swaps whole values.
type profileData struct {
	sections map[string]map[string]string
	order    []string
	stat     FileStat
}

func emptyProfileData() *profileData {
	return &profileData{sections: make(map[string]map[string]string)}
}

// Profile resolves configuration parameters. It is safe for concurrent use.
type Profile struct {
	path      string
	defaults  ProfileDefaults
	data      *AtomicValue[*profileData]
	overrides *AtomicValue[map[string]string]
	stats     *StatCache
	logger    *Logger
}

// ProfileOption configures a Profile.
type ProfileOption func(*Profile)

// WithProfileDefaults replaces the built-in parameter table.
func WithProfileDefaults(defaults ProfileDefaults) ProfileOption {
	return func(p *Profile) { p.defaults = defaults }
}

// WithProfileLogger sends profile diagnostics to logger.
func WithProfileLogger(logger *Logger) ProfileOption {
	return func(p *Profile) { p.logger = logger }
}

// WithStatCache shares a stat cache between profiles.
func WithStatCache(cache *StatCache) ProfileOption {
	return func(p *Profile) { p.stats = cache }
}

func newProfile(path string, opts []ProfileOption) *Profile {
	p := &Profile{
		path:      path,
		defaults:  DefaultProfileTable(),
		data:      NewAtomicValue(emptyProfileData()),
		overrides: NewAtomicValue(map[string]string{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.stats == nil {
		p.stats = NewStatCache(time.Second)
	}
	return p
}

// NewProfile loads the INI file at path. A missing file is not an error:
// every parameter then resolves to its default.
func NewProfile(path string, opts ...ProfileOption) (*Profile, error) {
	if err := ValidatePath(path); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidProfile, "invalid profile path")
	}
	abs, err := absPath(path)
	if err != nil {
		return nil, err
	}

	p := newProfile(abs, opts)
	if err := p.load(); err != nil {
		return nil, err
	}
	return p, nil
}

// Path returns the absolute profile file path, empty for profiles loaded
// from YAML.
func (p *Profile) Path() string { return p.path }

// Defaults returns the parameter table in use.
func (p *Profile) Defaults() ProfileDefaults { return p.defaults }

func (p *Profile) log() *Logger {
	if p.logger != nil {
		return p.logger
	}
	return DefaultLogger()
}

func (p *Profile) load() error {
	p.stats.Invalidate(p.path)
	stat, err := p.stats.Stat(p.path)
	if !stat.Exists {
		if err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, ErrCodeProfileIO, "failed to stat profile").
				WithContext("path", p.path)
		}
		p.data.Store(emptyProfileData())
		return nil
	}

	// #nosec G304 -- path validated in NewProfile
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return errors.Wrap(err, ErrCodeProfileIO, "failed to read profile").
			WithContext("path", p.path)
	}
	data, err := parseProfile(raw)
	if err != nil {
		return errors.Wrap(err, ErrCodeInvalidProfile, "failed to parse profile").
			WithContext("path", p.path)
	}
	data.stat = stat
	p.data.Store(data)
	return nil
}

// Reload re-reads the file when its size, modification time or existence
// changed since the last load. It reports whether new content was loaded.
// On a parse error the previous content stays in effect.
func (p *Profile) Reload() (bool, error) {
	if p.path == "" {
		return false, nil
	}
	stat, err := p.stats.Stat(p.path)
	if err != nil && !os.IsNotExist(err) {
		return false, errors.Wrap(err, ErrCodeProfileIO, "failed to stat profile").
			WithContext("path", p.path)
	}
	if !stat.Changed(p.data.Load().stat) {
		return false, nil
	}
	if err := p.load(); err != nil {
		return false, err
	}
	p.log().Debugf("Profile %s reloaded", p.path)
	return true, nil
}

// SetOverride makes value win over the file and the default for param in
// section. An empty value removes the override.
func (p *Profile) SetOverride(section, param, value string) {
	key := section + "." + param
	p.overrides.Update(func(current map[string]string) map[string]string {
		next := make(map[string]string, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		if value == "" {
			delete(next, key)
		} else {
			next[key] = value
		}
		return next
	})
}

// Get returns the raw file value of key in section. Empty values count as
// missing.
func (p *Profile) Get(section, key string) (string, bool) {
	value, ok := p.data.Load().sections[section][key]
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// Lookup resolves param and tells where the value came from. ok is false
// when param has no entry in the defaults table.
func (p *Profile) Lookup(param string) (value string, source ProfileSource, ok bool) {
	def, known := p.defaults[param]
	if !known {
		return "", SourceDefault, false
	}
	if v, set := p.overrides.Load()[def.Section+"."+param]; set {
		return v, SourceOverride, true
	}
	if v, set := p.Get(def.Section, param); set {
		return v, SourceFile, true
	}
	return def.Value, SourceDefault, true
}

// resolve is shared by the typed readers. It logs FF for unknown
// parameters.
func (p *Profile) resolve(param string) (string, string, bool, bool) {
	value, source, ok := p.Lookup(param)
	if !ok {
		p.log().logErrorDepth(4, LevelFatal,
			errors.New(ErrCodeProfileNoDefault, "No default value for "+param))
		return "", "", false, false
	}
	return value, p.defaults[param].Section, source != SourceDefault, true
}

// ReadString returns the value of param. found reports whether the value
// came from the profile file or an override rather than the default.
func (p *Profile) ReadString(param string) (value string, found bool) {
	value, section, found, ok := p.resolve(param)
	if !ok {
		return "", false
	}
	p.log().Debugf("Parameter name %s from section %s was set to %s", param, section, value)
	return value, found
}

// ReadInt returns param parsed the way atoi does: the leading integer, or 0.
func (p *Profile) ReadInt(param string) (value int, found bool) {
	raw, section, found, ok := p.resolve(param)
	if !ok {
		return 0, false
	}
	value = atoi(raw)
	p.log().Debugf("Parameter name %s from section %s was set to %d", param, section, value)
	return value, found
}

// ReadBool returns true for "true" or any value whose integer prefix is
// non-zero.
func (p *Profile) ReadBool(param string) (value bool, found bool) {
	raw, section, found, ok := p.resolve(param)
	if !ok {
		return false, false
	}
	value = raw == "true" || atoi(raw) != 0
	p.log().Debugf("Parameter name %s from section %s was set to %t", param, section, value)
	return value, found
}

// Sections returns the sections of the profile file in file order.
func (p *Profile) Sections() []string {
	order := p.data.Load().order
	out := make([]string, len(order))
	copy(out, order)
	return out
}

// Values returns every resolved parameter grouped by section. Keys present
// in the file but absent from the defaults table are included as read.
func (p *Profile) Values() map[string]map[string]string {
	out := make(map[string]map[string]string)
	put := func(section, key, value string) {
		if out[section] == nil {
			out[section] = make(map[string]string)
		}
		out[section][key] = value
	}
	for section, keys := range p.data.Load().sections {
		for key, value := range keys {
			put(section, key, value)
		}
	}
	for name, def := range p.defaults {
		value, _, _ := p.Lookup(name)
		put(def.Section, name, value)
	}
	return out
}

// WriteINI writes the resolved values as an INI document with sorted
// sections and keys.
func (p *Profile) WriteINI(w io.Writer) error {
	values := p.Values()
	sections := make([]string, 0, len(values))
	for section := range values {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	bw := bufio.NewWriter(w)
	for i, section := range sections {
		if i > 0 {
			_, _ = bw.WriteString("\n")
		}
		_, _ = fmt.Fprintf(bw, "[%s]\n", section)
		keys := make([]string, 0, len(values[section]))
		for key := range values[section] {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			_, _ = fmt.Fprintf(bw, "%s = %s\n", key, values[section][key])
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, ErrCodeProfileIO, "failed to write profile")
	}
	return nil
}

// ParseProfile parses INI text into section -> key -> value. Keys before
// the first section header belong to the "" section.
func ParseProfile(data []byte) (map[string]map[string]string, error) {
	parsed, err := parseProfile(data)
	if err != nil {
		return nil, err
	}
	return parsed.sections, nil
}

func parseProfile(data []byte) (*profileData, error) {
	out := emptyProfileData()
	section := ""

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			if err := validateSection(line, lineNum); err != nil {
				return nil, err
			}
			section = strings.TrimSpace(line[1 : len(line)-1])
			if _, seen := out.sections[section]; !seen {
				out.sections[section] = make(map[string]string)
				out.order = append(out.order, section)
			}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, errors.New(ErrCodeInvalidProfile,
				fmt.Sprintf("invalid profile line %d: expected key = value", lineNum))
		}
		key = strings.TrimSpace(key)
		if err := validateKey(key, lineNum); err != nil {
			return nil, err
		}
		if out.sections[section] == nil {
			out.sections[section] = make(map[string]string)
			out.order = append(out.order, section)
		}
		out.sections[section][key] = strings.TrimSpace(value)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, ErrCodeInvalidProfile, "failed to scan profile")
	}
	return out, nil
}

// validateSection checks a [section] header line.
func validateSection(line string, lineNum int) error {
	if !strings.HasSuffix(line, "]") {
		return errors.New(ErrCodeInvalidProfile,
			fmt.Sprintf("invalid profile section at line %d: malformed brackets", lineNum))
	}
	content := line[1 : len(line)-1]
	if strings.ContainsAny(content, "[]") {
		return errors.New(ErrCodeInvalidProfile,
			fmt.Sprintf("invalid profile section at line %d: nested brackets not supported", lineNum))
	}
	if strings.TrimSpace(content) == "" {
		return errors.New(ErrCodeInvalidProfile,
			fmt.Sprintf("invalid profile section at line %d: empty section name", lineNum))
	}
	return nil
}

// validateKey rejects empty keys and keys with control or non-printable
// characters.
func validateKey(key string, lineNum int) error {
	if key == "" {
		return errors.New(ErrCodeInvalidProfile,
			fmt.Sprintf("invalid profile key at line %d: key cannot be empty", lineNum))
	}
	for _, char := range key {
		if char == 0 || char < 32 || !unicode.IsPrint(char) {
			return errors.New(ErrCodeInvalidProfile,
				fmt.Sprintf("invalid profile key at line %d: non-printable character not allowed in keys", lineNum))
		}
	}
	return nil
}

// atoi converts the leading integer of s, ignoring leading whitespace.
// Anything unparsable yields 0.
func atoi(s string) int {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
