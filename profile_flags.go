// profile_flags.go: Command-line and environment overrides for a Profile
//
// Every parameter of the defaults table becomes a string flag named
// Section-Param and an environment variable PREFIX_SECTION_PARAM. Flags win
// over the environment, and both win over the profile file.
//
// Copyright (c) 2025 AGILira
// Series: AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package talos

import (
	"os"
	"strings"

	flashflags "github.com/agilira/flash-flags"
	"github.com/agilira/go-errors"
)

// ProfileFlags binds a flash-flags FlagSet to a Profile.
type ProfileFlags struct {
	flags     *flashflags.FlagSet
	profile   *Profile
	envPrefix string

	// flag name -> config key ("Section.Param")
	bound map[string]string
}

// NewProfileFlags registers one flag per parameter of profile's defaults
// table. envPrefix is upper-cased; an empty prefix disables environment
// overrides.
func NewProfileFlags(name, envPrefix string, profile *Profile) *ProfileFlags {
	pf := &ProfileFlags{
		flags:     flashflags.New(name),
		profile:   profile,
		envPrefix: strings.ToUpper(envPrefix),
		bound:     make(map[string]string),
	}
	defaults := profile.Defaults()
	for _, param := range defaults.Names() {
		def := defaults[param]
		flagName := def.Section + "-" + param
		pf.flags.String(flagName, "", "override "+def.Section+"."+param+" (default \""+def.Value+"\")")
		pf.bound[flagName] = pf.flagNameToConfigKey(flagName)
	}
	return pf
}

// FlagSet exposes the underlying flash-flags set, for help output.
func (pf *ProfileFlags) FlagSet() *flashflags.FlagSet { return pf.flags }

// Parse parses args, reads the environment and installs every non-empty
// value as a profile override.
func (pf *ProfileFlags) Parse(args []string) error {
	if err := pf.flags.Parse(args); err != nil {
		return errors.Wrap(err, ErrCodeInvalidProfile, "failed to parse profile flags")
	}

	applied := 0
	pf.flags.VisitAll(func(flag *flashflags.Flag) {
		name := flag.Name()
		key, ok := pf.bound[name]
		if !ok {
			return
		}
		value := pf.flags.GetString(name)
		if value == "" && pf.envPrefix != "" {
			value = os.Getenv(pf.FlagToEnvKey(name))
		}
		if value == "" {
			return
		}
		section, param, _ := strings.Cut(key, ".")
		pf.profile.SetOverride(section, param, value)
		applied++
	})
	pf.profile.log().Debugf("Applied %d profile overrides", applied)
	return nil
}

// BoundFlags returns flag names mapped to their "Section.Param" keys.
func (pf *ProfileFlags) BoundFlags() map[string]string {
	out := make(map[string]string, len(pf.bound))
	for k, v := range pf.bound {
		out[k] = v
	}
	return out
}

// FlagToEnvKey converts "ProxyServer-ProxyServerPort" into
// "TALOS_PROXYSERVER_PROXYSERVERPORT" for prefix "TALOS".
func (pf *ProfileFlags) FlagToEnvKey(flagName string) string {
	return pf.envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

// flagNameToConfigKey turns the first dash into the section separator.
// Parameter names never contain dashes.
func (pf *ProfileFlags) flagNameToConfigKey(flagName string) string {
	return strings.Replace(flagName, "-", ".", 1)
}
