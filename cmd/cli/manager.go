// Package cli provides the command-line interface for talos.
//
// The CLI is built on the Orpheus framework with git-style subcommands:
//
//	talos profile get|list|export|watch   inspect INI profiles
//	talos log query|stats                 read SQLite diagnostic logs
//	talos fs stat|ls                      file system helpers
//	talos array sort                      sort integers with talos.Array
//	talos bench                           lock and atomic contention run
//	talos info                            build and runtime details
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"io"
	"os"

	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/agilira/talos"
)

// Version is reported by "talos --version" and "talos info".
const Version = "1.0.0"

// Manager wires the talos commands into an Orpheus application.
type Manager struct {
	app       *orpheus.App
	out       io.Writer
	envPrefix string
	logger    *talos.Logger

	// commands that declare flags; their values are reset before every Run
	flagged []*orpheus.Command
}

// NewManager creates a CLI manager writing to stdout.
func NewManager() *Manager {
	app := orpheus.New("talos").
		SetDescription("Platform utilities: profiles, diagnostic logs and concurrency primitives").
		SetVersion(Version)

	manager := &Manager{
		app:       app,
		out:       os.Stdout,
		envPrefix: "TALOS",
	}

	manager.setupProfileCommands()
	manager.setupLogCommands()
	manager.setupFSCommands()
	manager.setupUtilityCommands()

	return manager
}

// WithOutput redirects command output, mainly for tests.
func (m *Manager) WithOutput(w io.Writer) *Manager {
	m.out = w
	return m
}

// WithLogger sends profile diagnostics to logger instead of the default
// logger.
func (m *Manager) WithLogger(logger *talos.Logger) *Manager {
	m.logger = logger
	return m
}

// WithEnvPrefix changes the prefix of profile override variables. Empty
// disables environment overrides.
func (m *Manager) WithEnvPrefix(prefix string) *Manager {
	m.envPrefix = prefix
	return m
}

// Run executes the CLI application with the provided arguments.
func (m *Manager) Run(args []string) error {
	for _, cmd := range m.flagged {
		cmd.Flags().Reset()
	}
	return m.app.Run(args)
}

// withFlags records a command whose flags must not leak between runs.
func (m *Manager) withFlags(cmd *orpheus.Command) *orpheus.Command {
	m.flagged = append(m.flagged, cmd)
	return cmd
}

// setupProfileCommands configures the 'profile' command group.
func (m *Manager) setupProfileCommands() {
	profileCmd := orpheus.NewCommand("profile", "INI profile inspection")

	// profile get <file> <param>
	profileCmd.Subcommand("get", "Resolve a parameter and show its source", m.handleProfileGet)

	// profile list <file> [--section=]
	listCmd := m.withFlags(profileCmd.Subcommand("list", "List every known parameter", m.handleProfileList))
	listCmd.AddFlag("section", "s", "", "Only show this section")

	// profile export <file> [--format=ini]
	exportCmd := m.withFlags(profileCmd.Subcommand("export", "Print the resolved profile", m.handleProfileExport))
	exportCmd.AddFlag("format", "f", "ini", "Output format (ini|yaml)")

	// profile watch <file> [--interval=5s]
	watchCmd := m.withFlags(profileCmd.Subcommand("watch", "Reload the profile when it changes", m.handleProfileWatch))
	watchCmd.AddFlag("interval", "i", "5s", "Polling interval")

	m.app.AddCommand(profileCmd)
}

// setupLogCommands configures the 'log' command group for SQLite logs.
func (m *Manager) setupLogCommands() {
	logCmd := orpheus.NewCommand("log", "Diagnostic log inspection")

	queryCmd := m.withFlags(logCmd.Subcommand("query", "Query stored entries, newest first", m.handleLogQuery))
	queryCmd.AddFlag("level", "l", "DD", "Minimum level (DD|WW|EE|FF|TR)")
	queryCmd.AddFlag("component", "c", "", "Component filter")
	queryCmd.AddFlag("since", "s", "", "Time range (e.g., 24h, 7d, 2w)")
	queryCmd.AddIntFlag("limit", "n", 100, "Maximum results")

	logCmd.Subcommand("stats", "Summarize stored entries", m.handleLogStats)

	m.app.AddCommand(logCmd)
}

// setupFSCommands configures the 'fs' command group.
func (m *Manager) setupFSCommands() {
	fsCmd := orpheus.NewCommand("fs", "File system helpers")
	fsCmd.Subcommand("stat", "Show existence, size and permissions", m.handleFSStat)
	fsCmd.Subcommand("ls", "List directory entries", m.handleFSList)
	m.app.AddCommand(fsCmd)
}

// setupUtilityCommands configures the array, bench and info commands.
func (m *Manager) setupUtilityCommands() {
	arrayCmd := orpheus.NewCommand("array", "Generic array operations")
	sortCmd := m.withFlags(arrayCmd.Subcommand("sort", "Sort integers in place", m.handleArraySort))
	sortCmd.AddBoolFlag("reverse", "r", false, "Sort in descending order")
	m.app.AddCommand(arrayCmd)

	benchCmd := m.withFlags(orpheus.NewCommand("bench", "Lock and atomic contention benchmark"))
	benchCmd.SetHandler(m.handleBench)
	benchCmd.AddIntFlag("goroutines", "g", 8, "Concurrent goroutines")
	benchCmd.AddIntFlag("iterations", "i", 10000, "Iterations per goroutine")
	m.app.AddCommand(benchCmd)

	infoCmd := m.withFlags(orpheus.NewCommand("info", "Build and runtime information"))
	infoCmd.SetHandler(m.handleInfo)
	infoCmd.AddBoolFlag("verbose", "v", false, "Verbose details")
	m.app.AddCommand(infoCmd)
}
