// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Argument parsing for individual commands.
package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgParser splits a command's arguments into flags and positionals.
//
// Flags are written --name value, --name=value or -n value. Names listed as
// boolean never consume the following argument. Everything after "--" is
// positional.
type ArgParser struct {
	positional []string
	flags      map[string][]string
}

// NewArgParser parses args. boolFlags lists flag names (without dashes)
// that take no value.
func NewArgParser(args []string, boolFlags ...string) *ArgParser {
	bools := make(map[string]bool, len(boolFlags))
	for _, b := range boolFlags {
		bools[b] = true
	}

	p := &ArgParser{flags: make(map[string][]string)}
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			p.positional = append(p.positional, args[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			p.positional = append(p.positional, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if eq := strings.IndexByte(name, '='); eq >= 0 {
			p.flags[name[:eq]] = append(p.flags[name[:eq]], name[eq+1:])
			continue
		}
		if bools[name] {
			p.flags[name] = append(p.flags[name], "true")
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			p.flags[name] = append(p.flags[name], args[i])
			continue
		}
		p.flags[name] = append(p.flags[name], "")
	}
	return p
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.Positional(0)
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments starting at index.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return nil
	}
	return p.positional[index:]
}

// NArgs returns the number of positional arguments.
func (p *ArgParser) NArgs() int {
	return len(p.positional)
}

// HasFlag reports whether any of names was given.
func (p *ArgParser) HasFlag(names ...string) bool {
	for _, n := range names {
		if _, ok := p.flags[n]; ok {
			return true
		}
	}
	return false
}

// Flag returns the last value given for any of names, or "".
func (p *ArgParser) Flag(names ...string) string {
	for _, n := range names {
		if v := p.flags[n]; len(v) > 0 {
			return v[len(v)-1]
		}
	}
	return ""
}

// FlagOrDefault returns the flag value, or def when the flag is absent or
// empty.
func (p *ArgParser) FlagOrDefault(name, def string) string {
	if v := p.Flag(name); v != "" {
		return v
	}
	return def
}

// Flags returns every value given for any of names, in order. Use for
// repeatable flags such as --file.
func (p *ArgParser) Flags(names ...string) []string {
	var out []string
	for _, n := range names {
		out = append(out, p.flags[n]...)
	}
	return out
}

// FlagInt parses the flag as an integer, returning def when absent.
func (p *ArgParser) FlagInt(name string, def int) (int, error) {
	v := p.Flag(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, ErrInvalidFormat("--"+name, v, "an integer")
	}
	return n, nil
}

// BoolFlag reports whether the boolean flag was set. An explicit
// --name=false counts as unset.
func (p *ArgParser) BoolFlag(name string) bool {
	v, ok := p.flags[name]
	if !ok {
		return false
	}
	last := v[len(v)-1]
	if last == "" {
		return true
	}
	b, err := strconv.ParseBool(last)
	return err == nil && b
}

// String is for debugging.
func (p *ArgParser) String() string {
	return fmt.Sprintf("positional=%q flags=%v", p.positional, p.flags)
}
