// SPDX-License-Identifier: AGPL-3.0-or-later
// M17Gateway - M17 digital-voice reflector gateway
// Copyright (C) 2026 M17Gateway contributors

// Package reflectordb loads and refreshes the list of known M17
// reflectors, combining a JSON host list with an optional legacy
// plain-text host list, and resolves a reflector name to its network
// address.
package reflectordb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
)

// nameLength is the fixed width a reflector name is truncated or
// padded to, matching the seven usable characters of an M17 callsign
// once the two-character module suffix is excluded.
const nameLength = 7

// ErrNoReflectors is returned by Load when combining the JSON source
// with the legacy hosts file yields no usable entries. A JSON source
// that cannot be opened or parsed produces a wrapped error of its own.
var ErrNoReflectors = errors.New("reflectordb: no reflectors loaded")

// Entry describes one reflector's resolved addresses.
type Entry struct {
	Name string
	IPv4 *net.UDPAddr
	IPv6 *net.UDPAddr
}

type jsonDocument struct {
	Reflectors []jsonReflector `json:"reflectors"`
}

type jsonReflector struct {
	Designator string `json:"designator"`
	Port       int    `json:"port"`
	IPv4       string `json:"ipv4"`
	IPv6       string `json:"ipv6"`
}

// Directory is the reloadable set of known reflectors.
type Directory struct {
	jsonPath  string
	hostsPath string

	mu         sync.RWMutex
	reflectors []*Entry

	reloadMillis uint
	elapsed      uint
}

// New creates a Directory that reads jsonPath as its primary source and
// hostsPath as a supplementary legacy text source. reloadMinutes of 0
// disables periodic reload; Clock is then a no-op.
func New(jsonPath, hostsPath string, reloadMinutes uint) *Directory {
	return &Directory{
		jsonPath:     jsonPath,
		hostsPath:    hostsPath,
		reloadMillis: reloadMinutes * 60 * 1000,
	}
}

// Load replaces the directory contents. The JSON source must parse and
// contain a "reflectors" array or Load fails; the legacy hosts file is
// optional and its absence only produces a warning log. Load also
// fails if, after combining both sources, no reflector could be
// resolved at all.
func (d *Directory) Load() error {
	jsonEntries, err := d.parseJSON()
	if err != nil {
		return fmt.Errorf("reflectordb: %w", err)
	}

	hostEntries := d.parseHosts()

	all := append(jsonEntries, hostEntries...)
	if len(all) == 0 {
		return ErrNoReflectors
	}

	d.mu.Lock()
	d.reflectors = all
	d.mu.Unlock()

	slog.Info("loaded reflector directory", "count", len(all))
	return nil
}

// Find looks up a reflector by name. The query is truncated or padded
// to nameLength characters, and the first matching entry wins.
func (d *Directory) Find(name string) *Entry {
	needle := fit(name)

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, e := range d.reflectors {
		if fit(e.Name) == needle {
			return e
		}
	}
	return nil
}

// Count returns the number of loaded reflectors.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.reflectors)
}

// Clock advances the reload timer by ms milliseconds, reloading the
// directory synchronously once the configured interval has elapsed. Reload
// failures are logged and leave the previous directory contents
// intact.
func (d *Directory) Clock(ms uint) {
	if d.reloadMillis == 0 {
		return
	}

	d.elapsed += ms
	if d.elapsed < d.reloadMillis {
		return
	}
	d.elapsed = 0

	if err := d.Load(); err != nil {
		slog.Warn("reflector directory reload failed, keeping previous list", "error", err)
	}
}

func fit(name string) string {
	if len(name) >= nameLength {
		return name[:nameLength]
	}
	return name + strings.Repeat(" ", nameLength-len(name))
}

func (d *Directory) parseJSON() ([]*Entry, error) {
	f, err := os.Open(d.jsonPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open JSON host list %s: %w", d.jsonPath, err)
	}
	defer f.Close()

	var doc jsonDocument
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return nil, fmt.Errorf("unable to parse JSON host list %s: %w", d.jsonPath, err)
	}

	entries := make([]*Entry, 0, len(doc.Reflectors))
	for _, r := range doc.Reflectors {
		var v4, v6 *net.UDPAddr
		if r.IPv4 != "" {
			if a, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(r.IPv4, strconv.Itoa(r.Port))); err == nil {
				v4 = a
			} else {
				slog.Warn("unable to resolve reflector address", "host", r.IPv4, "error", err)
			}
		}
		if r.IPv6 != "" {
			if a, err := net.ResolveUDPAddr("udp6", net.JoinHostPort(r.IPv6, strconv.Itoa(r.Port))); err == nil {
				v6 = a
			} else {
				slog.Warn("unable to resolve reflector address", "host", r.IPv6, "error", err)
			}
		}

		if v4 != nil || v6 != nil {
			entries = append(entries, &Entry{
				Name: "M17-" + r.Designator,
				IPv4: v4,
				IPv6: v6,
			})
		}
	}

	return entries, nil
}

func (d *Directory) parseHosts() []*Entry {
	if d.hostsPath == "" {
		return nil
	}

	f, err := os.Open(d.hostsPath)
	if err != nil {
		slog.Warn("unable to open legacy hosts file", "path", d.hostsPath, "error", err)
		return nil
	}
	defer f.Close()

	var entries []*Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		name := fit(fields[0])
		host := fields[1]
		port, err := strconv.Atoi(fields[2])
		if err != nil {
			continue
		}

		addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			slog.Warn("unable to resolve the address", "host", host, "error", err)
			continue
		}

		entry := &Entry{Name: name}
		if addr.IP.To4() != nil {
			entry.IPv4 = addr
		} else {
			entry.IPv6 = addr
		}
		entries = append(entries, entry)
	}

	return entries
}
