package types

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type VmProtection int32

func (v VmProtection) Read() bool {
	return (v & 0x01) != 0
}

func (v VmProtection) Write() bool {
	return (v & 0x02) != 0
}

func (v VmProtection) Execute() bool {
	return (v & 0x04) != 0
}

func (v VmProtection) String() string {
	var protStr string
	if v.Read() {
		protStr += "r"
	} else {
		protStr += "-"
	}
	if v.Write() {
		protStr += "w"
	} else {
		protStr += "-"
	}
	if v.Execute() {
		protStr += "x"
	} else {
		protStr += "-"
	}
	return protStr
}

// UUID is a macho uuid object
type UUID [16]byte

func (u UUID) String() string {
	return strings.ToUpper(uuid.UUID(u).String())
}

// UUID converts u for comparison against uuids from other sources (dSYMs, crash logs).
func (u UUID) UUID() uuid.UUID { return uuid.UUID(u) }

func (u UUID) IsNull() bool { return u == UUID{} }

// ParseUUID accepts any form understood by uuid.Parse, case-insensitive.
func ParseUUID(s string) (UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UUID{}, err
	}
	return UUID(id), nil
}

// Platform is a macho platform object
type Platform uint32

const (
	Unknown           Platform = 0
	MacOS             Platform = 1  // PLATFORM_MACOS
	IOS               Platform = 2  // PLATFORM_IOS
	TvOS              Platform = 3  // PLATFORM_TVOS
	WatchOS           Platform = 4  // PLATFORM_WATCHOS
	BridgeOS          Platform = 5  // PLATFORM_BRIDGEOS
	MacCatalyst       Platform = 6  // PLATFORM_MACCATALYST
	IOSSimulator      Platform = 7  // PLATFORM_IOSSIMULATOR
	TvOSSimulator     Platform = 8  // PLATFORM_TVOSSIMULATOR
	WatchOSSimulator  Platform = 9  // PLATFORM_WATCHOSSIMULATOR
	DriverKit         Platform = 10 // PLATFORM_DRIVERKIT
	VisionOS          Platform = 11 // PLATFORM_XROS
	VisionOSSimulator Platform = 12 // PLATFORM_XROS_SIMULATOR
)

var platformStrings = []IntName{
	{uint32(Unknown), "unknown"},
	{uint32(MacOS), "macOS"},
	{uint32(IOS), "iOS"},
	{uint32(TvOS), "tvOS"},
	{uint32(WatchOS), "watchOS"},
	{uint32(BridgeOS), "bridgeOS"},
	{uint32(MacCatalyst), "macCatalyst"},
	{uint32(IOSSimulator), "iOS Simulator"},
	{uint32(TvOSSimulator), "tvOS Simulator"},
	{uint32(WatchOSSimulator), "watchOS Simulator"},
	{uint32(DriverKit), "DriverKit"},
	{uint32(VisionOS), "visionOS"},
	{uint32(VisionOSSimulator), "visionOS Simulator"},
}

func (p Platform) String() string { return StringName(uint32(p), platformStrings, false) }

type Tool uint32

const (
	Clang Tool = 1 // TOOL_CLANG
	Swift Tool = 2 // TOOL_SWIFT
	LD    Tool = 3 // TOOL_LD
	LLD   Tool = 4 // TOOL_LLD
)

var toolStrings = []IntName{
	{uint32(Clang), "clang"},
	{uint32(Swift), "swift"},
	{uint32(LD), "ld"},
	{uint32(LLD), "lld"},
}

func (t Tool) String() string { return StringName(uint32(t), toolStrings, false) }

// Version is a packed xxxx.yy.zz version number.
type Version uint32

func (v Version) String() string {
	s := make([]byte, 4)
	binary.BigEndian.PutUint32(s, uint32(v))
	return fmt.Sprintf("%d.%d.%d", binary.BigEndian.Uint16(s[:2]), s[2], s[3])
}

// SrcVersion is a packed a.b.c.d.e version, 24 bits for a and 10 for the rest.
type SrcVersion uint64

func (sv SrcVersion) String() string {
	a := sv >> 40
	b := (sv >> 30) & 0x3ff
	c := (sv >> 20) & 0x3ff
	d := (sv >> 10) & 0x3ff
	e := sv & 0x3ff
	return fmt.Sprintf("%d.%d.%d.%d.%d", a, b, c, d, e)
}

type BuildToolVersion struct {
	Tool    Tool    /* enum for the tool */
	Version Version /* version number of the tool */
}

func (b BuildToolVersion) String() string {
	return fmt.Sprintf("%s (%s)", b.Tool, b.Version)
}
