package types

import "strings"

// A CPU is a Mach-O cpu type.
type CPU uint32

const (
	cpuArch64   = 0x01000000 // 64 bit ABI
	cpuArch6432 = 0x02000000 // ABI for 64-bit hardware with 32-bit types; LP32
)

const (
	CPUVax     CPU = 1
	CPUMC680x0 CPU = 6
	CPU386     CPU = 7
	CPUAmd64   CPU = CPU386 | cpuArch64
	CPUMC98000 CPU = 10
	CPUHppa    CPU = 11
	CPUArm     CPU = 12
	CPUArm64   CPU = CPUArm | cpuArch64
	CPUArm6432 CPU = CPUArm | cpuArch6432
	CPUMC88000 CPU = 13
	CPUSparc   CPU = 14
	CPUI860    CPU = 15
	CPUPpc     CPU = 18
	CPUPpc64   CPU = CPUPpc | cpuArch64
)

var cpuStrings = []IntName{
	{uint32(CPUVax), "VAX"},
	{uint32(CPUMC680x0), "MC680x0"},
	{uint32(CPU386), "i386"},
	{uint32(CPUAmd64), "Amd64"},
	{uint32(CPUMC98000), "MC98000"},
	{uint32(CPUHppa), "HPPA"},
	{uint32(CPUArm), "ARM"},
	{uint32(CPUArm64), "AARCH64"},
	{uint32(CPUArm6432), "ARM64_32"},
	{uint32(CPUMC88000), "MC88000"},
	{uint32(CPUSparc), "SPARC"},
	{uint32(CPUI860), "i860"},
	{uint32(CPUPpc), "PowerPC"},
	{uint32(CPUPpc64), "PowerPC 64"},
}

func (i CPU) String() string   { return StringName(uint32(i), cpuStrings, false) }
func (i CPU) GoString() string { return StringName(uint32(i), cpuStrings, true) }

// Is64Bit reports whether the cpu type carries the 64 bit ABI bit.
func (i CPU) Is64Bit() bool { return i&cpuArch64 != 0 }

type CPUSubtype uint32

// The top byte of a subtype holds capability bits, not the subtype proper.
const (
	CPUSubtypeMask  CPUSubtype = 0xff000000
	CPUSubtypeLib64 CPUSubtype = 0x80000000 // 64 bit libraries
)

// Caps returns the capability bits of a raw subtype.
func (st CPUSubtype) Caps() CPUSubtype { return st & CPUSubtypeMask }

// Masked returns st with the capability bits cleared.
func (st CPUSubtype) Masked() CPUSubtype { return st &^ CPUSubtypeMask }

// X86 subtypes
const (
	CPUSubtypeX86All   CPUSubtype = 3
	CPUSubtypeX8664All CPUSubtype = 3
	CPUSubtypeX86Arch1 CPUSubtype = 4
	CPUSubtypeX86_64H  CPUSubtype = 8
)

// ARM subtypes
const (
	CPUSubtypeArmAll    CPUSubtype = 0
	CPUSubtypeArmV4T    CPUSubtype = 5
	CPUSubtypeArmV6     CPUSubtype = 6
	CPUSubtypeArmV5Tej  CPUSubtype = 7
	CPUSubtypeArmXscale CPUSubtype = 8
	CPUSubtypeArmV7     CPUSubtype = 9
	CPUSubtypeArmV7F    CPUSubtype = 10
	CPUSubtypeArmV7S    CPUSubtype = 11
	CPUSubtypeArmV7K    CPUSubtype = 12
	CPUSubtypeArmV8     CPUSubtype = 13
	CPUSubtypeArmV6M    CPUSubtype = 14
	CPUSubtypeArmV7M    CPUSubtype = 15
	CPUSubtypeArmV7Em   CPUSubtype = 16
	CPUSubtypeArmV8M    CPUSubtype = 17
)

// ARM64 subtypes
const (
	CPUSubtypeArm64All CPUSubtype = 0
	CPUSubtypeArm64V8  CPUSubtype = 1
	CPUSubtypeArm64E   CPUSubtype = 2
)

// PowerPC subtypes
const (
	CPUSubtypePpcAll CPUSubtype = 0
	CPUSubtypePpc970 CPUSubtype = 100
)

var cpuSubtypeX86Strings = []IntName{
	{uint32(CPUSubtypeX8664All), "x86_64"},
	{uint32(CPUSubtypeX86Arch1), "x86 Arch1"},
	{uint32(CPUSubtypeX86_64H), "x86_64 (Haswell)"},
}
var cpuSubtypeArmStrings = []IntName{
	{uint32(CPUSubtypeArmAll), "ArmAll"},
	{uint32(CPUSubtypeArmV4T), "ArmV4T"},
	{uint32(CPUSubtypeArmV6), "ArmV6"},
	{uint32(CPUSubtypeArmV5Tej), "ArmV5Tej"},
	{uint32(CPUSubtypeArmXscale), "ArmXscale"},
	{uint32(CPUSubtypeArmV7), "ArmV7"},
	{uint32(CPUSubtypeArmV7F), "ArmV7F"},
	{uint32(CPUSubtypeArmV7S), "ArmV7S"},
	{uint32(CPUSubtypeArmV7K), "ArmV7K"},
	{uint32(CPUSubtypeArmV8), "ArmV8"},
	{uint32(CPUSubtypeArmV6M), "ArmV6M"},
	{uint32(CPUSubtypeArmV7M), "ArmV7M"},
	{uint32(CPUSubtypeArmV7Em), "ArmV7Em"},
	{uint32(CPUSubtypeArmV8M), "ArmV8M"},
}
var cpuSubtypeArm64Strings = []IntName{
	{uint32(CPUSubtypeArm64All), "ARM64"},
	{uint32(CPUSubtypeArm64V8), "ARM64 (ARMv8)"},
	{uint32(CPUSubtypeArm64E), "ARM64e (ARMv8.3)"},
}

func (st CPUSubtype) String(cpu CPU) string {
	st = st.Masked()
	switch cpu {
	case CPU386, CPUAmd64:
		return StringName(uint32(st), cpuSubtypeX86Strings, false)
	case CPUArm:
		return StringName(uint32(st), cpuSubtypeArmStrings, false)
	case CPUArm64:
		return StringName(uint32(st), cpuSubtypeArm64Strings, false)
	}
	return StringName(uint32(st), nil, false)
}

func (st CPUSubtype) GoString(cpu CPU) string {
	st = st.Masked()
	switch cpu {
	case CPU386, CPUAmd64:
		return StringName(uint32(st), cpuSubtypeX86Strings, true)
	case CPUArm:
		return StringName(uint32(st), cpuSubtypeArmStrings, true)
	case CPUArm64:
		return StringName(uint32(st), cpuSubtypeArm64Strings, true)
	}
	return StringName(uint32(st), nil, true)
}

// An Arch is a cpu type/subtype pair as named by lipo(1) and the -arch flag.
type Arch struct {
	Name   string
	CPU    CPU
	SubCPU CPUSubtype
}

var archs = []Arch{
	{"i386", CPU386, CPUSubtypeX86All},
	{"x86_64", CPUAmd64, CPUSubtypeX8664All},
	{"x86_64h", CPUAmd64, CPUSubtypeX86_64H},
	{"arm", CPUArm, CPUSubtypeArmAll},
	{"armv4t", CPUArm, CPUSubtypeArmV4T},
	{"armv5", CPUArm, CPUSubtypeArmV5Tej},
	{"armv6", CPUArm, CPUSubtypeArmV6},
	{"armv6m", CPUArm, CPUSubtypeArmV6M},
	{"armv7", CPUArm, CPUSubtypeArmV7},
	{"armv7f", CPUArm, CPUSubtypeArmV7F},
	{"armv7s", CPUArm, CPUSubtypeArmV7S},
	{"armv7k", CPUArm, CPUSubtypeArmV7K},
	{"armv7m", CPUArm, CPUSubtypeArmV7M},
	{"armv7em", CPUArm, CPUSubtypeArmV7Em},
	{"armv8", CPUArm, CPUSubtypeArmV8},
	{"arm64", CPUArm64, CPUSubtypeArm64All},
	{"arm64v8", CPUArm64, CPUSubtypeArm64V8},
	{"arm64e", CPUArm64, CPUSubtypeArm64E},
	{"arm64_32", CPUArm6432, CPUSubtypeArm64All},
	{"ppc", CPUPpc, CPUSubtypePpcAll},
	{"ppc970", CPUPpc, CPUSubtypePpc970},
	{"ppc64", CPUPpc64, CPUSubtypePpcAll},
}

// LookupArch returns the cpu pair for a lipo style arch name.
func LookupArch(name string) (Arch, bool) {
	for _, a := range archs {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return Arch{}, false
}

// ArchName returns the lipo style name of a cpu pair, or "" if it has none.
// Capability bits in sub are ignored.
func ArchName(cpu CPU, sub CPUSubtype) string {
	sub = sub.Masked()
	for _, a := range archs {
		if a.CPU == cpu && a.SubCPU == sub {
			return a.Name
		}
	}
	return ""
}
