// Command felix talks FEL/FES to an Allwinner SoC in USB recovery mode.
//
// Usage:
//
//	felix <command> [args...]
//
// Commands:
//
//	device_info
//	read     <address-hex> <length> <mode:fel|fes> [tags...]
//	write    <address-hex> <file> <mode:fel|fes> [tags...]
//	run      <address-hex> <mode:fel|fes>
//	storage  <on|off>
//	mbr      <file> [erase]
//	transmite <read|write> <address-hex> <length-or-file> <media:dram|log|physical>
//	request  <opcode-hex> <length>
//	mkconf
//	conf
//	version
//	help
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.jpl.nasa.gov/coyote/felix/fel"
	"github.jpl.nasa.gov/coyote/felix/util"
)

// Version is the version number, injected via ldflags with git build.
var Version = "dev"

func root() {
	str := `felix drives an Allwinner SoC's FEL/FES USB recovery protocol:
uploading DRAM initializers, programming the sunxi MBR, and reading back
device state, over libusb.

Usage:
	felix <command> [args...]

Commands:
	device_info
	read      <address-hex> <length> <mode:fel|fes> [tags...]
	write     <address-hex> <file> <mode:fel|fes> [tags...]
	run       <address-hex> <mode:fel|fes>
	storage   <on|off>
	mbr       <file> [erase]
	transmite <read|write> <address-hex> <length-or-file> <media:dram|log|physical>
	request   <opcode-hex> <length>
	mkconf
	conf
	version
	help`
	fmt.Println(str)
}

func help() {
	str := `felix is configured via felix.yml in the working directory. Keys not
present there fall back to built-in defaults. Run "felix mkconf" to write
out the defaults as a starting point.

Tags accepted by read/write are any of: dram mbr erase finish uboot boot0,
OR-combined. mode selects the opcode family: fel (ROM-resident) or fes
(post-DRAM, storage-aware).`
	fmt.Println(str)
}

func pversion() {
	fmt.Printf("felix version %v\n", Version)
}

func mkconf() {
	c := DefaultConfig()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := writeYAML(f, c); err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}
	if err := writeYAML(os.Stdout, c); err != nil {
		log.Fatal(err)
	}
}

func parseMode(s string) (fel.Mode, error) {
	switch strings.ToLower(s) {
	case "fel":
		return fel.ModeFEL, nil
	case "fes":
		return fel.ModeFES, nil
	default:
		return 0, fmt.Errorf("unknown mode %q, want fel or fes", s)
	}
}

func parseMedia(s string) (fel.MediaIndex, error) {
	switch strings.ToLower(s) {
	case "dram":
		return fel.MediaDRAM, nil
	case "log":
		return fel.MediaPhysicalLog, nil
	case "physical":
		return fel.MediaPhysical, nil
	default:
		return 0, fmt.Errorf("unknown media %q, want dram, log, or physical", s)
	}
}

func parseTags(args []string) (fel.Tag, error) {
	named := map[string]fel.Tag{
		"dram":   fel.TagDRAM,
		"mbr":    fel.TagMBR,
		"erase":  fel.TagErase,
		"finish": fel.TagFinish,
		"uboot":  fel.TagUBoot,
		"boot0":  fel.TagBoot0,
	}
	var tags []fel.Tag
	var errs []error
	for _, a := range args {
		t, ok := named[strings.ToLower(a)]
		if !ok {
			errs = append(errs, fmt.Errorf("unknown tag %q", a))
			continue
		}
		tags = append(tags, t)
	}
	if err := util.MergeErrors(errs); err != nil {
		return fel.TagNone, err
	}
	return fel.OrTags(tags...), nil
}

func parseHexAddr(s string) (uint32, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad hex address %q: %w", s, err)
	}
	return uint32(v), nil
}

func openSession(c Config) (*fel.Session, func(error)) {
	reporter, finish := newCLIReporter(c.NoColor, c.Verbose)
	opts := []fel.Option{fel.WithReporter(reporter)}
	if c.OpenRetries > 0 {
		opts = append(opts, fel.WithOpenRetry(true))
	}
	s, err := fel.Open(opts...)
	if err != nil {
		log.Fatalf("open device: %v", err)
	}
	return s, finish
}

func cmdDeviceInfo(c Config, args []string) {
	s, finish := openSession(c)
	defer s.Close()
	vdr, err := s.DeviceInfo()
	finish(err)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("board=%#x firmware=%#x mode=%v data_flag=%d data_length=%d data_start=%#x\n",
		vdr.Board, vdr.Firmware, vdr.Mode, vdr.DataFlag, vdr.DataLength, vdr.DataStartAddress)
}

func cmdRead(c Config, args []string) {
	if len(args) < 3 {
		log.Fatal("usage: felix read <address-hex> <length> <mode:fel|fes> [tags...]")
	}
	addr, err := parseHexAddr(args[0])
	if err != nil {
		log.Fatal(err)
	}
	length, err := strconv.Atoi(args[1])
	if err != nil {
		log.Fatalf("bad length %q: %v", args[1], err)
	}
	mode, err := parseMode(args[2])
	if err != nil {
		log.Fatal(err)
	}
	tags, err := parseTags(args[3:])
	if err != nil {
		log.Fatal(err)
	}
	s, finish := openSession(c)
	defer s.Close()
	data, err := s.Read(addr, length, tags, mode)
	finish(err)
	if c.Verbose {
		traceFrame("read response", data)
	}
	if err != nil {
		log.Fatal(err)
	}
	os.Stdout.Write(data)
}

func cmdWrite(c Config, args []string) {
	if len(args) < 3 {
		log.Fatal("usage: felix write <address-hex> <file> <mode:fel|fes> [tags...]")
	}
	addr, err := parseHexAddr(args[0])
	if err != nil {
		log.Fatal(err)
	}
	payload, err := os.ReadFile(args[1])
	if err != nil {
		log.Fatal(err)
	}
	mode, err := parseMode(args[2])
	if err != nil {
		log.Fatal(err)
	}
	tags, err := parseTags(args[3:])
	if err != nil {
		log.Fatal(err)
	}
	if c.Verbose {
		traceFrame("write payload", payload)
	}
	s, finish := openSession(c)
	defer s.Close()
	err = s.Write(addr, payload, tags, mode)
	finish(err)
	if err != nil {
		log.Fatal(err)
	}
}

func cmdRun(c Config, args []string) {
	if len(args) < 2 {
		log.Fatal("usage: felix run <address-hex> <mode:fel|fes>")
	}
	addr, err := parseHexAddr(args[0])
	if err != nil {
		log.Fatal(err)
	}
	mode, err := parseMode(args[1])
	if err != nil {
		log.Fatal(err)
	}
	s, finish := openSession(c)
	defer s.Close()
	err = s.Run(addr, mode)
	finish(err)
	if err != nil {
		log.Fatal(err)
	}
}

func cmdStorage(c Config, args []string) {
	if len(args) < 1 {
		log.Fatal("usage: felix storage <on|off>")
	}
	var on bool
	switch strings.ToLower(args[0]) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		log.Fatalf("unknown storage state %q, want on or off", args[0])
	}
	s, finish := openSession(c)
	defer s.Close()
	err := s.SetStorageState(on)
	finish(err)
	if err != nil {
		log.Fatal(err)
	}
}

func cmdMBR(c Config, args []string) {
	if len(args) < 1 {
		log.Fatal("usage: felix mbr <file> [erase]")
	}
	mbr, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatal(err)
	}
	erase := len(args) > 1 && strings.EqualFold(args[1], "erase")
	if c.Verbose {
		traceFrame("mbr image", mbr)
	}
	s, finish := openSession(c)
	defer s.Close()
	vsr, err := s.WriteMBR(mbr, erase)
	finish(err)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("flags=%#x crc=%d last_error=%d\n", vsr.Flags, vsr.CRC, vsr.LastError)
}

func cmdTransmite(c Config, args []string) {
	if len(args) < 4 {
		log.Fatal("usage: felix transmite <read|write> <address-hex> <length-or-file> <media:dram|log|physical>")
	}
	direction := strings.ToLower(args[0])
	addr, err := parseHexAddr(args[1])
	if err != nil {
		log.Fatal(err)
	}
	media, err := parseMedia(args[3])
	if err != nil {
		log.Fatal(err)
	}
	s, finish := openSession(c)
	defer s.Close()
	switch direction {
	case "read":
		length, err := strconv.Atoi(args[2])
		if err != nil {
			log.Fatalf("bad length %q: %v", args[2], err)
		}
		data, err := s.TransmiteRead(addr, length, media)
		finish(err)
		if c.Verbose {
			traceFrame("transmite read response", data)
		}
		if err != nil {
			log.Fatal(err)
		}
		os.Stdout.Write(data)
	case "write":
		payload, err := os.ReadFile(args[2])
		if err != nil {
			log.Fatal(err)
		}
		if c.Verbose {
			traceFrame("transmite write payload", payload)
		}
		err = s.TransmiteWrite(addr, payload, media)
		finish(err)
		if err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("unknown transmite direction %q, want read or write", direction)
	}
}

// cmdRequest is a raw debug action: it sends a bare AWFELStandardRequest
// with the given opcode, reads back a fixed-length reply, and reports the
// trailing status, tracing the reply when --verbose is set.
func cmdRequest(c Config, args []string) {
	if len(args) < 2 {
		log.Fatal("usage: felix request <opcode-hex> <length>")
	}
	opcode, err := strconv.ParseUint(strings.TrimPrefix(args[0], "0x"), 16, 16)
	if err != nil {
		log.Fatalf("bad opcode %q: %v", args[0], err)
	}
	length, err := strconv.Atoi(args[1])
	if err != nil {
		log.Fatalf("bad length %q: %v", args[1], err)
	}
	s, finish := openSession(c)
	defer s.Close()
	data, err := s.DebugRequest(uint16(opcode), length)
	finish(err)
	if c.Verbose {
		traceFrame("request response", data)
	}
	if err != nil {
		log.Fatal(err)
	}
	os.Stdout.Write(data)
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	cmd := strings.ToLower(args[1])
	rest := args[2:]

	switch cmd {
	case "help":
		help()
		return
	case "version":
		pversion()
		return
	case "mkconf":
		mkconf()
		return
	}

	c, err := loadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	switch cmd {
	case "conf":
		printconf()
	case "device_info":
		cmdDeviceInfo(c, rest)
	case "read":
		cmdRead(c, rest)
	case "write":
		cmdWrite(c, rest)
	case "run":
		cmdRun(c, rest)
	case "storage":
		cmdStorage(c, rest)
	case "mbr":
		cmdMBR(c, rest)
	case "transmite":
		cmdTransmite(c, rest)
	case "request":
		cmdRequest(c, rest)
	default:
		log.Fatalf("unknown command %q", cmd)
	}
}
