// Package main implements ldtdump, a debugging tool that allocates
// descriptor blocks for the requested sizes and prints the resulting
// table layout. It can also explain a raw 8-byte descriptor given as hex.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/retroenv/retrogolib/log"

	"github.com/compat16/ldtkit/internal/format"
	"github.com/compat16/ldtkit/internal/linmem"
	"github.com/compat16/ldtkit/ldt"
	"github.com/compat16/ldtkit/ldt/mapper"
)

var (
	version = "dev"
	commit  = ""
)

const defaultArenaSize = 1 << 24

func main() {
	args := os.Args[1:]
	debugMode := false
	codeFlags := false

	specs := make([]string, 0, len(args))
	for _, arg := range args {
		switch arg {
		case "--debug", "-d":
			debugMode = true
		case "--code", "-c":
			codeFlags = true
		case "--version", "-v":
			fmt.Printf("ldtdump %s", version)
			if commit != "" {
				fmt.Printf(" (%s)", commit)
			}
			fmt.Println()
			return
		case "--help", "-h":
			printUsage()
			return
		default:
			specs = append(specs, arg)
		}
	}

	logger := createLogger(debugMode)
	if len(specs) == 0 {
		printUsage()
		os.Exit(1)
	}

	if err := run(logger, specs, codeFlags); err != nil {
		logger.Fatal("dump failed", log.Err(err))
	}
}

func createLogger(debug bool) *log.Logger {
	cfg := log.DefaultConfig()
	if debug {
		cfg.Level = log.DebugLevel
	}
	return log.NewWithConfig(cfg)
}

func run(logger *log.Logger, specs []string, codeFlags bool) error {
	arena, err := linmem.New(defaultArenaSize)
	if err != nil {
		return fmt.Errorf("creating arena: %w", err)
	}
	defer func() {
		if err := arena.Close(); err != nil {
			logger.Error("closing arena", log.Err(err))
		}
	}()

	tab := ldt.NewTable()
	flags := format.FlagsData
	if codeFlags {
		flags = format.FlagsCode
	}

	allocated := 0
	for _, spec := range specs {
		if raw, ok := strings.CutPrefix(spec, "raw="); ok {
			if err := explainRaw(raw); err != nil {
				return err
			}
			continue
		}

		size, err := parseSize(spec)
		if err != nil {
			return err
		}
		base, err := arena.Alloc(size)
		if err != nil {
			return fmt.Errorf("allocating %d arena bytes: %w", size, err)
		}
		sel := tab.AllocBlock(base, size, flags)
		if sel == 0 {
			return fmt.Errorf("descriptor table exhausted at size %d", size)
		}
		allocated++
		logger.Debug("allocated block",
			log.String("selector", fmt.Sprintf("%04x", uint16(sel))),
			log.String("base", fmt.Sprintf("%08x", base)),
			log.String("size", fmt.Sprintf("%#x", size)),
			log.Int("slots", tab.SpanCount(sel)))
	}

	if allocated > 0 {
		dumpTable(tab, mapper.New(tab, arena))
	}
	return nil
}

func parseSize(raw string) (uint32, error) {
	// Accepts decimal and 0x-prefixed hex.
	v, err := strconv.ParseUint(raw, 0, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid block size %q", raw)
	}
	return uint32(v), nil
}

// explainRaw decodes one raw descriptor from its 16-hex-digit memory image
// and prints its fields.
func explainRaw(raw string) error {
	b, err := hex.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("invalid descriptor hex %q: %w", raw, err)
	}
	d, err := format.Decode(b)
	if err != nil {
		return err
	}

	fmt.Printf("raw      % x\n", d.Encode(nil))
	fmt.Printf("base     %08x\n", d.Base())
	fmt.Printf("limit    %08x\n", d.Limit())
	fmt.Printf("type     %s\n", describeType(d))
	fmt.Printf("present  %v\n", d.Present())
	fmt.Printf("dpl      %d\n", d.DPL())
	return nil
}

func describeType(d format.Descriptor) string {
	if d.IsSystem() {
		return fmt.Sprintf("system (%#02x)", d.TypeBits())
	}
	kind := "data"
	if d.TypeBits()&0x08 != 0 {
		kind = "code"
	}
	if d.Flags()&format.Flag32Bit != 0 {
		kind += "32"
	}
	return kind
}

func dumpTable(tab *ldt.Table, m *mapper.Mapper) {
	fmt.Println("sel   base      limit     type  linear    raw")
	for i := ldt.FirstUsableIndex; i < ldt.TableSize; i++ {
		sel := ldt.FromIndex(i)
		d, err := tab.Entry(sel)
		if err != nil {
			continue
		}
		fmt.Printf("%04x  %08x  %08x  %-5s %08x  % x\n",
			uint16(sel), d.Base(), d.Limit(), describeType(d),
			m.Linear(sel.SegPtr(0)), d.Encode(nil))
	}
}

func printUsage() {
	fmt.Println("usage: ldtdump [options] size|raw=<hex>...")
	fmt.Println()
	fmt.Println("Allocates a descriptor block for every size given and prints")
	fmt.Println("the resulting table. Sizes can be decimal or 0x-prefixed hex.")
	fmt.Println("An argument of the form raw=<16 hex digits> is instead decoded")
	fmt.Println("as a raw descriptor and its fields printed.")
	fmt.Println()
	fmt.Println("options:")
	fmt.Println("  -c, --code     allocate code segments instead of data")
	fmt.Println("  -d, --debug    enable debug logging")
	fmt.Println("  -v, --version  print the version and exit")
}
