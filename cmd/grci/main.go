// Command grci compiles an HDL source file and drives the named
// top-level module for a number of clock cycles, printing its
// outputs and optionally a per-step trace — a thin demonstration
// harness over the grci library; all compiler and simulator logic
// lives in the packages it calls.
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"grci"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "grci",
		Short: "Compile and simulate a small gate-level HDL",
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var cycles int
	var pokes []string
	var trace bool

	cmd := &cobra.Command{
		Use:   "run <file.hdl> <top-module>",
		Short: "Compile file.hdl and step top-module for a number of cycles",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModule(args[0], args[1], cycles, pokes, trace)
		},
	}
	cmd.Flags().IntVar(&cycles, "cycles", 1, "number of full clock cycles to run")
	cmd.Flags().StringArrayVar(&pokes, "poke", nil, "label.bit=0|1 or label=value, applied once before the first cycle")
	cmd.Flags().BoolVar(&trace, "trace", false, "print every output after each half-cycle")
	return cmd
}

func runModule(path, top string, cycles int, pokes []string, trace bool) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	c := grci.NewCompiler()
	defer c.Close()
	if err := c.CompileSource(src); err != nil {
		return fmt.Errorf("compiling %s: %w", path, err)
	}

	m, err := c.NewModule(top)
	if err != nil {
		return fmt.Errorf("instantiating %q: %w", top, err)
	}
	defer m.Close()

	for _, p := range pokes {
		if err := applyPoke(m, p); err != nil {
			return fmt.Errorf("--poke %q: %w", p, err)
		}
	}

	logger := log.New(os.Stdout, "", 0)
	for i := 0; i < cycles; i++ {
		for half := 0; half < 2; half++ {
			clk := m.Step()
			if trace {
				logger.Printf("cycle %d half %d: clock=%v outputs=%s", i, half, clk, formatOutputs(m))
			}
		}
	}

	logger.Printf("final outputs: %s", formatOutputs(m))
	return nil
}

// applyPoke writes into a labeled submodule's register or RAM before
// the first Step, in one of two forms:
//
//	label.bit=0|1     set one register bit
//	label=0xHHHH      poke a 16-bit RAM word at address 0 (a
//	                  single-word preload; no other RAM address can
//	                  be poked from the command line)
func applyPoke(m *grci.Module, spec string) error {
	name, rhs, ok := strings.Cut(spec, "=")
	if !ok {
		return fmt.Errorf("expected label[.bit]=value")
	}
	value, err := strconv.ParseUint(strings.TrimPrefix(rhs, "0x"), hexOrDec(rhs), 64)
	if err != nil {
		return fmt.Errorf("bad value %q: %w", rhs, err)
	}

	label, bitStr, hasBit := strings.Cut(name, ".")
	if hasBit {
		bit, err := strconv.Atoi(bitStr)
		if err != nil {
			return fmt.Errorf("bad bit index %q: %w", bitStr, err)
		}
		reg := m.Submodule(label)
		if reg == nil {
			return fmt.Errorf("no register submodule named %q", label)
		}
		reg.SetBit(bit, value != 0)
		return nil
	}

	ram := m.Ram(label)
	if ram == nil {
		return fmt.Errorf("no RAM submodule named %q", label)
	}
	ram.Poke16(0, uint16(value))
	return nil
}

func hexOrDec(s string) int {
	if strings.HasPrefix(s, "0x") {
		return 16
	}
	return 10
}

func formatOutputs(m *grci.Module) string {
	var b strings.Builder
	for i := 0; i < m.OutputCount(); i++ {
		if m.Output(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}
