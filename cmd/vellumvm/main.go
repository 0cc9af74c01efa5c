// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// vellumvm loads and runs a binary image produced by vellumc.
package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"vellum/isa"
	"vellum/vm"
)

var debugCategoryNames = map[string]vm.DebugCategory{
	"cpu":          vm.DebugCPU,
	"args":         vm.DebugArgs,
	"mem":          vm.DebugMem,
	"reg":          vm.DebugReg,
	"zflag":        vm.DebugZFlag,
	"conditionals": vm.DebugConditionals,
	"errs":         vm.DebugErrs,
}

func main() {
	var outPath, inPath string
	var debugFlags []string
	var haltOnNop bool

	cmd := &cobra.Command{
		Use:   "vellumvm <image>",
		Short: "Run a vellum binary image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("vellumvm: %w", err)
			}
			if len(data) < isa.HeaderSize {
				return fmt.Errorf("vellumvm: image too small to contain a header")
			}

			bus := vm.NewBus(vm.NewDram())
			core := vm.NewCore(bus)

			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("vellumvm: opening -o %s: %w", outPath, err)
				}
				defer f.Close()
				core.Out = f
			}
			if inPath != "" {
				f, err := os.Open(inPath)
				if err != nil {
					return fmt.Errorf("vellumvm: opening -i %s: %w", inPath, err)
				}
				defer f.Close()
				core.In = f
			}

			for _, name := range debugFlags {
				cat, ok := debugCategoryNames[name]
				if !ok {
					return fmt.Errorf("vellumvm: unknown debug category %q", name)
				}
				core.Debug[cat] = true
			}

			core.Reset()
			bus.LoadImage(data)

			entryPoint := binary.LittleEndian.Uint64(data[0:8])
			interruptHandler := binary.LittleEndian.Uint64(data[8:16])
			core.RegSet(vm.RegPc, entryPoint)

			exec := vm.NewExecutor(core, interruptHandler)
			exec.HaltOnNop = haltOnNop
			exec.Run()

			if code := core.ErrorCode(); code != isa.ErrOK {
				return fmt.Errorf("vellumvm: halted with error %s (ret=0x%x)", code, core.Reg(vm.RegRet))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "output", "o", "", "redirect the program's stdout to a file")
	cmd.Flags().StringVarP(&inPath, "input", "i", "", "read input from a file instead of stdin")
	cmd.Flags().StringSliceVar(&debugFlags, "debug", nil, "debug categories: cpu,args,mem,reg,zflag,conditionals,errs")
	cmd.Flags().BoolVar(&haltOnNop, "halt-on-nop", true, "halt execution on a nop instruction")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
