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

// vellumc compiles a single source file into a loadable binary image.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"vellum/compile"
)

func main() {
	var output string
	var printIR bool

	cmd := &cobra.Command{
		Use:   "vellumc <source.vlm>",
		Short: "Compile a vellum source file into a binary image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			if output == "" {
				output = source + ".img"
			}

			result, sink, err := compile.CompileFile(source)
			if err != nil {
				if sink != nil {
					sink.Print(os.Stderr)
				}
				return err
			}

			if printIR {
				fmt.Println(result.Program.String())
			}

			if err := os.WriteFile(output, result.Image, 0644); err != nil {
				return fmt.Errorf("vellumc: writing %s: %w", output, err)
			}
			fmt.Printf("Compiled %s -> %s (%d bytes)\n", source, output, len(result.Image))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output image path (default: <source>.img)")
	cmd.Flags().BoolVar(&printIR, "print-ir", false, "print the generated assembly IR to stdout")

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
