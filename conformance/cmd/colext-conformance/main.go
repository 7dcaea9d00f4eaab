// © Copyright 2026, the colext authors
// SPDX-License-Identifier: Apache-2.0

// Runs the conformance suite against a plugin shared object, or against
// the built-in reference library when no path is given.
//
//	colext-conformance [plugin.so]
package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/colext/colext"
	"github.com/colext/colext/conformance"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	reg := colext.NewRegistry(colext.WithLogger(logger))

	location := "builtin"
	if len(os.Args) > 1 {
		location = os.Args[1]
	} else {
		reg.RegisterLibrary("builtin", conformance.Library())
	}

	failures := conformance.RunAll(reg, location)

	passed := 0
	for _, c := range conformance.Checks() {
		if _, failed := failures[c.Name]; !failed {
			passed++
			fmt.Printf("PASS %s\n", c.Name)
		}
	}

	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("FAIL %s: %v\n", name, failures[name])
	}

	fmt.Printf("%d/%d checks passed\n", passed, passed+len(failures))
	if len(failures) > 0 {
		os.Exit(1)
	}
}
