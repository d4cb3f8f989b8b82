//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
var Default = Check

// Check runs vet and the test suite
func Check() error {
	mg.SerialDeps(Vet, Test)
	fmt.Println("All checks passed")
	return nil
}

func Vet() error {
	fmt.Println("Running go vet...")
	return run("go", "vet", "./...")
}

func Test() error {
	fmt.Println("Running tests...")
	return run("go", "test", "./...")
}

// Cover runs the tests with a coverage profile written to coverage.out
func Cover() error {
	fmt.Println("Running tests with coverage...")
	if err := run("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return run("go", "tool", "cover", "-func=coverage.out")
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
