//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Engine compiles the shaders and runs lantern with lantern.toml.
func (Run) Engine() error {
	if err := buildShaders(); err != nil {
		return err
	}
	fmt.Println("Run engine...")
	if _, err := executeCmd("go", withArgs("run", ".", "lantern.toml"), withStream()); err != nil {
		return err
	}
	return nil
}

// Test runs the package tests. None of them need a GPU.
func (Run) Test() error {
	_, err := executeCmd("go", withArgs("test", "./..."), withStream())
	return err
}
