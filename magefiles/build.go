//go:build mage

package main

import (
	"fmt"
	"path/filepath"

	"github.com/magefile/mage/mg"
)

const shaderDir = "assets/shaders"

type Build mg.Namespace

// Shaders compiles every GLSL stage in assets/shaders to name.stage.spv.
func (Build) Shaders() error {
	return buildShaders()
}

// Engine compiles the shaders and builds the lantern binary.
func (Build) Engine() error {
	mg.Deps(Build.Shaders)
	_, err := executeCmd("go", withArgs("build", "-o", "bin/lantern", "."), withStream())
	return err
}

func buildShaders() error {
	var sources []string
	for _, stage := range []string{"*.vert", "*.frag", "*.comp"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, stage))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		return fmt.Errorf("no shaders found in %s", shaderDir)
	}
	for _, src := range sources {
		args := withArgs("--target-env=vulkan1.3", "-I", shaderDir, src, "-o", src+".spv")
		if _, err := executeCmd("glslc", args, withStream()); err != nil {
			return err
		}
	}
	return nil
}
