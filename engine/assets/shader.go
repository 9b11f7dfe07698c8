package assets

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

const spirvMagic = 0x07230203

// LoadShader reads a compiled SPIR-V module name.spv from dir.
func LoadShader(dir, name string) ([]byte, error) {
	path := filepath.Join(dir, name+".spv")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read shader %s: %w", name, err)
	}
	if len(data) < 4 || len(data)%4 != 0 {
		return nil, fmt.Errorf("shader %s: %d bytes is not a SPIR-V module", name, len(data))
	}
	if binary.LittleEndian.Uint32(data) != spirvMagic {
		return nil, fmt.Errorf("shader %s: bad SPIR-V magic", name)
	}
	return data, nil
}
