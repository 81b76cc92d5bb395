package registry

import (
	"math"
	"path/filepath"
	"sort"
	"strings"

	"scoped/internal/common/fsutil"
	"scoped/pkg/types"
)

// LoRAExtensions are the adapter weight formats listed by ScanLoRA.
var LoRAExtensions = []string{".safetensors", ".bin", ".pt"}

// ScanLoRA lists adapter weight files under <modelsDir>/lora, recursively.
// Results are sorted by folder then name. A missing directory yields an
// empty list.
func ScanLoRA(modelsDir string) ([]types.LoRAFileInfo, error) {
	files, err := fsutil.FindFiles(filepath.Join(modelsDir, "lora"), LoRAExtensions...)
	if err != nil {
		return nil, err
	}
	out := make([]types.LoRAFileInfo, 0, len(files))
	for _, f := range files {
		folder := filepath.ToSlash(filepath.Dir(f.Rel))
		if folder == "." {
			folder = ""
		}
		base := filepath.Base(f.Path)
		out = append(out, types.LoRAFileInfo{
			Name:   strings.TrimSuffix(base, filepath.Ext(base)),
			Path:   f.Path,
			SizeMB: math.Round(float64(f.Size)/(1024*1024)*100) / 100,
			Folder: folder,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Folder != out[j].Folder {
			return out[i].Folder < out[j].Folder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
