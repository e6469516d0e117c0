package features

import (
	"fmt"
	"math"
	"strings"

	"github.com/saferwall/pe"
	"k8s.io/apimachinery/pkg/util/sets"
)

// suspiciousAPIs are imports commonly used by keystroke loggers. Names are
// matched after stripping the A/W charset suffix and a trailing "Ex".
var suspiciousAPIs = sets.New[string](
	"SetWindowsHookEx",
	"GetAsyncKeyState",
	"GetKeyState",
	"GetForegroundWindow",
	"GetWindowText",
	"FindWindow",
	"CreateFile",
	"WriteFile",
	"RegCreateKey",
	"RegSetValue",
)

var keyboardAPIs = sets.New[string]("GetAsyncKeyState", "GetKeyState")

type executableExtractor struct{}

func (executableExtractor) extract(src source) (feats map[string]float64, errs map[string]string) {
	defer func() {
		if r := recover(); r != nil {
			errs = map[string]string{"pe_error": fmt.Sprintf("panic while parsing: %v", r)}
		}
	}()
	opts := &pe.Options{Fast: false, SectionEntropy: true}

	var (
		f   *pe.File
		err error
	)
	if src.data != nil {
		f, err = pe.NewBytes(src.data, opts)
	} else {
		f, err = pe.New(src.path, opts)
	}
	if err != nil {
		return nil, map[string]string{"pe_error": err.Error()}
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		// Keep the headers and sections read before the failure.
		return headerFeatures(f), map[string]string{"pe_error": err.Error()}
	}
	return peFeatures(f), nil
}

// headerFeatures returns the NT header and section fields that have been
// parsed so far; it is safe on a partially parsed file.
func headerFeatures(f *pe.File) map[string]float64 {
	out := make(map[string]float64)

	if f.HasNTHdr {
		fh := f.NtHeader.FileHeader
		out["machine_type"] = float64(fh.Machine)
		out["characteristics"] = float64(fh.Characteristics)

		switch oh := f.NtHeader.OptionalHeader.(type) {
		case pe.ImageOptionalHeader32:
			out["image_base"] = float64(oh.ImageBase)
			out["entry_point"] = float64(oh.AddressOfEntryPoint)
			out["subsystem"] = float64(oh.Subsystem)
		case pe.ImageOptionalHeader64:
			out["image_base"] = float64(oh.ImageBase)
			out["entry_point"] = float64(oh.AddressOfEntryPoint)
			out["subsystem"] = float64(oh.Subsystem)
		}
	}

	if len(f.Sections) > 0 {
		out["num_sections"] = float64(len(f.Sections))
		var sum float64
		minE, maxE := math.Inf(1), math.Inf(-1)
		for i := range f.Sections {
			e := f.Sections[i].CalculateEntropy(f)
			sum += e
			minE = math.Min(minE, e)
			maxE = math.Max(maxE, e)
		}
		out["entropy"] = sum / float64(len(f.Sections))
		out["max_entropy"] = maxE
		out["min_entropy"] = minE
	}
	return out
}

func peFeatures(f *pe.File) map[string]float64 {
	out := headerFeatures(f)
	out["num_sections"] = float64(len(f.Sections))

	out["has_imports"] = flag(len(f.Imports) > 0)
	out["has_exports"] = flag(f.HasExport)
	out["has_resources"] = flag(f.HasResource)
	out["has_tls"] = flag(f.HasTLS)

	found := sets.New[string]()
	var imports int
	for _, imp := range f.Imports {
		imports += len(imp.Functions)
		for _, fn := range imp.Functions {
			if api, ok := matchAPI(fn.Name); ok {
				found.Insert(api)
			}
		}
	}
	out["import_count"] = float64(imports)
	out["dll_count"] = float64(len(f.Imports))
	out["suspicious_api_count"] = float64(found.Len())
	out["has_hook_apis"] = flag(found.Has("SetWindowsHookEx"))
	out["has_keyboard_apis"] = flag(found.HasAny(keyboardAPIs.UnsortedList()...))

	return out
}

// matchAPI maps an imported function name onto the suspicious API list.
func matchAPI(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	base := name
	if n := len(base); n > 1 && (base[n-1] == 'A' || base[n-1] == 'W') && isLowerOrDigit(base[n-2]) {
		base = base[:n-1]
	}
	if suspiciousAPIs.Has(base) {
		return base, true
	}
	if trimmed := strings.TrimSuffix(base, "Ex"); trimmed != base && suspiciousAPIs.Has(trimmed) {
		return trimmed, true
	}
	return "", false
}

func isLowerOrDigit(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}
