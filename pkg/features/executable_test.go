package features

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type peImport struct {
	dll   string
	funcs []string
}

// PE32+ layout used by buildPE.
const (
	peHeaderOffset  = 0x80
	peFileHeader    = peHeaderOffset + 4
	peOptionalHdr   = peFileHeader + 20
	peSectionTable  = peOptionalHdr + 240
	peTextRVA       = 0x1000
	peIdataRVA      = 0x2000
	peTextRaw       = 0x200
	peIdataRaw      = 0x400
	peSectionSize   = 0x200
	peImageBase     = 0x140000000
	peMachineAMD64  = 0x8664
	peSubsystemGUI  = 2
	peSectionHdrLen = 40
)

// buildPE assembles a minimal x64 executable with a .text section and an
// .idata section holding the given imports.
func buildPE(t *testing.T, imports []peImport) []byte {
	t.Helper()
	le := binary.LittleEndian
	img := make([]byte, peIdataRaw+peSectionSize)

	copy(img, "MZ")
	le.PutUint32(img[0x3c:], peHeaderOffset)
	copy(img[peHeaderOffset:], "PE\x00\x00")

	fh := img[peFileHeader:]
	le.PutUint16(fh[0:], peMachineAMD64)
	le.PutUint16(fh[2:], 2)
	le.PutUint16(fh[16:], 240)
	le.PutUint16(fh[18:], 0x22)

	oh := img[peOptionalHdr:]
	le.PutUint16(oh[0:], 0x20b)
	le.PutUint32(oh[4:], peSectionSize)
	le.PutUint32(oh[16:], peTextRVA)
	le.PutUint32(oh[20:], peTextRVA)
	le.PutUint64(oh[24:], peImageBase)
	le.PutUint32(oh[32:], 0x1000)
	le.PutUint32(oh[36:], 0x200)
	le.PutUint16(oh[40:], 6)
	le.PutUint16(oh[48:], 6)
	le.PutUint32(oh[56:], 0x3000)
	le.PutUint32(oh[60:], 0x200)
	le.PutUint16(oh[68:], peSubsystemGUI)
	le.PutUint64(oh[72:], 0x100000)
	le.PutUint64(oh[80:], 0x1000)
	le.PutUint64(oh[88:], 0x100000)
	le.PutUint64(oh[96:], 0x1000)
	le.PutUint32(oh[108:], 16)

	writeSection := func(i int, name string, rva, raw, chars uint32) {
		sh := img[peSectionTable+i*peSectionHdrLen:]
		copy(sh[0:8], name)
		le.PutUint32(sh[8:], peSectionSize)
		le.PutUint32(sh[12:], rva)
		le.PutUint32(sh[16:], peSectionSize)
		le.PutUint32(sh[20:], raw)
		le.PutUint32(sh[36:], chars)
	}
	writeSection(0, ".text", peTextRVA, peTextRaw, 0x60000020)
	writeSection(1, ".idata", peIdataRVA, peIdataRaw, 0xC0000040)

	for i := 0; i < peSectionSize; i++ {
		img[peTextRaw+i] = byte(i * 31 % 251)
	}

	idata := img[peIdataRaw : peIdataRaw+peSectionSize]
	pos := uint32(len(imports)+1) * 20
	thunks := make([][2]uint32, len(imports))
	for i, imp := range imports {
		n := uint32(len(imp.funcs)+1) * 8
		thunks[i] = [2]uint32{pos, pos + n}
		pos += 2 * n
	}
	for i, imp := range imports {
		ilt, iat := thunks[i][0], thunks[i][1]
		for j, fn := range imp.funcs {
			le.PutUint64(idata[ilt+uint32(j)*8:], uint64(peIdataRVA+pos))
			le.PutUint64(idata[iat+uint32(j)*8:], uint64(peIdataRVA+pos))
			copy(idata[pos+2:], fn)
			pos += 2 + uint32(len(fn)) + 1
			pos += pos % 2
		}
		desc := idata[i*20:]
		le.PutUint32(desc[0:], peIdataRVA+ilt)
		le.PutUint32(desc[12:], peIdataRVA+pos)
		le.PutUint32(desc[16:], peIdataRVA+iat)
		copy(idata[pos:], imp.dll)
		pos += uint32(len(imp.dll)) + 1
		pos += pos % 2
	}
	require.Less(t, int(pos), peSectionSize, "imports do not fit in .idata")

	dd := oh[112:]
	le.PutUint32(dd[8:], peIdataRVA)
	le.PutUint32(dd[12:], uint32(len(imports)+1)*20)
	return img
}

var hookImports = []peImport{
	{"user32.dll", []string{"SetWindowsHookExA", "GetAsyncKeyState", "GetForegroundWindow", "CallNextHookEx"}},
	{"kernel32.dll", []string{"CreateFileW", "ExitProcess"}},
}

func TestExtractFeatures_ValidPE(t *testing.T) {
	p := filepath.Join(t.TempDir(), "hook.exe")
	require.NoError(t, os.WriteFile(p, buildPE(t, hookImports), 0o644))

	rec, err := newExtractor(t, Options{}).ExtractFeatures(p)
	require.NoError(t, err)
	require.Empty(t, rec.Errors)

	c := rec.CustomFeatures()
	assert.Equal(t, 2.0, c["num_sections"])
	assert.Equal(t, float64(peMachineAMD64), c["machine_type"])
	assert.Equal(t, float64(peSubsystemGUI), c["subsystem"])
	assert.Equal(t, float64(peTextRVA), c["entry_point"])
	assert.Equal(t, float64(peImageBase), c["image_base"])
	assert.Equal(t, 2.0, c["dll_count"])
	assert.Equal(t, 6.0, c["import_count"])
	// SetWindowsHookEx, GetAsyncKeyState, GetForegroundWindow, CreateFile
	assert.Equal(t, 4.0, c["suspicious_api_count"])
	assert.Equal(t, 1.0, c["has_hook_apis"])
	assert.Equal(t, 1.0, c["has_keyboard_apis"])
	assert.Equal(t, 1.0, c["has_imports"])
	assert.Equal(t, 0.0, c["has_exports"])
	assert.Equal(t, 0.0, c["has_tls"])

	assert.Greater(t, c["max_entropy"], c["min_entropy"])
	assert.Greater(t, c["max_entropy"], 0.0)
	assert.InDelta(t, (c["max_entropy"]+c["min_entropy"])/2, c["entropy"], 1e-9)

	require.NotNil(t, rec.Entropy)
	assert.Equal(t, c["entropy"], *rec.Entropy)
	require.NotNil(t, rec.SectionCount)
	assert.Equal(t, uint(2), *rec.SectionCount)
	assert.True(t, rec.HasImports)
}

func TestExtractFeatures_PEWithoutHookImports(t *testing.T) {
	data := buildPE(t, []peImport{{"kernel32.dll", []string{"ExitProcess"}}})
	rec := newExtractor(t, Options{}).ExtractBytes("plain.exe", data)
	require.Empty(t, rec.Errors)

	c := rec.CustomFeatures()
	assert.Equal(t, 1.0, c["dll_count"])
	assert.Equal(t, 1.0, c["import_count"])
	assert.Equal(t, 0.0, c["suspicious_api_count"])
	assert.Equal(t, 0.0, c["has_hook_apis"])
	assert.Equal(t, 0.0, c["has_keyboard_apis"])
}

func TestExtractFeatures_TruncatedPEKeepsHeaders(t *testing.T) {
	data := buildPE(t, hookImports)
	// Claim a third section and cut the file inside its header.
	binary.LittleEndian.PutUint16(data[peFileHeader+2:], 3)
	data = data[:peSectionTable+2*peSectionHdrLen+20]

	rec := newExtractor(t, Options{}).ExtractBytes("cut.exe", data)

	assert.NotEmpty(t, rec.Error("pe_error"))
	c := rec.CustomFeatures()
	assert.Equal(t, 1.0, c["pe_error"])
	assert.Equal(t, float64(peMachineAMD64), c["machine_type"])
	assert.Equal(t, float64(peSubsystemGUI), c["subsystem"])
	assert.Equal(t, 2.0, c["num_sections"])
	require.NotNil(t, rec.SectionCount)
	assert.Equal(t, uint(2), *rec.SectionCount)
	assert.NotContains(t, c, "import_count")
}
