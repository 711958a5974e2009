package excel

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/richardlehane/mscfb"

	"portalia/internal/engine"
)

const vbaProjectPart = "xl/vbaProject.bin"

// Записи потока dir (MS-OVBA 2.3.4.2)
const (
	recProjectVersion    = 0x0009
	recProjectTerminator = 0x0010
	recModuleName        = 0x0019
	recModuleStreamName  = 0x001A
	recModuleOffset      = 0x0031
	recModuleTerminator  = 0x002B
)

var procedureRe = regexp.MustCompile(`(?mi)^[ \t]*(?:(Public|Private|Friend)[ \t]+)?(?:Static[ \t]+)?(?:Sub|Function)[ \t]+([A-Za-z_][A-Za-z0-9_]*)`)

type vbaModule struct {
	name   string
	stream string
	offset uint32
}

// listMacros returns the public procedures of every VBA module in the workbook package.
func listMacros(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrMacrosUnreadable, err)
	}
	defer zr.Close()

	var part *zip.File
	for _, zf := range zr.File {
		if strings.EqualFold(zf.Name, vbaProjectPart) {
			part = zf
			break
		}
	}
	if part == nil {
		return nil, fmt.Errorf("%w: no %s in workbook", engine.ErrMacrosUnreadable, vbaProjectPart)
	}

	rc, err := part.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrMacrosUnreadable, err)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrMacrosUnreadable, err)
	}

	streams, err := vbaStreams(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrMacrosUnreadable, err)
	}

	dir, ok := streams["dir"]
	if !ok {
		return nil, fmt.Errorf("%w: VBA dir stream missing", engine.ErrMacrosUnreadable)
	}
	dirData, err := decompress(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: dir stream: %v", engine.ErrMacrosUnreadable, err)
	}

	modules, err := parseDir(dirData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrMacrosUnreadable, err)
	}

	var names []string
	seen := make(map[string]bool)
	for _, m := range modules {
		raw, ok := streams[strings.ToLower(m.stream)]
		if !ok || int(m.offset) > len(raw) {
			continue
		}
		src, err := decompress(raw[m.offset:])
		if err != nil {
			continue
		}
		for _, p := range procedures(string(src)) {
			if !seen[p] {
				seen[p] = true
				names = append(names, p)
			}
		}
	}

	return names, nil
}

// vbaStreams reads the streams of the VBA storage keyed by lower-cased name.
func vbaStreams(data []byte) (map[string][]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	streams := make(map[string][]byte)
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if len(entry.Path) == 0 || !strings.EqualFold(entry.Path[len(entry.Path)-1], "VBA") {
			continue
		}
		buf, err := io.ReadAll(entry)
		if err != nil {
			return nil, fmt.Errorf("read stream %s: %w", entry.Name, err)
		}
		streams[strings.ToLower(entry.Name)] = buf
	}

	return streams, nil
}

func parseDir(data []byte) ([]vbaModule, error) {
	var (
		modules []vbaModule
		cur     vbaModule
	)

	pos := 0
	for pos+6 <= len(data) {
		id := binary.LittleEndian.Uint16(data[pos:])
		size := int(binary.LittleEndian.Uint32(data[pos+2:]))
		pos += 6

		// PROJECTVERSION: в поле размера всегда 4, а данных 6 байт
		if id == recProjectVersion {
			size = 6
		}
		if pos+size > len(data) {
			return nil, fmt.Errorf("dir record 0x%04X overruns stream", id)
		}
		body := data[pos : pos+size]
		pos += size

		switch id {
		case recModuleName:
			cur = vbaModule{name: string(body)}
		case recModuleStreamName:
			cur.stream = string(body)
		case recModuleOffset:
			if len(body) >= 4 {
				cur.offset = binary.LittleEndian.Uint32(body)
			}
		case recModuleTerminator:
			if cur.stream == "" {
				cur.stream = cur.name
			}
			modules = append(modules, cur)
			cur = vbaModule{}
		case recProjectTerminator:
			return modules, nil
		}
	}

	return modules, nil
}

func procedures(src string) []string {
	var out []string
	for _, m := range procedureRe.FindAllStringSubmatch(src, -1) {
		if strings.EqualFold(m[1], "Private") {
			continue
		}
		out = append(out, m[2])
	}
	return out
}

var errBadContainer = errors.New("bad compressed container")

// decompress unpacks an MS-OVBA compressed container.
func decompress(data []byte) ([]byte, error) {
	if len(data) == 0 || data[0] != 0x01 {
		return nil, fmt.Errorf("%w: signature", errBadContainer)
	}

	var out []byte
	pos := 1
	for pos+2 <= len(data) {
		header := binary.LittleEndian.Uint16(data[pos:])
		if header&0x7000 != 0x3000 {
			return nil, fmt.Errorf("%w: chunk signature at %d", errBadContainer, pos)
		}
		chunkEnd := pos + int(header&0x0FFF) + 3
		if chunkEnd > len(data) {
			chunkEnd = len(data)
		}
		pos += 2

		if header&0x8000 == 0 {
			end := pos + 4096
			if end > len(data) {
				end = len(data)
			}
			out = append(out, data[pos:end]...)
			pos = end
			continue
		}

		chunkStart := len(out)
		for pos < chunkEnd {
			flags := data[pos]
			pos++
			for bit := 0; bit < 8 && pos < chunkEnd; bit++ {
				if flags&(1<<bit) == 0 {
					out = append(out, data[pos])
					pos++
					continue
				}
				if pos+2 > chunkEnd {
					return nil, fmt.Errorf("%w: truncated copy token", errBadContainer)
				}
				token := binary.LittleEndian.Uint16(data[pos:])
				pos += 2

				bitCount := uint(4)
				for (1<<bitCount) < len(out)-chunkStart && bitCount < 12 {
					bitCount++
				}
				lengthMask := uint16(0xFFFF) >> bitCount
				length := int(token&lengthMask) + 3
				offset := int(token>>(16-bitCount)) + 1

				src := len(out) - offset
				if src < chunkStart {
					return nil, fmt.Errorf("%w: copy token points before chunk", errBadContainer)
				}
				for i := 0; i < length; i++ {
					out = append(out, out[src+i])
				}
			}
		}
		pos = chunkEnd
	}

	return out, nil
}
