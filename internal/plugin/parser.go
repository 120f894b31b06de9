package plugin

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Common errors returned by the parser.
var (
	ErrInvalidPlugin    = errors.New("invalid plugin file")
	ErrNotPlugin        = errors.New("file is not a valid plugin")
	ErrTruncatedFile    = errors.New("plugin file is truncated")
	ErrUnsupportedGame  = errors.New("unsupported game version")
	ErrInvalidSignature = errors.New("invalid record signature")
)

// Parser reads the TES4 header record from a plugin file (.esp/.esm/.esl)
// without loading the rest of its records, which can run into the
// hundreds of megabytes.
type Parser struct{}

// NewParser returns a ready-to-use Parser. It holds no state.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile opens filePath and parses its header.
func (p *Parser) ParseFile(ctx context.Context, filePath string) (*PluginHeader, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open plugin file: %w", err)
	}
	defer f.Close()

	return p.Parse(ctx, f, filepath.Base(filePath))
}

// Parse reads a TES4 header from r. filename disambiguates the plugin type
// when the ESM/ESL flags alone don't settle it (older files predate the
// light-plugin flag and rely purely on their extension).
func (p *Parser) Parse(ctx context.Context, r io.Reader, filename string) (*PluginHeader, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	header := &PluginHeader{
		Filename: filename,
		Masters:  []Master{},
	}

	rh, err := p.readRecordHeader(r)
	if err != nil {
		return nil, err
	}

	if rh.signature != SignatureTES4 {
		return nil, fmt.Errorf("%w: expected TES4, got %s", ErrInvalidSignature, rh.signature)
	}

	header.Flags = PluginFlags{
		IsMaster:    rh.flags&FlagMaster != 0,
		IsLight:     rh.flags&FlagLight != 0,
		IsLocalized: rh.flags&FlagLocalized != 0,
	}

	header.Type = p.determinePluginType(header.Flags, filename)
	header.FormVersion = rh.formVersion

	if rh.dataSize > MaxTES4DataSize {
		return nil, fmt.Errorf("%w: TES4 data size %d exceeds %d byte limit", ErrInvalidPlugin, rh.dataSize, MaxTES4DataSize)
	}

	body := make([]byte, rh.dataSize)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedFile, err)
	}

	if err := p.parseSubrecords(body, header); err != nil {
		return nil, err
	}

	return header, nil
}

// recordHeader is the fixed 24-byte record header common to every record
// in a Skyrim-and-later plugin: signature, data size, flags, form ID,
// timestamp/VC word, form version, and a reserved word.
type recordHeader struct {
	signature   string
	dataSize    uint32
	flags       uint32
	formID      uint32
	timestamp   uint32
	formVersion uint16
	unknown     uint16
}

func (p *Parser) readRecordHeader(r io.Reader) (*recordHeader, error) {
	var raw [24]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %v", ErrTruncatedFile, err)
		}
		return nil, fmt.Errorf("read record header: %w", err)
	}

	sig := string(raw[0:4])
	for _, c := range sig {
		if c < 32 || c > 126 {
			return nil, fmt.Errorf("%w: invalid characters in signature", ErrNotPlugin)
		}
	}

	return &recordHeader{
		signature:   sig,
		dataSize:    binary.LittleEndian.Uint32(raw[4:8]),
		flags:       binary.LittleEndian.Uint32(raw[8:12]),
		formID:      binary.LittleEndian.Uint32(raw[12:16]),
		timestamp:   binary.LittleEndian.Uint32(raw[16:20]),
		formVersion: binary.LittleEndian.Uint16(raw[20:22]),
		unknown:     binary.LittleEndian.Uint16(raw[22:24]),
	}, nil
}

// parseSubrecords walks the TES4 record's subrecord stream, filling in
// header fields as it recognizes CNAM/SNAM/MAST/DATA/HEDR entries and
// skipping anything else by its declared size.
func (p *Parser) parseSubrecords(data []byte, header *PluginHeader) error {
	stream := bytes.NewReader(data)

	for stream.Len() > 0 {
		var subHeader [6]byte
		if _, err := io.ReadFull(stream, subHeader[:]); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("read subrecord header: %w", err)
		}

		subType := string(subHeader[0:4])
		subSize := binary.LittleEndian.Uint16(subHeader[4:6])

		payload := make([]byte, subSize)
		if _, err := io.ReadFull(stream, payload); err != nil {
			return fmt.Errorf("read subrecord %s data: %w", subType, err)
		}

		switch subType {
		case SignatureHEDR:
			// 12 bytes: float32 version, uint32 numRecords, uint32 nextObjectID.
			if len(payload) >= 12 {
				header.NumRecords = binary.LittleEndian.Uint32(payload[4:8])
			}

		case SignatureCNAM:
			header.Author = p.readNullString(payload)

		case SignatureSNAM:
			header.Description = p.readNullString(payload)

		case SignatureMAST:
			if name := p.readNullString(payload); name != "" {
				header.Masters = append(header.Masters, Master{Filename: name})
			}

		case SignatureDATA:
			// Paired with the preceding MAST: the master's recorded size.
			if len(payload) >= 8 && len(header.Masters) > 0 {
				header.Masters[len(header.Masters)-1].Size = binary.LittleEndian.Uint64(payload[0:8])
			}
		}
	}

	return nil
}

// readNullString returns data up to its first NUL byte, or all of data if
// none is present.
func (p *Parser) readNullString(data []byte) string {
	for i, b := range data {
		if b == 0 {
			return string(data[:i])
		}
	}
	return string(data)
}

// determinePluginType favors the header flags over the extension: a flag
// is authoritative where present, the extension only settles plugins old
// enough to predate the light-plugin flag.
func (p *Parser) determinePluginType(flags PluginFlags, filename string) PluginType {
	if flags.IsLight {
		return PluginTypeESL
	}
	if flags.IsMaster {
		return PluginTypeESM
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".esm":
		return PluginTypeESM
	case ".esl":
		return PluginTypeESL
	default:
		return PluginTypeESP
	}
}

// IsPluginFile reports whether filename carries a recognized plugin
// extension (.esp, .esm, .esl).
func IsPluginFile(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".esp", ".esm", ".esl":
		return true
	default:
		return false
	}
}
