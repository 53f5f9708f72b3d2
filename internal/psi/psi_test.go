package psi

import (
	"reflect"
	"testing"
)

// buildPATSection assembles a complete PAT section (table_id through CRC)
// for program entries in order. programNumber 0 denotes a NIT reference.
func buildPATSection(tsid uint16, programs []PatTableProgram) []byte {
	sectionLength := 9 + 4*len(programs)
	buf := make([]byte, 3+sectionLength)
	buf[0] = patTableID
	buf[1] = 0xB0 | byte((sectionLength>>8)&0x0F) // section_syntax=1, length high nibble
	buf[2] = byte(sectionLength)
	buf[3] = byte(tsid >> 8)
	buf[4] = byte(tsid)
	buf[5] = 0xC1 // reserved + version 0 + current_next=1
	buf[6] = 0    // section_number
	buf[7] = 0    // last_section_number
	for i, p := range programs {
		off := 8 + i*4
		buf[off] = byte(p.ProgramNumber >> 8)
		buf[off+1] = byte(p.ProgramNumber)
		buf[off+2] = byte(0xE0 | (p.ProgramMapPID>>8)&0x1F)
		buf[off+3] = byte(p.ProgramMapPID)
	}
	crc := crc32MPEG(buf[:len(buf)-4])
	buf[len(buf)-4] = byte(crc >> 24)
	buf[len(buf)-3] = byte(crc >> 16)
	buf[len(buf)-2] = byte(crc >> 8)
	buf[len(buf)-1] = byte(crc)
	return buf
}

type pmtEntrySpec struct {
	streamType byte
	pid        uint16
	subtitles  []LangTag // non-nil adds a subtitling_descriptor to this entry
}

// buildPMTSection assembles a complete PMT section for the given entries.
func buildPMTSection(programNumber uint16, pcrPID uint16, entries []pmtEntrySpec) []byte {
	// First compute each entry's descriptor-block length.
	type built struct {
		spec    pmtEntrySpec
		descLen int
	}
	bs := make([]built, len(entries))
	bodyLen := 9 // after section_length field, up to (not including) entries
	for i, e := range entries {
		descLen := 0
		if e.subtitles != nil {
			descLen = 2 + len(e.subtitles)*subtitleRecordLen
		}
		bs[i] = built{spec: e, descLen: descLen}
		bodyLen += 5 + descLen
	}
	sectionLength := bodyLen + 4 // + CRC
	buf := make([]byte, 3+sectionLength)
	buf[0] = pmtTableID
	buf[1] = 0xB0 | byte((sectionLength>>8)&0x0F)
	buf[2] = byte(sectionLength)
	buf[3] = byte(programNumber >> 8)
	buf[4] = byte(programNumber)
	buf[5] = 0xC1
	buf[6] = 0
	buf[7] = 0
	buf[8] = byte(0xE0 | (pcrPID>>8)&0x1F)
	buf[9] = byte(pcrPID)
	buf[10] = 0xF0 // program_info_length high nibble = 0
	buf[11] = 0x00

	pos := 12
	for _, b := range bs {
		buf[pos] = b.spec.streamType
		buf[pos+1] = byte(0xE0 | (b.spec.pid>>8)&0x1F)
		buf[pos+2] = byte(b.spec.pid)
		buf[pos+3] = byte(0xF0 | (b.descLen>>8)&0x0F)
		buf[pos+4] = byte(b.descLen)
		pos += 5
		if b.spec.subtitles != nil {
			buf[pos] = descriptorTagSubtitling
			buf[pos+1] = byte(len(b.spec.subtitles) * subtitleRecordLen)
			pos += 2
			for _, tag := range b.spec.subtitles {
				buf[pos] = tag[0]
				buf[pos+1] = tag[1]
				buf[pos+2] = tag[2]
				buf[pos+3] = 0x03 // subtitle_type
				buf[pos+4] = 0x00 // composition_page_id high
				buf[pos+5] = 0x01
				buf[pos+6] = 0x00 // ancillary_page_id high
				buf[pos+7] = 0x01
				pos += subtitleRecordLen
			}
		}
	}
	crc := crc32MPEG(buf[:len(buf)-4])
	buf[len(buf)-4] = byte(crc >> 24)
	buf[len(buf)-3] = byte(crc >> 16)
	buf[len(buf)-2] = byte(crc >> 8)
	buf[len(buf)-1] = byte(crc)
	return buf
}

func TestParsePAT_roundTrip(t *testing.T) {
	progs := []PatTableProgram{
		{ProgramNumber: 0, ProgramMapPID: 0x10},
		{ProgramNumber: 1, ProgramMapPID: 0x100},
		{ProgramNumber: 2, ProgramMapPID: 0x200},
	}
	buf := buildPATSection(1, progs)
	pat, err := ParsePAT(buf)
	if err != nil {
		t.Fatalf("ParsePAT: %v", err)
	}
	if len(pat.Programs) != len(progs) {
		t.Fatalf("got %d programs, want %d", len(pat.Programs), len(progs))
	}
	if !reflect.DeepEqual(pat.Programs, progs) {
		t.Errorf("programs = %+v, want %+v", pat.Programs, progs)
	}
	if pat.ProgramCount != 2 {
		t.Errorf("ProgramCount = %d, want 2", pat.ProgramCount)
	}
}

func TestParsePAT_eightSectionsThreeZero(t *testing.T) {
	progs := []PatTableProgram{
		{ProgramNumber: 0, ProgramMapPID: 0x10},
		{ProgramNumber: 1, ProgramMapPID: 0x101},
		{ProgramNumber: 0, ProgramMapPID: 0x11},
		{ProgramNumber: 2, ProgramMapPID: 0x102},
		{ProgramNumber: 3, ProgramMapPID: 0x103},
		{ProgramNumber: 0, ProgramMapPID: 0x12},
		{ProgramNumber: 4, ProgramMapPID: 0x104},
		{ProgramNumber: 5, ProgramMapPID: 0x105},
	}
	buf := buildPATSection(1, progs)
	pat, err := ParsePAT(buf)
	if err != nil {
		t.Fatalf("ParsePAT: %v", err)
	}
	if pat.ProgramCount != 5 {
		t.Errorf("ProgramCount = %d, want 5", pat.ProgramCount)
	}
}

func TestParsePAT_truncated(t *testing.T) {
	buf := buildPATSection(1, []PatTableProgram{{ProgramNumber: 1, ProgramMapPID: 0x100}})
	for cut := 0; cut < len(buf); cut++ {
		_, err := ParsePAT(buf[:cut])
		if err == nil {
			t.Fatalf("cut=%d: expected ParseError, got nil", cut)
		}
	}
}

func TestParsePAT_wrongTableID(t *testing.T) {
	buf := buildPATSection(1, []PatTableProgram{{ProgramNumber: 1, ProgramMapPID: 0x100}})
	buf[0] = 0x02
	if _, err := ParsePAT(buf); err == nil {
		t.Fatal("expected error for wrong table_id")
	}
}

func TestParsePAT_crcMismatch(t *testing.T) {
	buf := buildPATSection(1, []PatTableProgram{{ProgramNumber: 1, ProgramMapPID: 0x100}})
	buf[len(buf)-1] ^= 0xFF
	if _, err := ParsePAT(buf); err == nil {
		t.Fatal("expected CRC mismatch error")
	}
}

func TestParsePMT_subtitleExtraction(t *testing.T) {
	eng := LangTag{'e', 'n', 'g'}
	ger := LangTag{'g', 'e', 'r'}
	entries := []pmtEntrySpec{
		{streamType: 0x02, pid: 0x101},
		{streamType: 0x03, pid: 0x102, subtitles: []LangTag{eng, ger}},
	}
	buf := buildPMTSection(1, 0x101, entries)
	pmt, err := ParsePMT(buf)
	if err != nil {
		t.Fatalf("ParsePMT: %v", err)
	}
	if len(pmt.Subtitles) != 2 {
		t.Fatalf("subtitle count = %d, want 2", len(pmt.Subtitles))
	}
	if pmt.Subtitles[0] != eng || pmt.Subtitles[1] != ger {
		t.Errorf("subtitles = %v, want [eng ger]", pmt.Subtitles)
	}
	if len(pmt.Streams) != 2 {
		t.Fatalf("stream count = %d, want 2", len(pmt.Streams))
	}
	if pmt.Streams[0].Kind.Role != RoleVideo || pmt.Streams[0].Kind.Video != VideoCodecMPEG2 {
		t.Errorf("stream[0].Kind = %+v, want video/MPEG2", pmt.Streams[0].Kind)
	}
	if pmt.Streams[1].Kind.Role != RoleAudio || pmt.Streams[1].Kind.Audio != AudioCodecMPEG {
		t.Errorf("stream[1].Kind = %+v, want audio/MPEG", pmt.Streams[1].Kind)
	}
}

func TestParsePMT_videoOnly(t *testing.T) {
	entries := []pmtEntrySpec{{streamType: 0x02, pid: 0x201}}
	buf := buildPMTSection(2, 0x201, entries)
	pmt, err := ParsePMT(buf)
	if err != nil {
		t.Fatalf("ParsePMT: %v", err)
	}
	if len(pmt.Streams) != 1 || len(pmt.Subtitles) != 0 {
		t.Errorf("unexpected pmt: %+v", pmt)
	}
}

func TestParsePMT_onlyFirstSubtitlingDescriptorRetained(t *testing.T) {
	eng := LangTag{'e', 'n', 'g'}
	fre := LangTag{'f', 'r', 'e'}
	entries := []pmtEntrySpec{
		{streamType: 0x02, pid: 0x101, subtitles: []LangTag{eng}},
		{streamType: 0x03, pid: 0x102, subtitles: []LangTag{fre}},
	}
	buf := buildPMTSection(1, 0x101, entries)
	pmt, err := ParsePMT(buf)
	if err != nil {
		t.Fatalf("ParsePMT: %v", err)
	}
	if len(pmt.Subtitles) != 1 || pmt.Subtitles[0] != eng {
		t.Errorf("subtitles = %v, want only [eng]", pmt.Subtitles)
	}
}

func TestParsePMT_truncated(t *testing.T) {
	buf := buildPMTSection(1, 0x101, []pmtEntrySpec{{streamType: 0x02, pid: 0x101}})
	for cut := 0; cut < len(buf); cut++ {
		if _, err := ParsePMT(buf[:cut]); err == nil {
			t.Fatalf("cut=%d: expected ParseError, got nil", cut)
		}
	}
}

func TestParsePMT_esInfoLengthOverrun(t *testing.T) {
	buf := buildPMTSection(1, 0x101, []pmtEntrySpec{{streamType: 0x02, pid: 0x101}})
	// Corrupt the lone entry's es_info_length to claim more bytes than exist.
	buf[12+3] = 0x0F
	buf[12+4] = 0xFF
	if _, err := ParsePMT(buf); err == nil {
		t.Fatal("expected ParseError for es_info_length overrun")
	}
}

func TestParsePMT_wrongTableID(t *testing.T) {
	buf := buildPMTSection(1, 0x101, []pmtEntrySpec{{streamType: 0x02, pid: 0x101}})
	buf[0] = 0x00
	if _, err := ParsePMT(buf); err == nil {
		t.Fatal("expected error for wrong table_id")
	}
}

func TestStreamKindForType_unknownIsOther(t *testing.T) {
	kind := StreamKindForType(0xEE)
	if kind.Role != RoleOther {
		t.Errorf("unknown stream type should map to RoleOther, got %+v", kind)
	}
}

func fuzzSeedCorpus() [][]byte {
	return [][]byte{
		nil,
		{0x00},
		{0x02},
		buildPATSection(1, []PatTableProgram{{ProgramNumber: 1, ProgramMapPID: 0x100}}),
		buildPMTSection(1, 0x101, []pmtEntrySpec{{streamType: 0x02, pid: 0x101}}),
	}
}

// FuzzParsePAT and FuzzParsePMT exercise the parsers' totality property:
// every byte slice either returns a record whose field offsets lie
// within the input, or a ParseError — never an out-of-bounds read or
// panic.
func FuzzParsePAT(f *testing.F) {
	for _, seed := range fuzzSeedCorpus() {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, buf []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("ParsePAT panicked on %x: %v", buf, r)
			}
		}()
		_, _ = ParsePAT(buf)
	})
}

func FuzzParsePMT(f *testing.F) {
	for _, seed := range fuzzSeedCorpus() {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, buf []byte) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("ParsePMT panicked on %x: %v", buf, r)
			}
		}()
		_, _ = ParsePMT(buf)
	})
}
