package psi

const (
	patTableID = 0x00
	patPID     = 0x0000
)

// ParsePAT decodes a Program Association Table section (ISO/IEC 13818-1
// table 2-25, PID 0x0000, table_id 0x00). It reads the header, then
// (section_length-9)/4 four-byte program entries, masking the PID to 13
// bits. A program_number of 0 is the Network Information Table reference:
// it is counted in Programs but callers must not follow it into PMT
// acquisition (ProgramCount excludes it).
func ParsePAT(buf []byte) (*PatRecord, error) {
	r := newSectionReader("parsePAT", buf)

	tableID, perr := r.u8()
	if perr != nil {
		return nil, perr
	}
	if tableID != patTableID {
		return nil, newParseError("parsePAT", 0, "unexpected table_id")
	}

	raw16, perr := r.u16()
	if perr != nil {
		return nil, perr
	}
	sectionSyntax := raw16&0x8000 != 0
	sectionLength := raw16 & 0x0FFF

	if err := r.need(int(sectionLength)); err != nil {
		return nil, newParseError("parsePAT", r.pos, "truncated section")
	}

	transportStreamID, perr := r.u16()
	if perr != nil {
		return nil, perr
	}
	b5, perr := r.u8()
	if perr != nil {
		return nil, perr
	}
	versionNumber := (b5 >> 1) & 0x1F
	currentNext := b5&0x01 != 0
	sectionNumber, perr := r.u8()
	if perr != nil {
		return nil, perr
	}
	lastSectionNumber, perr := r.u8()
	if perr != nil {
		return nil, perr
	}

	if sectionLength < 9 {
		return nil, newParseError("parsePAT", r.pos, "section_length too small for header")
	}
	entryCount := int(sectionLength-9) / 4
	programs := make([]PatTableProgram, 0, entryCount)
	programCount := 0
	for i := 0; i < entryCount; i++ {
		progNum, perr := r.u16()
		if perr != nil {
			return nil, perr
		}
		rawPID, perr := r.u16()
		if perr != nil {
			return nil, perr
		}
		pid := rawPID & 0x1FFF
		programs = append(programs, PatTableProgram{ProgramNumber: progNum, ProgramMapPID: pid})
		if progNum != 0 {
			programCount++
		}
	}

	// section_length counts from immediately after the length field to the
	// end of the section (CRC included); verify the CRC when the whole
	// section is present in buf.
	sectionEnd := 3 + int(sectionLength)
	if sectionEnd <= len(buf) {
		if ok, matched := verifyCRC(buf[:sectionEnd]); ok && !matched {
			return nil, newParseError("parsePAT", sectionEnd-4, "CRC-32 mismatch")
		}
	}

	return &PatRecord{
		TableID:           tableID,
		SectionSyntax:     sectionSyntax,
		SectionLength:     sectionLength,
		TransportStreamID: transportStreamID,
		VersionNumber:     versionNumber,
		CurrentNext:       currentNext,
		SectionNumber:     sectionNumber,
		LastSectionNumber: lastSectionNumber,
		Programs:          programs,
		ProgramCount:      programCount,
	}, nil
}
