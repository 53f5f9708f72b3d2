package psi

const (
	pmtTableID = 0x02

	descriptorTagSubtitling = 0x59
	subtitleRecordLen       = 8
)

// ParsePMT decodes a Program Map Table section (table_id 0x02, the PID
// given for this program number in the PAT). It reads the header, skips
// the program_info_length program-descriptors block, then walks the
// elementary-stream loop; for each entry it reads (stream_type,
// elementary_pid, es_info_length) and walks that entry's own descriptor
// block looking for a subtitling_descriptor (tag 0x59). Only the first
// subtitling_descriptor seen across the program is retained; its language
// tags are copied into the returned record (they never alias buf).
func ParsePMT(buf []byte) (*PmtRecord, error) {
	r := newSectionReader("parsePMT", buf)

	tableID, perr := r.u8()
	if perr != nil {
		return nil, perr
	}
	if tableID != pmtTableID {
		return nil, newParseError("parsePMT", 0, "unexpected table_id")
	}

	raw16, perr := r.u16()
	if perr != nil {
		return nil, perr
	}
	sectionSyntax := raw16&0x8000 != 0
	sectionLength := raw16 & 0x0FFF

	if err := r.need(int(sectionLength)); err != nil {
		return nil, newParseError("parsePMT", r.pos, "truncated section")
	}
	sectionEnd := 3 + int(sectionLength) // absolute offset, one past the last CRC byte

	programNumber, perr := r.u16()
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
	rawPCR, perr := r.u16()
	if perr != nil {
		return nil, perr
	}
	pcrPID := rawPCR & 0x1FFF
	rawProgInfoLen, perr := r.u16()
	if perr != nil {
		return nil, perr
	}
	programInfoLength := int(rawProgInfoLen & 0x0FFF)

	if err := r.skip(programInfoLength); err != nil {
		return nil, newParseError("parsePMT", r.pos, "program_info_length advances past section")
	}

	loopEnd := sectionEnd - 4 // exclude the trailing CRC
	var streams []ElementaryStream
	var subtitles []LangTag
	haveSubtitleDescriptor := false

	for r.pos < loopEnd {
		if loopEnd-r.pos < 5 {
			return nil, newParseError("parsePMT", r.pos, "truncated elementary stream entry")
		}
		streamType, perr := r.u8()
		if perr != nil {
			return nil, perr
		}
		rawPID, perr := r.u16()
		if perr != nil {
			return nil, perr
		}
		pid := rawPID & 0x1FFF
		rawESLen, perr := r.u16()
		if perr != nil {
			return nil, perr
		}
		esInfoLength := int(rawESLen & 0x0FFF)

		if r.pos+esInfoLength > loopEnd {
			return nil, newParseError("parsePMT", r.pos, "es_info_length advances past section boundary")
		}
		descBlock, perr := r.peekSlice(esInfoLength)
		if perr != nil {
			return nil, perr
		}

		if !haveSubtitleDescriptor {
			if tags, ok := findSubtitlingDescriptor(descBlock); ok {
				subtitles = append(subtitles, tags...)
				haveSubtitleDescriptor = true
			}
		}

		descCopy := make([]byte, len(descBlock))
		copy(descCopy, descBlock)
		if err := r.skip(esInfoLength); err != nil {
			return nil, newParseError("parsePMT", r.pos, "es_info_length advances past section boundary")
		}

		streams = append(streams, ElementaryStream{
			StreamType:  streamType,
			PID:         pid,
			Kind:        StreamKindForType(streamType),
			Descriptors: descCopy,
		})
	}

	if ok, matched := verifyCRC(buf[:sectionEnd]); ok && !matched {
		return nil, newParseError("parsePMT", sectionEnd-4, "CRC-32 mismatch")
	}

	return &PmtRecord{
		TableID:           tableID,
		SectionSyntax:     sectionSyntax,
		SectionLength:     sectionLength,
		ProgramNumber:     programNumber,
		VersionNumber:     versionNumber,
		CurrentNext:       currentNext,
		SectionNumber:     sectionNumber,
		LastSectionNumber: lastSectionNumber,
		PCRPID:            pcrPID,
		Streams:           streams,
		Subtitles:         subtitles,
	}, nil
}

// findSubtitlingDescriptor walks a descriptor loop looking for the first
// subtitling_descriptor (tag 0x59); its data length divided by 8 is the
// subtitle count, each 8-byte record beginning with a 3-byte ISO-639 tag.
func findSubtitlingDescriptor(desc []byte) ([]LangTag, bool) {
	pos := 0
	for pos+2 <= len(desc) {
		tag := desc[pos]
		length := int(desc[pos+1])
		start := pos + 2
		end := start + length
		if end > len(desc) {
			return nil, false
		}
		if tag == descriptorTagSubtitling {
			count := length / subtitleRecordLen
			tags := make([]LangTag, 0, count)
			for i := 0; i < count; i++ {
				recStart := start + i*subtitleRecordLen
				var lt LangTag
				copy(lt[:], desc[recStart:recStart+3])
				tags = append(tags, lt)
			}
			return tags, true
		}
		pos = end
	}
	return nil, false
}
