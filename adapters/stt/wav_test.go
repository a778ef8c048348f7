package stt

import (
	"bytes"
	"encoding/binary"
)

// testWAV builds a minimal 16-bit PCM mono WAV clip
func testWAV(sampleRate uint32, samples int) []byte {
	dataSize := uint32(samples * 2)
	buf := &bytes.Buffer{}

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36)+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, sampleRate)
	binary.Write(buf, binary.LittleEndian, sampleRate*2)
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, dataSize)
	for i := 0; i < samples; i++ {
		binary.Write(buf, binary.LittleEndian, int16(i%128))
	}

	return buf.Bytes()
}
