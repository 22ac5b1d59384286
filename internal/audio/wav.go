package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// EncodeWAV 将裸PCM包装成WAV容器，用于请求识别服务
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
		audioFormat   = 1 // PCM
	)
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	dataSize := uint32(len(pcm))
	byteRate := uint32(sampleRate * numChannels * bitsPerSample / 8)
	blockAlign := uint16(numChannels * bitsPerSample / 8)

	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36)+dataSize)
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(audioFormat))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(numChannels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, byteRate)
	_ = binary.Write(&buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, dataSize)
	buf.Write(pcm)

	return buf.Bytes()
}

var ErrInvalidWAV = errors.New("invalid wav data")

// DecodeWAV 从WAV容器中取出裸PCM和采样率
// 仅支持单声道16bit PCM，占位音频文件在进程启动时经由该函数加载
func DecodeWAV(data []byte) (pcm []byte, sampleRate int, err error) {
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, ErrInvalidWAV
	}

	offset := 12
	var foundFmt bool
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(data) {
			return nil, 0, ErrInvalidWAV
		}
		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, ErrInvalidWAV
			}
			audioFormat := binary.LittleEndian.Uint16(data[body : body+2])
			numChannels := binary.LittleEndian.Uint16(data[body+2 : body+4])
			bitsPerSample := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if audioFormat != 1 || numChannels != 1 || bitsPerSample != 16 {
				return nil, 0, fmt.Errorf("%w: expect mono 16bit pcm", ErrInvalidWAV)
			}
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return nil, 0, ErrInvalidWAV
			}
			return data[body : body+chunkSize], sampleRate, nil
		}
		// chunk按2字节对齐
		if chunkSize%2 != 0 {
			chunkSize++
		}
		offset = body + chunkSize
	}
	return nil, 0, ErrInvalidWAV
}

// LoadWAVFile 加载WAV文件，返回裸PCM与采样率
func LoadWAVFile(path string) (pcm []byte, sampleRate int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return DecodeWAV(data)
}
