package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	demod "github.com/tphakala/go-sdr-demod"
	"github.com/tphakala/go-sdr-demod/internal/dsp"
	"github.com/tphakala/go-sdr-demod/internal/iq"
)

// Sample conversion from WAV bit depths to 16-bit I/Q.
const (
	bitsPerSample8  = 8
	bitsPerSample16 = 16
	bitsPerSample24 = 24
	bitsPerSample32 = 32
	u8WAVOffset     = 128
)

// formatAuto selects the input format from the file extension.
const formatAuto = "auto"

// iqSource is an open recording delivering blocks on a goroutine.
type iqSource struct {
	file   *os.File
	blocks <-chan dsp.SampleBlock
	errc   <-chan error

	// rate is the sample rate recorded in the file, zero for raw formats.
	rate float64
	kind string
}

// Close closes the underlying file.
func (s *iqSource) Close() error {
	return s.file.Close()
}

// Err waits for the reader goroutine and returns its error, if any.
func (s *iqSource) Err() error {
	return <-s.errc
}

// detectFormat maps a --format value and file name to "wav", "cu8" or
// "cs16".
func detectFormat(path, format string) (string, error) {
	if format != "" && format != formatAuto {
		if strings.EqualFold(format, "wav") {
			return "wav", nil
		}
		f, err := iq.ParseFormat(format)
		if err != nil {
			return "", err
		}
		return f.String(), nil
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case wavIQExtension:
		return "wav", nil
	case ".cu8", ".u8", ".iq8", ".bin":
		return iq.CU8.String(), nil
	case ".cs16", ".s16", ".iq16":
		return iq.CS16.String(), nil
	default:
		return "", fmt.Errorf("cannot infer IQ format from extension %q, use --format", ext)
	}
}

// openIQSource opens path and starts streaming blocks of batch samples.
func openIQSource(ctx context.Context, path, format string, batch int) (*iqSource, error) {
	kind, err := detectFormat(path, format)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}

	if kind == "wav" {
		src, err := openWAVIQ(ctx, f, batch)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		return src, nil
	}

	ifmt, _ := iq.ParseFormat(kind)
	blocks, errc := iq.NewReader(f, ifmt).Stream(ctx, batch)
	return &iqSource{file: f, blocks: blocks, errc: errc, kind: kind}, nil
}

// openWAVIQ validates a stereo WAV recording and streams it as I/Q.
func openWAVIQ(ctx context.Context, f *os.File, batch int) (*iqSource, error) {
	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("invalid WAV file: %s", f.Name())
	}
	format := decoder.Format()
	if format.NumChannels != wavIQChannels {
		return nil, fmt.Errorf("WAV IQ needs %d channels, %s has %d", wavIQChannels, f.Name(), format.NumChannels)
	}
	bitDepth := int(decoder.BitDepth)
	switch bitDepth {
	case bitsPerSample8, bitsPerSample16, bitsPerSample24, bitsPerSample32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth %d", bitDepth)
	}

	blocks := make(chan dsp.SampleBlock, 1)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(blocks)

		buf := &audio.IntBuffer{
			Data:   make([]int, batch*wavIQChannels),
			Format: format,
		}
		for {
			n, err := decoder.PCMBuffer(buf)
			if n > 0 {
				block := make(dsp.SampleBlock, n/wavIQChannels)
				interleavedToIQ(block, buf.Data[:n], bitDepth)
				select {
				case blocks <- block:
				case <-ctx.Done():
					errc <- ctx.Err()
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errc <- err
				}
				return
			}
			if n == 0 {
				return
			}
		}
	}()

	return &iqSource{
		file:   f,
		blocks: blocks,
		errc:   errc,
		rate:   float64(format.SampleRate),
		kind:   "wav",
	}, nil
}

// interleavedToIQ converts L/R PCM integers to I/Q samples.
func interleavedToIQ(dst dsp.SampleBlock, data []int, bitDepth int) {
	for i := range dst {
		dst[i] = dsp.Sample{
			Re: pcmToInt16(data[2*i], bitDepth),
			Im: pcmToInt16(data[2*i+1], bitDepth),
		}
	}
}

func pcmToInt16(v, bitDepth int) int16 {
	switch bitDepth {
	case bitsPerSample8:
		return int16((v - u8WAVOffset) << 8)
	case bitsPerSample24:
		return int16(v >> 8)
	case bitsPerSample32:
		return int16(v >> 16)
	default:
		return int16(v)
	}
}

// wavOutput writes 16-bit stereo PCM, either demodulated audio or I/Q.
type wavOutput struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	frames  int64
}

// createWAVOutput creates path and prepares a 16-bit stereo encoder.
func createWAVOutput(path string, sampleRate int) (*wavOutput, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return &wavOutput{
		file:    f,
		encoder: wav.NewEncoder(f, sampleRate, wavBitDepth, wavChannels, wavPCMFormat),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: wavChannels, SampleRate: sampleRate},
			SourceBitDepth: wavBitDepth,
		},
	}, nil
}

// WriteFrames appends frames to the file.
func (w *wavOutput) WriteFrames(frames []demod.Frame) error {
	if len(frames) == 0 {
		return nil
	}
	data := w.buf.Data[:0]
	for _, fr := range frames {
		data = append(data, int(fr.L), int(fr.R))
	}
	w.buf.Data = data
	if err := w.encoder.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	w.frames += int64(len(frames))
	return nil
}

// WriteIQ appends block as a stereo pair, I on the left.
func (w *wavOutput) WriteIQ(block dsp.SampleBlock) error {
	if len(block) == 0 {
		return nil
	}
	data := w.buf.Data[:0]
	for _, s := range block {
		data = append(data, int(s.Re), int(s.Im))
	}
	w.buf.Data = data
	if err := w.encoder.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write IQ: %w", err)
	}
	w.frames += int64(len(block))
	return nil
}

// Close finalises the header and closes the file.
func (w *wavOutput) Close() error {
	if err := w.encoder.Close(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("failed to finalise WAV: %w", err)
	}
	return w.file.Close()
}
